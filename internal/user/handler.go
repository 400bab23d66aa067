package user

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

// ===============================
// Read
// ===============================

// GET /api/users?status=active&role=Manager&search=ana&page=1&per_page=20
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(DefaultPerPage)))

	result, err := h.service.List(c.Request.Context(), Query{
		Status:  c.Query("status"),
		Role:    c.Query("role"),
		Search:  c.Query("search"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	users := make([]gin.H, 0, len(result.Profiles))
	for i := range result.Profiles {
		users = append(users, present(&result.Profiles[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"pagination": gin.H{
			"current_page": result.Page,
			"per_page":     result.PerPage,
			"total_count":  result.Total,
			"total_pages":  result.TotalPages,
		},
	})
}

// GET /api/users/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": present(p)})
}

// ===============================
// Write
// ===============================

// POST /api/users
func (h *Handler) Create(c *gin.Context) {
	var body struct {
		User CreateInput `json:"user"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.Create(c.Request.Context(), body.User)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", p.User.Email)
	c.JSON(http.StatusCreated, gin.H{"message": "User created", "user": present(p)})
}

// PUT /api/users/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body struct {
		User UpdateInput `json:"user"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.Update(c.Request.Context(), auth.CurrentIdentity(c), id, body.User)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", p.User.Email)
	c.JSON(http.StatusOK, gin.H{"message": "User updated", "user": present(p)})
}

// DELETE /api/users/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), auth.CurrentIdentity(c), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", strconv.FormatUint(uint64(id), 10))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// POST /api/users/:id/toggle_status
func (h *Handler) ToggleStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	p, err := h.service.ToggleStatus(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", p.User.Email)
	c.JSON(http.StatusOK, gin.H{"message": "User status updated", "user": present(p)})
}

type roleReq struct {
	RoleName string `json:"role_name" form:"role_name"`
}

// POST /api/users/:id/assign_role
func (h *Handler) AssignRole(c *gin.Context) {
	h.changeRole(c, h.service.AssignRole, "Role assigned", "Role couldn't be assigned.")
}

// DELETE /api/users/:id/remove_role
func (h *Handler) RemoveRole(c *gin.Context) {
	h.changeRole(c, h.service.RemoveRole, "Role removed", "Role couldn't be removed or user doesn't have this role.")
}

func (h *Handler) changeRole(
	c *gin.Context,
	op func(ctx context.Context, id uint, name string) (bool, error),
	okMsg, failMsg string,
) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req roleReq
	if err := c.ShouldBind(&req); err != nil || req.RoleName == "" {
		req.RoleName = c.Query("role_name")
	}
	if req.RoleName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role name is required."})
		return
	}

	changed, err := op(c.Request.Context(), id, req.RoleName)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if !changed {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": failMsg})
		return
	}
	c.Set("audit_target", req.RoleName)
	c.JSON(http.StatusOK, gin.H{"message": okMsg})
}

func present(p *Profile) gin.H {
	out := auth.PresentUser(p.User)
	out["roles"] = p.Grants.RoleNames()
	out["role"] = p.Grants.PrimaryRoleName()
	out["permissions"] = p.Grants.PermissionNames()
	out["is_admin"] = p.Grants.IsAdmin()
	return out
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return uint(id), true
}
