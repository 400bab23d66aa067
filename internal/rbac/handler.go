package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
)

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

// ===============================
// Roles
// ===============================

// GET /api/roles
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.service.ListRoles(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	out := make([]gin.H, 0, len(roles))
	for i := range roles {
		out = append(out, presentRole(&roles[i]))
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// GET /api/roles/:id
func (h *Handler) GetRole(c *gin.Context) {
	role, err := h.service.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if role == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": presentRole(role)})
}

// POST /api/roles
func (h *Handler) CreateRole(c *gin.Context) {
	var input RoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, err := h.service.CreateRole(c.Request.Context(), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", role.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "Role created", "role": presentRole(role)})
}

// PUT /api/roles/:id
func (h *Handler) UpdateRole(c *gin.Context) {
	var input RoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, err := h.service.UpdateRole(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", role.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "role": presentRole(role)})
}

// DELETE /api/roles/:id
func (h *Handler) DeleteRole(c *gin.Context) {
	if err := h.service.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"message": "Role deleted"})
}

type permissionBody struct {
	PermissionID   string `json:"permission_id"`
	PermissionName string `json:"permission_name"`
}

func (b permissionBody) ref() (PermissionRef, bool) {
	switch {
	case b.PermissionID != "":
		return PermissionID(b.PermissionID), true
	case b.PermissionName != "":
		return PermissionNamed(b.PermissionName), true
	}
	return PermissionRef{}, false
}

// POST /api/roles/:id/permissions
func (h *Handler) AddPermission(c *gin.Context) {
	var body permissionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ref, ok := body.ref()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "permission_id or permission_name is required"})
		return
	}

	added, err := h.service.AddPermission(c.Request.Context(), c.Param("id"), ref)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// DELETE /api/roles/:id/permissions/:permission_id
func (h *Handler) RemovePermission(c *gin.Context) {
	removed, err := h.service.RemovePermission(c.Request.Context(), c.Param("id"), PermissionID(c.Param("permission_id")))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// ===============================
// Permissions
// ===============================

// GET /api/permissions
func (h *Handler) ListPermissions(c *gin.Context) {
	perms, err := h.service.ListPermissions(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	out := make([]gin.H, 0, len(perms))
	for i := range perms {
		out = append(out, presentPermission(&perms[i]))
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out})
}

// POST /api/permissions
func (h *Handler) CreatePermission(c *gin.Context) {
	var input PermissionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.service.CreatePermission(c.Request.Context(), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", p.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "Permission created", "permission": presentPermission(p)})
}

func presentRole(r *Role) gin.H {
	perms := make([]gin.H, 0, len(r.Permissions))
	for i := range r.Permissions {
		perms = append(perms, presentPermission(&r.Permissions[i]))
	}
	return gin.H{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"color":       r.Color,
		"icon":        r.Icon,
		"is_system":   r.IsSystem,
		"is_active":   r.IsActive,
		"level":       r.Level,
		"user_count":  r.UserCount,
		"permissions": perms,
		"created_at":  r.CreatedAt,
		"updated_at":  r.UpdatedAt,
	}
}

func presentPermission(p *Permission) gin.H {
	return gin.H{
		"id":          p.ID,
		"name":        p.Name,
		"full_name":   p.FullName(),
		"description": p.Description,
		"resource":    p.Resource,
		"action":      p.Action,
		"is_system":   p.IsSystem,
	}
}
