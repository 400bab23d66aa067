package tenant

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
)

type Handler struct {
	service    Service
	baseDomain string
}

func NewHandler(s Service, baseDomain string) *Handler {
	return &Handler{service: s, baseDomain: baseDomain}
}

// ===============================
// Read
// ===============================

// GET /api/tenants
func (h *Handler) List(c *gin.Context) {
	tenants, err := h.service.List(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	out := make([]gin.H, 0, len(tenants))
	for i := range tenants {
		out = append(out, h.present(&tenants[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tenants": out})
}

// GET /api/tenants/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	t, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant": h.present(t)})
}

// ===============================
// Write
// ===============================

// POST /api/tenants
func (h *Handler) Create(c *gin.Context) {
	var input CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", t.Subdomain)
	c.JSON(http.StatusCreated, gin.H{"message": "Tenant created", "tenant": h.present(t)})
}

// PUT /api/tenants/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Set("audit_target", t.Subdomain)
	c.JSON(http.StatusOK, gin.H{"message": "Tenant updated", "tenant": h.present(t)})
}

// DELETE /api/tenants/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tenant deleted"})
}

func (h *Handler) present(t *Tenant) gin.H {
	return gin.H{
		"id":            t.ID,
		"name":          t.Name,
		"subdomain":     t.Subdomain,
		"full_domain":   t.FullDomain(h.baseDomain),
		"status":        t.Status,
		"plan":          t.Plan,
		"description":   t.Description,
		"contact_email": t.ContactEmail,
		"contact_name":  t.ContactName,
		"trial_ends_at": t.TrialEndsAt,
		"settings":      t.Settings,
		"metadata":      t.Metadata,
		"created_at":    t.CreatedAt,
		"updated_at":    t.UpdatedAt,
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return 0, false
	}
	return uint(id), true
}
