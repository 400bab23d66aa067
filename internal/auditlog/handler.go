package auditlog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/schema"
	"github.com/sharath018/tenant-access-backend/internal/tenancy"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// scopedTenant pins tenant hosts to their own entries. Only the public host
// may pick a tenant with ?tenant= or see all of them.
func scopedTenant(c *gin.Context) string {
	if current := tenancy.CurrentSchema(c.Request.Context()); current != schema.PublicSchema {
		return current
	}
	return c.Query("tenant")
}

// GET /api/auditlogs?tenant=acme&user_id=1&action=role&status=success&from_date=2025-01-01&to_date=2025-01-31&page=1&limit=20
func (h *Handler) List(c *gin.Context) {
	filter := Filter{
		TenantSchema: scopedTenant(c),
		Action:       c.Query("action"),
		Status:       c.Query("status"),
	}

	if v := c.Query("user_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			uid := uint(id)
			filter.UserID = &uid
		}
	}

	if v := c.Query("from_date"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from_date format. Use YYYY-MM-DD"})
			return
		}
		filter.FromDate = &from
	}
	if v := c.Query("to_date"); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to_date format. Use YYYY-MM-DD"})
			return
		}
		endOfDay := to.Add(24*time.Hour - time.Second)
		filter.ToDate = &endOfDay
	}

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/auditlogs/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid audit log ID"})
		return
	}

	entry, err := h.service.Get(c.Request.Context(), uint(id))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GET /api/auditlogs/stats covers the last seven days.
func (h *Handler) Stats(c *gin.Context) {
	since := time.Now().AddDate(0, 0, -7)
	stats, err := h.service.Stats(c.Request.Context(), scopedTenant(c), since)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}
