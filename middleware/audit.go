package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/auditlog"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	LogAction(ctx context.Context, e auditlog.Entry) error
}

// AuditMiddleware stores the client IP for handlers and, once the handler
// chain has run, records successful writes that named an "audit_target" as
// well as rejected writes by authenticated callers.
func AuditMiddleware(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		c.Set("client_ip", ip)
		c.Next()

		if recorder == nil || c.Request.Method == http.MethodGet {
			return
		}
		target := c.GetString("audit_target")
		status := c.Writer.Status()
		entry := auditlog.Entry{
			Action:    c.Request.Method + " " + c.FullPath(),
			Target:    target,
			IPAddress: ip,
			RequestID: c.GetString("request_id"),
			Status:    auditlog.StatusSuccess,
		}
		if id, ok := c.Get("user_id"); ok {
			if uid, ok := id.(uint); ok {
				entry.UserID = &uid
			}
		}

		switch {
		case status < http.StatusBadRequest && target != "":
		case status >= http.StatusBadRequest && entry.UserID != nil:
			entry.Status = auditlog.StatusFailure
			entry.Details = map[string]any{"http_status": status}
		default:
			return
		}
		// Failures are logged by the recorder; the response is already written.
		_ = recorder.LogAction(c.Request.Context(), entry)
	}
}
