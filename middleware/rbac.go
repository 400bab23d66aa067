package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/auth"
	"github.com/sharath018/tenant-access-backend/internal/rbac"
	"github.com/sharath018/tenant-access-backend/metrics"
)

// RBACMiddleware allows the request when the caller holds at least one of
// the named roles. Super admins always pass.
func RBACMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return requireGrants("role", func(g rbac.Grants) bool {
		if g.IsSuperAdmin() {
			return true
		}
		for _, role := range allowedRoles {
			if g.HasRole(role) {
				return true
			}
		}
		return false
	})
}

// RequireAdmin passes admins and super admins.
func RequireAdmin() gin.HandlerFunc {
	return requireGrants("admin", rbac.Grants.IsAdmin)
}

// RequireSuperAdmin passes super admins only.
func RequireSuperAdmin() gin.HandlerFunc {
	return requireGrants("super_admin", rbac.Grants.IsSuperAdmin)
}

// requireGrants must run after AuthMiddleware.
func requireGrants(check string, allow func(rbac.Grants) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := auth.CurrentIdentity(c)
		if ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		if !allow(ident.Grants) {
			metrics.RecordDenial(check)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You are not authorized to perform this action."})
			return
		}
		c.Next()
	}
}
