package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/rbac"
)

// RequirePermission passes callers whose roles grant ref.
//
//	RequirePermission(rbac.PermissionNamed("Create Users"))
//	RequirePermission(rbac.PermissionID("perm-004"))
func RequirePermission(ref rbac.PermissionRef) gin.HandlerFunc {
	return requireGrants("permission", func(g rbac.Grants) bool {
		return g.HasPermission(ref)
	})
}

// RequireCanPerform passes callers allowed to run action on resource under
// either permission naming scheme.
func RequireCanPerform(action, resource string) gin.HandlerFunc {
	return requireGrants("can_perform", func(g rbac.Grants) bool {
		return g.CanPerform(action, resource)
	})
}
