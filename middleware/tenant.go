package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
	"github.com/sharath018/tenant-access-backend/logger"
	"github.com/sharath018/tenant-access-backend/metrics"
)

// TenantResolverFunc resolves the tenant addressed by a request. A nil tenant
// with a nil error selects the public schema.
type TenantResolverFunc func(r *http.Request) (*tenant.Tenant, error)

// TenantResolver binds every request to a pinned connection, points it at
// the tenant named by the Host header and resets it to public afterwards.
//
// When resolution or the schema switch fails, devFallback decides: true logs
// and continues in the public schema, false fails the request with 500.
func TenantResolver(binder *tenancy.Binder, resolve TenantResolverFunc, devFallback bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := binder.Bind(c.Request.Context(), func(ctx context.Context, state *tenancy.State) error {
			c.Request = c.Request.WithContext(ctx)
			log := logger.FromContext(ctx)

			t, err := resolve(c.Request)
			if err == nil {
				err = state.SwitchToTenant(ctx, t)
			}

			if err != nil {
				log.Error("tenant resolution failed", zap.String("host", c.Request.Host), zap.Error(err))
				if !devFallback {
					metrics.RecordTenantResolution("error")
					return err
				}
				if ferr := state.SwitchToTenant(ctx, nil); ferr != nil {
					metrics.RecordTenantResolution("error")
					return ferr
				}
				metrics.RecordTenantResolution("fallback")
			} else if t != nil {
				metrics.RecordTenantResolution("tenant")
				c.Set("tenant", t)
			} else {
				metrics.RecordTenantResolution("public")
			}

			c.Set("tenant_schema", state.Schema())
			c.Next()
			return nil
		})

		if err != nil && !c.IsAborted() {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tenant resolution failed"})
		}
	}
}

// CurrentTenant returns the tenant bound to the request, or nil in the
// public schema.
func CurrentTenant(c *gin.Context) *tenant.Tenant {
	return tenancy.CurrentTenant(c.Request.Context())
}
