package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/auth"
	"github.com/sharath018/tenant-access-backend/logger"
)

// Authenticator turns a bearer token into a caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// AuthMiddleware authenticates the bearer token against the current tenant
// and stores the identity on the gin context.
func AuthMiddleware(authSvc Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		ctx := c.Request.Context()
		ident, err := authSvc.Authenticate(ctx, token)
		if err != nil {
			if !errors.Is(err, apperr.ErrUnauthorized) {
				apperr.Respond(c, err)
				return
			}
			logger.FromContext(ctx).Debug("authentication rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		reqLogger := logger.FromContext(ctx).With(zap.Uint("user_id", ident.User.ID))
		c.Request = c.Request.WithContext(logger.WithContext(ctx, reqLogger))

		c.Set(auth.IdentityKey, ident)
		c.Set("user", ident.User)
		c.Set("user_id", ident.User.ID)
		c.Next()
	}
}
