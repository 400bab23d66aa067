package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/config"
	"github.com/sharath018/tenant-access-backend/database"
	"github.com/sharath018/tenant-access-backend/internal/auditlog"
	"github.com/sharath018/tenant-access-backend/internal/auth"
	"github.com/sharath018/tenant-access-backend/internal/rbac"
	"github.com/sharath018/tenant-access-backend/internal/schema"
	"github.com/sharath018/tenant-access-backend/internal/tenancy"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
	"github.com/sharath018/tenant-access-backend/internal/user"
	"github.com/sharath018/tenant-access-backend/logger"
	"github.com/sharath018/tenant-access-backend/metrics"
	"github.com/sharath018/tenant-access-backend/middleware"
)

// Infra is the shared infrastructure the routes are built on. Cache and
// Events may be nil.
type Infra struct {
	DB     *gorm.DB
	Cache  *redis.Client
	Events tenant.EventPublisher
}

// Services are the long lived pieces main needs after Setup, for startup
// seeding and background jobs.
type Services struct {
	Binder      *tenancy.Binder
	Provisioner *database.Provisioner
	Denylist    auth.Denylist
}

func Setup(r *gin.Engine, cfg *config.Config, infra Infra) *Services {
	log := logger.L()

	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error("invalid TRUSTED_PROXIES, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(logger.Middleware())
	r.Use(gin.Recovery())
	r.Use(metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Content-Length", "X-Requested-With", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Authorization", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ========== Tenancy ==========
	switcher := schema.NewSwitcher(log)
	binder := tenancy.NewBinder(tenancy.NewPool(infra.DB), switcher, log, cfg.Tenancy.ResetTimeout)

	tenantRepo := tenant.NewRepository(infra.DB, tenancy.DB)
	directory := tenant.NewDirectory(tenantRepo, cfg.Tenancy.ExcludedSubdomains)

	// ========== RBAC ==========
	rbacSvc := rbac.NewService(rbac.NewRepository(infra.DB), log)
	rbacHandler := rbac.NewHandler(rbacSvc)

	provisioner := database.NewProvisioner(binder, rbacSvc, log)

	tenantOpts := []tenant.Option{tenant.WithProvisioner(provisioner), tenant.WithLogger(log)}
	if infra.Events != nil {
		tenantOpts = append(tenantOpts, tenant.WithEvents(infra.Events))
	}
	tenantSvc := tenant.NewService(tenantRepo, switcher, tenantOpts...)
	tenantHandler := tenant.NewHandler(tenantSvc, cfg.Tenancy.BaseDomain)

	// ========== Auth ==========
	userRepo := auth.NewRepository(infra.DB)
	denylist := auth.NewDenylist(infra.DB, infra.Cache, log)
	tokens := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour, cfg.JWTIssuer)
	authSvc := auth.NewService(userRepo, rbacSvc, tokens, denylist,
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithLogger(log),
	)
	authHandler := auth.NewHandler(authSvc)

	userHandler := user.NewHandler(user.NewService(userRepo, authSvc, rbacSvc, log))

	// ========== Audit ==========
	auditSvc := auditlog.NewService(auditlog.NewRepository(infra.DB), log)
	auditHandler := auditlog.NewHandler(auditSvc)

	// Everything below runs on a connection bound to the request's tenant.
	app := r.Group("/")
	app.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, infra.Cache))
	app.Use(middleware.TenantResolver(binder, directory.ResolveFromRequest, cfg.Tenancy.DevFallback))
	app.Use(middleware.AuditMiddleware(auditSvc))

	requireAuth := middleware.AuthMiddleware(authSvc)

	// ========== Sessions ==========
	app.POST("/users", authHandler.Register)
	app.POST("/users/sign_in", authHandler.SignIn)
	app.DELETE("/users/sign_out", authHandler.SignOut)

	tokenGroup := app.Group("/token")
	{
		tokenGroup.GET("/verify", requireAuth, authHandler.Verify)
		tokenGroup.GET("/info", authHandler.Info)
		tokenGroup.POST("/refresh", authHandler.Refresh)
	}

	api := app.Group("/api")
	api.Use(requireAuth)

	// ========== Tenants (reads: admins, writes: Super Admin only) ==========
	tenantReaders := middleware.RBACMiddleware(rbac.AdminRole)
	tenants := api.Group("/tenants")
	{
		tenants.GET("", tenantReaders, tenantHandler.List)
		tenants.GET("/:id", tenantReaders, tenantHandler.Get)
		tenants.POST("", middleware.RequireSuperAdmin(), tenantHandler.Create)
		tenants.PUT("/:id", middleware.RequireSuperAdmin(), tenantHandler.Update)
		tenants.DELETE("/:id", middleware.RequireSuperAdmin(), tenantHandler.Delete)
	}

	// ========== Users ==========
	users := api.Group("/users")
	{
		users.GET("", middleware.RequireCanPerform("read", "user"), userHandler.List)
		users.GET("/:id", middleware.RequireCanPerform("read", "user"), userHandler.Get)
		users.POST("", middleware.RequireAdmin(), userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", middleware.RequireAdmin(), userHandler.Delete)
		users.POST("/:id/toggle_status", middleware.RequireAdmin(), userHandler.ToggleStatus)
		users.POST("/:id/assign_role", middleware.RequireCanPerform("assign", "role"), userHandler.AssignRole)
		users.DELETE("/:id/remove_role", middleware.RequireCanPerform("assign", "role"), userHandler.RemoveRole)
	}

	// ========== Roles & Permissions ==========
	manageRoles := middleware.RequirePermission(rbac.PermissionNamed("Manage Roles"))
	roles := api.Group("/roles")
	{
		roles.GET("", rbacHandler.ListRoles)
		roles.GET("/:id", rbacHandler.GetRole)
		roles.POST("", manageRoles, rbacHandler.CreateRole)
		roles.PUT("/:id", manageRoles, rbacHandler.UpdateRole)
		roles.DELETE("/:id", manageRoles, rbacHandler.DeleteRole)
		roles.POST("/:id/permissions", manageRoles, rbacHandler.AddPermission)
		roles.DELETE("/:id/permissions/:permission_id", manageRoles, rbacHandler.RemovePermission)
	}

	permissions := api.Group("/permissions")
	{
		permissions.GET("", rbacHandler.ListPermissions)
		permissions.POST("", middleware.RequirePermission(rbac.PermissionNamed("Manage Permissions")), rbacHandler.CreatePermission)
	}

	// ========== Audit Logs ==========
	audit := api.Group("/auditlogs", middleware.RequirePermission(rbac.PermissionNamed("System Logs")))
	{
		audit.GET("", auditHandler.List)
		audit.GET("/stats", auditHandler.Stats)
		audit.GET("/:id", auditHandler.Get)
	}

	return &Services{Binder: binder, Provisioner: provisioner, Denylist: denylist}
}
