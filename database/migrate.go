package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/auditlog"
	"github.com/sharath018/tenant-access-backend/internal/auth"
	"github.com/sharath018/tenant-access-backend/internal/rbac"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
)

// PublicModels live in the shared schema.
func PublicModels() []any {
	return []any{&tenant.Tenant{}, &auth.JWTDenylist{}, &auditlog.AuditLog{}}
}

// TenantModels are created in every tenant schema, and in public for
// requests that resolve to no tenant.
func TenantModels() []any {
	return []any{&auth.User{}, &rbac.Permission{}, &rbac.Role{}, &rbac.UserRole{}}
}

// MigratePublic creates or updates the shared tables.
func MigratePublic(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(PublicModels()...); err != nil {
		return fmt.Errorf("migrate public schema: %w", err)
	}
	return nil
}

// MigrateTenant creates the per tenant tables in whatever schema db's
// search path points at.
func MigrateTenant(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(TenantModels()...); err != nil {
		return fmt.Errorf("migrate tenant schema: %w", err)
	}
	return nil
}
