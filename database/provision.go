package database

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
)

// Seeder loads default rows into the current tenant schema.
type Seeder interface {
	Seed(ctx context.Context) error
}

// Provisioner creates the tables of a new tenant schema and seeds its
// default roles and permissions.
type Provisioner struct {
	binder  *tenancy.Binder
	seeder  Seeder
	log     *zap.Logger
	migrate func(ctx context.Context, db *gorm.DB) error
}

func NewProvisioner(binder *tenancy.Binder, seeder Seeder, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{binder: binder, seeder: seeder, log: log, migrate: MigrateTenant}
}

// Provision runs inside the tenant state already carried by ctx, or binds a
// connection of its own when there is none.
func (p *Provisioner) Provision(ctx context.Context, t *tenant.Tenant) error {
	if _, ok := tenancy.FromContext(ctx); ok {
		return p.provision(ctx, t)
	}
	return p.binder.Bind(ctx, func(ctx context.Context, _ *tenancy.State) error {
		return p.provision(ctx, t)
	})
}

func (p *Provisioner) provision(ctx context.Context, t *tenant.Tenant) error {
	return tenancy.WithTenant(ctx, tenancy.ForTenant(t), func(ctx context.Context) error {
		if err := p.migrate(ctx, tenancy.DB(ctx, nil)); err != nil {
			return err
		}
		if err := p.seeder.Seed(ctx); err != nil {
			return err
		}
		p.log.Info("tenant provisioned", zap.String("schema", t.SchemaName()))
		return nil
	})
}

// PrepareSchema migrates and seeds a schema outside the tenant lifecycle,
// for the public schema at startup.
func (p *Provisioner) PrepareSchema(ctx context.Context, name string) error {
	return p.binder.Bind(ctx, func(ctx context.Context, _ *tenancy.State) error {
		return tenancy.WithTenant(ctx, tenancy.ForSchema(name), func(ctx context.Context) error {
			if err := p.migrate(ctx, tenancy.DB(ctx, nil)); err != nil {
				return err
			}
			return p.seeder.Seed(ctx)
		})
	})
}
