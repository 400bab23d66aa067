package tenant

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Finder
	FindByID(ctx context.Context, id uint) (*Tenant, error)
	ListActive(ctx context.Context) ([]Tenant, error)
	SubdomainTaken(ctx context.Context, subdomain string, exceptID uint) (bool, error)
	Create(ctx context.Context, t *Tenant) error
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, t *Tenant) error

	// Transaction runs fn with a repository and a handle bound to one
	// transaction. Schema DDL issued on db commits or rolls back with the
	// tenant row.
	Transaction(ctx context.Context, fn func(repo Repository, db *gorm.DB) error) error
}

// ConnFunc picks the handle a query runs on, given the repository's own
// handle as fallback. Requests pass their pinned connection this way so a
// directory lookup never needs a second connection from the pool.
type ConnFunc func(ctx context.Context, fallback *gorm.DB) *gorm.DB

type repository struct {
	db       *gorm.DB
	connFunc ConnFunc
}

// NewRepository returns a repository over public.tenants. Table names are
// schema qualified, so any handle works whatever its search path. A nil
// conn always uses db.
func NewRepository(db *gorm.DB, conn ConnFunc) Repository {
	return &repository{db: db, connFunc: conn}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	if r.connFunc == nil {
		return r.db.WithContext(ctx)
	}
	return r.connFunc(ctx, r.db)
}

func (r *repository) FindActiveBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	var t Tenant
	err := r.conn(ctx).
		Where("subdomain = ? AND status = ?", subdomain, StatusActive).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) FindByID(ctx context.Context, id uint) (*Tenant, error) {
	var t Tenant
	err := r.conn(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListActive(ctx context.Context) ([]Tenant, error) {
	var tenants []Tenant
	err := r.conn(ctx).
		Where("status = ?", StatusActive).
		Order("name ASC").
		Find(&tenants).Error
	return tenants, err
}

// SubdomainTaken compares case-insensitively.
func (r *repository) SubdomainTaken(ctx context.Context, subdomain string, exceptID uint) (bool, error) {
	var count int64
	q := r.conn(ctx).Model(&Tenant{}).Where("LOWER(subdomain) = LOWER(?)", subdomain)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *repository) Create(ctx context.Context, t *Tenant) error {
	return r.conn(ctx).Create(t).Error
}

func (r *repository) Update(ctx context.Context, t *Tenant) error {
	return r.conn(ctx).Omit("subdomain").Save(t).Error
}

func (r *repository) Delete(ctx context.Context, t *Tenant) error {
	return r.conn(ctx).Delete(&Tenant{}, t.ID).Error
}

func (r *repository) Transaction(ctx context.Context, fn func(repo Repository, db *gorm.DB) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx}, tx)
	})
}
