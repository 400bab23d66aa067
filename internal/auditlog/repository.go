package auditlog

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
)

type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) ([]AuditLog, int64, error)
	FindByID(ctx context.Context, id uint) (*AuditLog, error)
	CountByAction(ctx context.Context, tenantSchema string, since time.Time) ([]ActionCount, error)
}

// ActionCount is one row of the action/status breakdown.
type ActionCount struct {
	Action string
	Status string
	Count  int64
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// conn prefers the request's pinned connection. audit_logs is schema
// qualified, so the current search path does not matter.
func (r *repository) conn(ctx context.Context) *gorm.DB {
	return tenancy.DB(ctx, r.db)
}

func (r *repository) Create(ctx context.Context, log *AuditLog) error {
	return r.conn(ctx).Create(log).Error
}

func (r *repository) List(ctx context.Context, filter Filter) ([]AuditLog, int64, error) {
	query := r.conn(ctx).Model(&AuditLog{})

	if filter.TenantSchema != "" {
		query = query.Where("tenant_schema = ?", filter.TenantSchema)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action ILIKE ?", "%"+filter.Action+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []AuditLog
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// FindByID returns nil when no row matches.
func (r *repository) FindByID(ctx context.Context, id uint) (*AuditLog, error) {
	var log AuditLog
	err := r.conn(ctx).First(&log, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *repository) CountByAction(ctx context.Context, tenantSchema string, since time.Time) ([]ActionCount, error) {
	query := r.conn(ctx).Model(&AuditLog{}).
		Select("action, status, COUNT(*) AS count").
		Where("created_at >= ?", since)
	if tenantSchema != "" {
		query = query.Where("tenant_schema = ?", tenantSchema)
	}

	var rows []ActionCount
	err := query.Group("action, status").Order("action").Scan(&rows).Error
	return rows, err
}
