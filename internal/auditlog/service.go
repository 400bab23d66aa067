package auditlog

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Service interface {
	LogAction(ctx context.Context, e Entry) error
	List(ctx context.Context, filter Filter) (*Page, error)
	Get(ctx context.Context, id uint) (*AuditLog, error)
	Stats(ctx context.Context, tenantSchema string, since time.Time) (*Stats, error)
}

type service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &service{repo: repo, log: log}
}

// LogAction records e against the tenant schema bound to ctx.
func (s *service) LogAction(ctx context.Context, e Entry) error {
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}

	entry := &AuditLog{
		TenantSchema: tenancy.CurrentSchema(ctx),
		UserID:       e.UserID,
		Action:       e.Action,
		Target:       e.Target,
		Details:      datatypes.JSONMap(e.Details),
		IPAddress:    e.IPAddress,
		RequestID:    e.RequestID,
		Status:       e.Status,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error("audit log write failed", zap.String("action", e.Action), zap.Error(err))
		return err
	}
	return nil
}

func (s *service) List(ctx context.Context, filter Filter) (*Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []AuditLog{}
	}
	return &Page{
		Data:       logs,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// Get returns nil when the entry does not exist.
func (s *service) Get(ctx context.Context, id uint) (*AuditLog, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Stats(ctx context.Context, tenantSchema string, since time.Time) (*Stats, error) {
	rows, err := s.repo.CountByAction(ctx, tenantSchema, since)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ActionBreakdown: map[string]int64{}}
	for _, r := range rows {
		stats.Total += r.Count
		stats.ActionBreakdown[r.Action] += r.Count
		if r.Status == StatusSuccess {
			stats.SuccessCount += r.Count
		} else {
			stats.FailureCount += r.Count
		}
	}
	return stats, nil
}
