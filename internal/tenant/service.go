package tenant

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/validation"
)

// DefaultTrialPeriod applies to trial tenants created without an end date.
const DefaultTrialPeriod = 30 * 24 * time.Hour

// Event types published on tenant lifecycle changes.
const (
	EventCreated = "tenant.created"
	EventUpdated = "tenant.updated"
	EventDeleted = "tenant.deleted"
)

// Event describes a tenant lifecycle change.
type Event struct {
	Type       string    `json:"type"`
	TenantID   uint      `json:"tenant_id"`
	Subdomain  string    `json:"subdomain"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SchemaManager provisions and removes tenant schemas on a given handle.
type SchemaManager interface {
	Create(ctx context.Context, db *gorm.DB, name string) error
	Drop(ctx context.Context, db *gorm.DB, name string) error
}

// Provisioner fills a freshly created schema (tables, seed roles).
type Provisioner interface {
	Provision(ctx context.Context, t *Tenant) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

type Service interface {
	List(ctx context.Context) ([]Tenant, error)
	Get(ctx context.Context, id uint) (*Tenant, error)
	Create(ctx context.Context, in CreateInput) (*Tenant, error)
	Update(ctx context.Context, id uint, in UpdateInput) (*Tenant, error)
	Delete(ctx context.Context, id uint) error
}

type service struct {
	repo        Repository
	schemas     SchemaManager
	provisioner Provisioner
	events      EventPublisher
	validator   *validation.Validator
	log         *zap.Logger
	now         func() time.Time
}

type Option func(*service)

func WithProvisioner(p Provisioner) Option { return func(s *service) { s.provisioner = p } }

func WithEvents(p EventPublisher) Option { return func(s *service) { s.events = p } }

func WithLogger(l *zap.Logger) Option { return func(s *service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

func NewService(repo Repository, schemas SchemaManager, opts ...Option) Service {
	s := &service{
		repo:      repo,
		schemas:   schemas,
		validator: validation.NewValidator(),
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns active tenants ordered by name.
func (s *service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.ListActive(ctx)
}

// Get returns the tenant whatever its status, or nil when absent.
func (s *service) Get(ctx context.Context, id uint) (*Tenant, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Tenant, error) {
	t := &Tenant{
		Name:         in.Name,
		Subdomain:    in.Subdomain,
		Status:       in.Status,
		Plan:         in.Plan,
		Description:  in.Description,
		ContactEmail: in.ContactEmail,
		ContactName:  in.ContactName,
		TrialEndsAt:  in.TrialEndsAt,
		Settings:     datatypes.JSONMap(in.Settings),
		Metadata:     datatypes.JSONMap(in.Metadata),
	}
	t.Normalize()
	if t.IsTrial() && t.TrialEndsAt == nil {
		ends := s.now().Add(DefaultTrialPeriod)
		t.TrialEndsAt = &ends
	}

	if err := s.validate(ctx, t); err != nil {
		return nil, err
	}

	err := s.repo.Transaction(ctx, func(repo Repository, db *gorm.DB) error {
		if err := repo.Create(ctx, t); err != nil {
			return fmt.Errorf("insert tenant: %w", err)
		}
		return s.schemas.Create(ctx, db, t.SchemaName())
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("tenant created", zap.Uint("tenant_id", t.ID), zap.String("schema", t.SchemaName()))

	if s.provisioner != nil {
		if err := s.provisioner.Provision(ctx, t); err != nil {
			s.log.Error("tenant provisioning failed, rolling back",
				zap.Uint("tenant_id", t.ID), zap.Error(err))
			if derr := s.remove(ctx, t); derr != nil {
				s.log.Error("rollback of unprovisioned tenant failed",
					zap.Uint("tenant_id", t.ID), zap.Error(derr))
			}
			return nil, fmt.Errorf("provision tenant %q: %w", t.Subdomain, err)
		}
	}

	s.publish(ctx, EventCreated, t)
	return t, nil
}

func (s *service) Update(ctx context.Context, id uint, in UpdateInput) (*Tenant, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("tenant")
	}

	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Plan != nil {
		t.Plan = in.Plan
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.ContactEmail != nil {
		t.ContactEmail = *in.ContactEmail
	}
	if in.ContactName != nil {
		t.ContactName = *in.ContactName
	}
	if in.TrialEndsAt != nil {
		t.TrialEndsAt = in.TrialEndsAt
	}
	if in.Settings != nil {
		t.Settings = datatypes.JSONMap(in.Settings)
	}
	if in.Metadata != nil {
		t.Metadata = datatypes.JSONMap(in.Metadata)
	}
	t.Normalize()

	if err := s.validator.Validate(t); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(ctx, EventUpdated, t)
	return t, nil
}

// Delete drops the tenant's schema together with its row.
func (s *service) Delete(ctx context.Context, id uint) error {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return apperr.NotFound("tenant")
	}
	if err := s.remove(ctx, t); err != nil {
		return err
	}
	s.log.Info("tenant deleted", zap.Uint("tenant_id", t.ID), zap.String("schema", t.SchemaName()))
	s.publish(ctx, EventDeleted, t)
	return nil
}

func (s *service) remove(ctx context.Context, t *Tenant) error {
	return s.repo.Transaction(ctx, func(repo Repository, db *gorm.DB) error {
		if err := s.schemas.Drop(ctx, db, t.SchemaName()); err != nil {
			return err
		}
		return repo.Delete(ctx, t)
	})
}

func (s *service) validate(ctx context.Context, t *Tenant) error {
	verr := apperr.NewValidationError()
	if err := s.validator.Validate(t); err != nil {
		ve, ok := err.(*apperr.ValidationError)
		if !ok {
			return err
		}
		verr = ve
	}

	if t.Subdomain != "" {
		taken, err := s.repo.SubdomainTaken(ctx, t.Subdomain, t.ID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("subdomain", "has already been taken")
		}
	}
	return verr.OrNil()
}

func (s *service) publish(ctx context.Context, eventType string, t *Tenant) {
	if s.events == nil {
		return
	}
	e := Event{
		Type:       eventType,
		TenantID:   t.ID,
		Subdomain:  t.Subdomain,
		Status:     t.Status,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("failed to publish tenant event",
			zap.String("type", eventType), zap.Uint("tenant_id", t.ID), zap.Error(err))
	}
}
