// Package tenancy carries the current tenant and schema of one request.
//
// A State is bound to a single pinned database connection and travels in the
// request's context.Context. Nothing here is process global, so concurrent
// requests never observe each other's schema.
package tenancy

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/schema"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
)

// ErrNoState is returned by the package helpers when ctx carries no State.
var ErrNoState = errors.New("tenancy: no tenant state in context")

// Switcher changes the search path of the connection behind db.
type Switcher interface {
	Switch(ctx context.Context, db *gorm.DB, name string) error
}

// Target is where a State should point: a tenant, a bare schema, or the
// public schema.
type Target struct {
	tenant *tenant.Tenant
	schema string
}

// ForTenant targets t's schema. A nil tenant targets the public schema.
func ForTenant(t *tenant.Tenant) Target {
	if t == nil {
		return Public()
	}
	return Target{tenant: t, schema: t.SchemaName()}
}

// ForSchema targets a schema by name without a tenant record.
func ForSchema(name string) Target {
	if name == "" {
		return Public()
	}
	return Target{schema: name}
}

func Public() Target {
	return Target{schema: schema.PublicSchema}
}

func (t Target) Tenant() *tenant.Tenant { return t.tenant }
func (t Target) Schema() string         { return t.schema }

// State is the tenant context of one request.
type State struct {
	db       *gorm.DB
	switcher Switcher
	log      *zap.Logger

	mu      sync.Mutex
	current Target
	tainted bool
}

// NewState returns an unbound State over conn, which must be a handle pinned
// to a single connection.
func NewState(conn *gorm.DB, switcher Switcher, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	return &State{db: conn, switcher: switcher, log: log, current: Public()}
}

// Tenant returns the current tenant, nil in the public schema.
func (s *State) Tenant() *tenant.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.tenant
}

// Schema returns the current schema name.
func (s *State) Schema() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.schema
}

// Tainted reports whether the connection's search path is unknown because a
// switch failed and nothing has succeeded since.
func (s *State) Tainted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tainted
}

// DB returns the pinned connection for queries inside the current schema.
func (s *State) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// SwitchToTenant points the connection at t's schema, or at public for nil.
// The State only changes when the switch succeeds.
func (s *State) SwitchToTenant(ctx context.Context, t *tenant.Tenant) error {
	return s.switchTo(ctx, ForTenant(t))
}

// WithTenant runs fn inside target and then restores the previous tenant and
// schema, also when fn fails or panics. Calls nest.
//
// A failed restore is logged and leaves the State tainted. It is returned
// only when fn itself succeeded, so fn's error always reaches the caller
// unchanged.
func (s *State) WithTenant(ctx context.Context, target Target, fn func(ctx context.Context) error) (err error) {
	s.mu.Lock()
	previous := s.current
	s.mu.Unlock()

	if err := s.switchTo(ctx, target); err != nil {
		return err
	}

	defer func() {
		rerr := s.switchTo(context.WithoutCancel(ctx), previous)
		if rerr == nil {
			return
		}
		s.log.Error("failed to restore tenant context",
			zap.String("schema", previous.schema),
			zap.String("from", target.schema),
			zap.Error(rerr))
		if err == nil {
			err = rerr
		}
	}()

	return fn(ctx)
}

// Reset clears the tenant and returns the connection to the public schema.
// It is idempotent. The error is meant for logging only.
func (s *State) Reset(ctx context.Context) error {
	err := s.switchTo(ctx, Public())
	if err != nil {
		s.mu.Lock()
		s.current.tenant = nil
		s.mu.Unlock()
	}
	return err
}

func (s *State) switchTo(ctx context.Context, target Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.switcher.Switch(ctx, s.db, target.schema); err != nil {
		s.tainted = true
		return err
	}
	s.current = target
	s.tainted = false
	return nil
}
