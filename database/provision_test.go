package database

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	qt "github.com/frankban/quicktest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
)

type mockPool struct {
	db    *gorm.DB
	binds int
}

func (p *mockPool) Connection(_ context.Context, fn func(conn *gorm.DB) error) error {
	p.binds++
	return fn(p.db)
}

func (p *mockPool) Discard(*gorm.DB) {}

type switchLog struct {
	mu    sync.Mutex
	calls []string
}

func (s *switchLog) Switch(_ context.Context, _ *gorm.DB, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	return nil
}

type schemaSeeder struct {
	seen []string
	err  error
}

func (s *schemaSeeder) Seed(ctx context.Context) error {
	s.seen = append(s.seen, tenancy.CurrentSchema(ctx))
	return s.err
}

func newMockDB(c *qt.C) *gorm.DB {
	sqlDB, _, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	c.Assert(err, qt.IsNil)
	return db
}

type harness struct {
	pool     *mockPool
	switches *switchLog
	seeder   *schemaSeeder
	migrated []string
	p        *Provisioner
}

func newHarness(c *qt.C) *harness {
	h := &harness{
		pool:     &mockPool{db: newMockDB(c)},
		switches: &switchLog{},
		seeder:   &schemaSeeder{},
	}
	h.p = NewProvisioner(tenancy.NewBinder(h.pool, h.switches, nil, 0), h.seeder, nil)
	h.p.migrate = func(ctx context.Context, db *gorm.DB) error {
		c.Assert(db, qt.IsNotNil)
		h.migrated = append(h.migrated, tenancy.CurrentSchema(ctx))
		return nil
	}
	return h
}

var acme = &tenant.Tenant{ID: 3, Name: "Acme", Subdomain: "acme", Status: tenant.StatusActive}

func TestProvisionBindsWhenContextHasNoState(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	c.Assert(h.p.Provision(context.Background(), acme), qt.IsNil)

	c.Assert(h.pool.binds, qt.Equals, 1)
	c.Assert(h.migrated, qt.DeepEquals, []string{"acme"})
	c.Assert(h.seeder.seen, qt.DeepEquals, []string{"acme"})
	c.Assert(h.switches.calls, qt.DeepEquals, []string{"acme", "public", "public"})
}

func TestProvisionReusesRequestState(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	err := tenancy.NewBinder(h.pool, h.switches, nil, 0).Bind(context.Background(), func(ctx context.Context, s *tenancy.State) error {
		c.Assert(h.p.Provision(ctx, acme), qt.IsNil)
		c.Assert(s.Schema(), qt.Equals, "public")
		return nil
	})

	c.Assert(err, qt.IsNil)
	c.Assert(h.pool.binds, qt.Equals, 1)
	c.Assert(h.seeder.seen, qt.DeepEquals, []string{"acme"})
}

func TestProvisionReportsSeedFailure(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.seeder.err = errors.New("duplicate key")

	err := h.p.Provision(context.Background(), acme)
	c.Assert(err, qt.ErrorMatches, "duplicate key")
	c.Assert(h.switches.calls[len(h.switches.calls)-1], qt.Equals, "public")
}

func TestPrepareSchema(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	c.Assert(h.p.PrepareSchema(context.Background(), "public"), qt.IsNil)
	c.Assert(h.migrated, qt.DeepEquals, []string{"public"})
	c.Assert(h.seeder.seen, qt.DeepEquals, []string{"public"})
}

func TestParseLogLevel(t *testing.T) {
	c := qt.New(t)
	c.Assert(ParseLogLevel("SILENT"), qt.Equals, gormlogger.Silent)
	c.Assert(ParseLogLevel("error"), qt.Equals, gormlogger.Error)
	c.Assert(ParseLogLevel("info"), qt.Equals, gormlogger.Info)
	c.Assert(ParseLogLevel("verbose"), qt.Equals, gormlogger.Warn)
}
