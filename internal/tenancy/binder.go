package tenancy

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/metrics"
)

// Pool hands out a single pinned connection for the duration of fn.
type Pool interface {
	Connection(ctx context.Context, fn func(conn *gorm.DB) error) error
	// Discard closes conn instead of returning it to the pool.
	Discard(conn *gorm.DB)
}

type GormPool struct {
	db *gorm.DB
}

func NewPool(db *gorm.DB) *GormPool {
	return &GormPool{db: db}
}

func (p *GormPool) Connection(ctx context.Context, fn func(conn *gorm.DB) error) error {
	return p.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		return fn(conn.Session(&gorm.Session{}))
	})
}

// Discard marks the underlying *sql.Conn bad so database/sql closes it.
func (p *GormPool) Discard(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if c, ok := conn.Statement.ConnPool.(*sql.Conn); ok {
		_ = c.Raw(func(any) error { return driver.ErrBadConn })
	}
}

// Binder runs work inside a fresh State on a pinned connection and always
// resets that State afterwards.
type Binder struct {
	pool         Pool
	switcher     Switcher
	log          *zap.Logger
	resetTimeout time.Duration
}

func NewBinder(pool Pool, switcher Switcher, log *zap.Logger, resetTimeout time.Duration) *Binder {
	if log == nil {
		log = zap.NewNop()
	}
	if resetTimeout <= 0 {
		resetTimeout = 5 * time.Second
	}
	return &Binder{pool: pool, switcher: switcher, log: log, resetTimeout: resetTimeout}
}

// Bind checks out a connection, attaches a new State to ctx and calls fn.
// The reset back to public runs even if fn fails, panics or ctx is
// cancelled. Reset failures are logged and never replace fn's result. A
// connection left with an unknown search path is discarded.
func (b *Binder) Bind(ctx context.Context, fn func(ctx context.Context, s *State) error) error {
	return b.pool.Connection(ctx, func(conn *gorm.DB) error {
		state := NewState(conn, b.switcher, b.log)
		defer b.release(ctx, state, conn)
		return fn(WithState(ctx, state), state)
	})
}

func (b *Binder) release(ctx context.Context, state *State, conn *gorm.DB) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.resetTimeout)
	defer cancel()

	if err := state.Reset(rctx); err != nil {
		metrics.RecordResetFailure()
		b.log.Error("failed to reset tenant context", zap.Error(err))
	}
	if state.Tainted() {
		b.log.Warn("discarding connection with unknown search path")
		b.pool.Discard(conn)
	}
}
