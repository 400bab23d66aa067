// Package schema issues the PostgreSQL directives that move a connection
// between tenant namespaces and that provision or tear them down.
package schema

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/metrics"
)

// PublicSchema is the shared namespace holding tenants and the token denylist.
const PublicSchema = "public"

// SQLSTATE codes handled by the switcher.
const (
	codeProtocolViolation = "08P01"
	codeInvalidStatement  = "26000"
	codeDuplicateSchema   = "42P06"
	codeInvalidSchemaName = "3F000"
)

var protected = map[string]bool{
	PublicSchema:         true,
	"information_schema": true,
	"pg_catalog":         true,
}

type Switcher struct {
	log *zap.Logger
}

func NewSwitcher(log *zap.Logger) *Switcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Switcher{log: log}
}

// Quote returns name as a quoted PostgreSQL identifier.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Switch sets the search path of the connection behind db. An empty name
// selects the public schema.
//
// The directive goes through set_config as a bound parameter. Servers or
// poolers that reject extended protocol statements get a plain SET instead.
func (s *Switcher) Switch(ctx context.Context, db *gorm.DB, name string) (err error) {
	if name == "" {
		name = PublicSchema
	}
	done := metrics.TrackSchemaOperation("switch")
	defer func() { done(err) }()

	quoted := Quote(name)
	err = db.WithContext(ctx).Exec("SELECT set_config('search_path', ?, false)", quoted).Error
	if err != nil && hasCode(err, codeProtocolViolation, codeInvalidStatement) {
		s.log.Warn("set_config rejected, retrying with SET search_path",
			zap.String("schema", name), zap.Error(err))
		err = db.WithContext(ctx).Exec("SET search_path TO " + quoted).Error
	}
	if err != nil {
		return &apperr.ConnectionError{Op: "switch schema", Schema: name, Err: err}
	}
	return nil
}

// Create provisions the schema. An existing schema is not an error.
func (s *Switcher) Create(ctx context.Context, db *gorm.DB, name string) (err error) {
	if name == "" {
		return apperr.Invalid("schema", "can't be blank")
	}
	done := metrics.TrackSchemaOperation("create")
	defer func() { done(err) }()

	err = db.WithContext(ctx).Exec("CREATE SCHEMA IF NOT EXISTS " + Quote(name)).Error
	if hasCode(err, codeDuplicateSchema) {
		s.log.Info("schema already exists", zap.String("schema", name))
		return nil
	}
	if err != nil {
		return &apperr.ConnectionError{Op: "create schema", Schema: name, Err: err}
	}
	s.log.Info("created schema", zap.String("schema", name))
	return nil
}

// Drop removes the schema and everything in it. A missing schema is not an
// error. The shared and catalog schemas are refused.
func (s *Switcher) Drop(ctx context.Context, db *gorm.DB, name string) (err error) {
	if name == "" {
		return apperr.Invalid("schema", "can't be blank")
	}
	if protected[name] {
		return apperr.Invalid("schema", "is protected and cannot be dropped")
	}
	done := metrics.TrackSchemaOperation("drop")
	defer func() { done(err) }()

	err = db.WithContext(ctx).Exec("DROP SCHEMA IF EXISTS " + Quote(name) + " CASCADE").Error
	if hasCode(err, codeInvalidSchemaName) {
		s.log.Info("schema does not exist", zap.String("schema", name))
		return nil
	}
	if err != nil {
		return &apperr.ConnectionError{Op: "drop schema", Schema: name, Err: err}
	}
	s.log.Info("dropped schema", zap.String("schema", name))
	return nil
}

func hasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, code := range codes {
		if pgErr.Code == code {
			return true
		}
	}
	return false
}
