package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	qt "github.com/frankban/quicktest"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/schema"
)

func newMockDB(c *qt.C) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	c.Assert(err, qt.IsNil)
	return db, mock
}

const setConfig = "SELECT set_config('search_path', $1, false)"

func TestSwitch(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		arg    string
	}{
		{name: "tenant schema", schema: "acme", arg: `"acme"`},
		{name: "empty falls back to public", schema: "", arg: `"public"`},
		{name: "quotes are escaped", schema: `we"ird`, arg: `"we""ird"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			db, mock := newMockDB(c)
			mock.ExpectExec(setConfig).WithArgs(tt.arg).WillReturnResult(sqlmock.NewResult(0, 1))

			err := schema.NewSwitcher(nil).Switch(context.Background(), db, tt.schema)

			c.Assert(err, qt.IsNil)
			c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
		})
	}
}

func TestSwitchFallsBackToSimpleProtocol(t *testing.T) {
	c := qt.New(t)
	db, mock := newMockDB(c)
	mock.ExpectExec(setConfig).WithArgs(`"acme"`).
		WillReturnError(&pgconn.PgError{Code: "26000", Message: "prepared statement does not exist"})
	mock.ExpectExec(`SET search_path TO "acme"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := schema.NewSwitcher(nil).Switch(context.Background(), db, "acme")

	c.Assert(err, qt.IsNil)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestSwitchReportsConnectionError(t *testing.T) {
	c := qt.New(t)
	db, mock := newMockDB(c)
	cause := errors.New("connection reset by peer")
	mock.ExpectExec(setConfig).WithArgs(`"acme"`).WillReturnError(cause)

	err := schema.NewSwitcher(nil).Switch(context.Background(), db, "acme")

	c.Assert(apperr.IsConnection(err), qt.IsTrue)
	c.Assert(errors.Is(err, cause), qt.IsTrue)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestSwitchFallbackFailureIsConnectionError(t *testing.T) {
	c := qt.New(t)
	db, mock := newMockDB(c)
	mock.ExpectExec(setConfig).WithArgs(`"acme"`).
		WillReturnError(&pgconn.PgError{Code: "08P01"})
	mock.ExpectExec(`SET search_path TO "acme"`).WillReturnError(errors.New("bad connection"))

	err := schema.NewSwitcher(nil).Switch(context.Background(), db, "acme")

	c.Assert(apperr.IsConnection(err), qt.IsTrue)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestCreateIsIdempotent(t *testing.T) {
	c := qt.New(t)
	db, mock := newMockDB(c)
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "acme"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "acme"`).
		WillReturnError(&pgconn.PgError{Code: "42P06", Message: `schema "acme" already exists`})

	s := schema.NewSwitcher(nil)
	c.Assert(s.Create(context.Background(), db, "acme"), qt.IsNil)
	c.Assert(s.Create(context.Background(), db, "acme"), qt.IsNil)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestCreateReportsOtherErrors(t *testing.T) {
	c := qt.New(t)
	db, mock := newMockDB(c)
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "acme"`).
		WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied for database"})

	err := schema.NewSwitcher(nil).Create(context.Background(), db, "acme")

	c.Assert(apperr.IsConnection(err), qt.IsTrue)
}

func TestDropTwiceDoesNotFail(t *testing.T) {
	c := qt.New(t)
	db, mock := newMockDB(c)
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "acme" CASCADE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "acme" CASCADE`).
		WillReturnError(&pgconn.PgError{Code: "3F000", Message: `schema "acme" does not exist`})

	s := schema.NewSwitcher(nil)
	c.Assert(s.Drop(context.Background(), db, "acme"), qt.IsNil)
	c.Assert(s.Drop(context.Background(), db, "acme"), qt.IsNil)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestDropThenCreate(t *testing.T) {
	c := qt.New(t)
	db, mock := newMockDB(c)
	mock.ExpectExec(`DROP SCHEMA IF EXISTS "acme" CASCADE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "acme"`).WillReturnResult(sqlmock.NewResult(0, 0))

	s := schema.NewSwitcher(nil)
	c.Assert(s.Drop(context.Background(), db, "acme"), qt.IsNil)
	c.Assert(s.Create(context.Background(), db, "acme"), qt.IsNil)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestDropRefusesProtectedSchemas(t *testing.T) {
	for _, name := range []string{"public", "information_schema", "pg_catalog", ""} {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			db, mock := newMockDB(c)

			err := schema.NewSwitcher(nil).Drop(context.Background(), db, name)

			var ve *apperr.ValidationError
			c.Assert(errors.As(err, &ve), qt.IsTrue)
			c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
		})
	}
}
