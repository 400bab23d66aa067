package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sharath018/tenant-access-backend/internal/schema"
	"github.com/sharath018/tenant-access-backend/internal/tenancy"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
	"github.com/sharath018/tenant-access-backend/middleware"
)

var setSearchPath = regexp.QuoteMeta("SELECT set_config('search_path', $1, false)")

// With a single connection in the pool, everything a request does must run on
// the connection the resolver pinned.
func TestTenantResolverRunsOnASingleConnection(t *testing.T) {
	c := qt.New(t)

	sqlDB, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { sqlDB.Close() })
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	c.Assert(err, qt.IsNil)

	tenantRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "subdomain", "status"}).
			AddRow(7, "Acme", "acme", tenant.StatusActive)
	}
	mock.ExpectQuery(`FROM .*tenants.*subdomain`).WillReturnRows(tenantRows())
	mock.ExpectExec(setSearchPath).WithArgs(`"acme"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM .*tenants`).WillReturnRows(tenantRows())
	mock.ExpectExec(setSearchPath).WithArgs(`"public"`).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := tenant.NewRepository(db, tenancy.DB)
	directory := tenant.NewDirectory(repo, nil)
	binder := tenancy.NewBinder(tenancy.NewPool(db), schema.NewSwitcher(nil), nil, time.Second)

	r := gin.New()
	r.Use(middleware.TenantResolver(binder, directory.ResolveFromRequest, false))
	r.GET("/tenants/7", func(c *gin.Context) {
		found, err := repo.FindByID(c.Request.Context(), 7)
		if err != nil || found == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subdomain": found.Subdomain})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/tenants/7", nil).WithContext(ctx)
	req.Host = "acme.localhost:3000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", w.Body.String()))
	c.Assert(ctx.Err(), qt.IsNil)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}
