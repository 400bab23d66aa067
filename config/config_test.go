package config_test

import (
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/sharath018/tenant-access-backend/config"
)

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)
	t.Setenv("APP_ENV", "development")

	cfg := config.Load()

	c.Assert(cfg.IsDevelopment(), qt.IsTrue)
	c.Assert(cfg.Tenancy.DevFallback, qt.IsTrue)
	c.Assert(cfg.Tenancy.ExcludedSubdomains, qt.DeepEquals, []string{"www", "api", "admin", "mail", "ftp"})
	c.Assert(cfg.Tenancy.ResetTimeout, qt.Equals, 5*time.Second)
}

func TestDevFallbackIsAFlagNotAnEnvironmentName(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		flag     string
		expected bool
	}{
		{name: "production default", env: "production", expected: false},
		{name: "production with flag", env: "production", flag: "true", expected: true},
		{name: "development with flag off", env: "development", flag: "false", expected: false},
		{name: "staging default", env: "staging", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			t.Setenv("APP_ENV", tt.env)
			if tt.flag != "" {
				t.Setenv("TENANT_DEV_FALLBACK", tt.flag)
			}

			c.Assert(config.Load().Tenancy.DevFallback, qt.Equals, tt.expected)
		})
	}
}

func TestDevFallbackNeedsAnExplicitEnvironment(t *testing.T) {
	c := qt.New(t)
	t.Setenv("APP_ENV", "")
	c.Assert(os.Unsetenv("APP_ENV"), qt.IsNil)

	cfg := config.Load()

	c.Assert(cfg.IsDevelopment(), qt.IsTrue)
	c.Assert(cfg.Tenancy.DevFallback, qt.IsFalse)
}

func TestTrustedProxies(t *testing.T) {
	c := qt.New(t)
	c.Assert(config.Load().TrustedProxies, qt.IsNil)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")
	c.Assert(config.Load().TrustedProxies, qt.DeepEquals, []string{"10.0.0.0/8", "192.168.1.10"})
}

func TestExcludedSubdomainsFromEnv(t *testing.T) {
	c := qt.New(t)
	t.Setenv("TENANT_EXCLUDED_SUBDOMAINS", " www, status ,,docs")

	c.Assert(config.Load().Tenancy.ExcludedSubdomains, qt.DeepEquals, []string{"www", "status", "docs"})
}

func TestDSN(t *testing.T) {
	c := qt.New(t)
	db := config.DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}

	c.Assert(db.DSN(), qt.Equals, "host=db port=5432 user=u password=p dbname=n sslmode=disable")
}
