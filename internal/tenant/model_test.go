package tenant_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/sharath018/tenant-access-backend/internal/tenant"
)

func TestNormalize(t *testing.T) {
	c := qt.New(t)
	tn := &tenant.Tenant{Name: " Acme ", Subdomain: "  ACME-corp\t"}

	tn.Normalize()

	c.Assert(tn.Subdomain, qt.Equals, "acme-corp")
	c.Assert(tn.Name, qt.Equals, "Acme")
	c.Assert(tn.Status, qt.Equals, tenant.StatusActive)
	c.Assert(tn.SchemaName(), qt.Equals, "acme-corp")
}

func TestFullDomain(t *testing.T) {
	c := qt.New(t)
	tn := &tenant.Tenant{Subdomain: "acme"}

	c.Assert(tn.FullDomain(""), qt.Equals, "acme.localhost:3000")
	c.Assert(tn.FullDomain("example.com"), qt.Equals, "acme.example.com")
}

func TestTrialExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		tenant   tenant.Tenant
		expected bool
	}{
		{name: "trial ended", tenant: tenant.Tenant{Status: tenant.StatusTrial, TrialEndsAt: &past}, expected: true},
		{name: "trial running", tenant: tenant.Tenant{Status: tenant.StatusTrial, TrialEndsAt: &future}},
		{name: "trial without end", tenant: tenant.Tenant{Status: tenant.StatusTrial}},
		{name: "active with past end", tenant: tenant.Tenant{Status: tenant.StatusActive, TrialEndsAt: &past}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qt.Assert(t, tt.tenant.TrialExpired(now), qt.Equals, tt.expected)
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	c := qt.New(t)

	c.Assert((&tenant.Tenant{Status: tenant.StatusActive}).IsActive(), qt.IsTrue)
	c.Assert((&tenant.Tenant{Status: tenant.StatusTrial}).IsTrial(), qt.IsTrue)
	c.Assert((&tenant.Tenant{Status: tenant.StatusInactive}).IsInactive(), qt.IsTrue)
	c.Assert((&tenant.Tenant{Status: tenant.StatusSuspended}).IsSuspended(), qt.IsTrue)
	c.Assert((&tenant.Tenant{Status: tenant.StatusSuspended}).IsActive(), qt.IsFalse)
}
