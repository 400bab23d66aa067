package tenant

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Tenant statuses
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusTrial     = "trial"
	StatusSuspended = "suspended"
)

// Tenant plans
const (
	PlanBasic        = "basic"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Tenant is an isolated customer. Its subdomain doubles as the name of the
// PostgreSQL schema holding the tenant's data.
type Tenant struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"size:255;not null" json:"name" validate:"required"`
	Subdomain    string            `gorm:"size:63;not null;uniqueIndex" json:"subdomain" validate:"required,max=63,subdomain,notreserved"`
	Status       string            `gorm:"size:20;not null;default:active;index" json:"status" validate:"required,oneof=active inactive trial suspended"`
	Plan         *string           `gorm:"size:20" json:"plan" validate:"omitempty,oneof=basic professional enterprise"`
	Description  string            `gorm:"type:text" json:"description"`
	ContactEmail string            `gorm:"size:255" json:"contact_email" validate:"omitempty,email"`
	ContactName  string            `gorm:"size:255" json:"contact_name"`
	TrialEndsAt  *time.Time        `json:"trial_ends_at"`
	Settings     datatypes.JSONMap `gorm:"type:jsonb" json:"settings"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TableName pins tenants to the shared schema so lookups work whatever the
// connection's search path is.
func (Tenant) TableName() string {
	return "public.tenants"
}

// Normalize trims and lowercases the subdomain.
func (t *Tenant) Normalize() {
	t.Subdomain = strings.ToLower(strings.TrimSpace(t.Subdomain))
	t.Name = strings.TrimSpace(t.Name)
	t.ContactEmail = strings.TrimSpace(t.ContactEmail)
	if t.Status == "" {
		t.Status = StatusActive
	}
}

func (t *Tenant) IsActive() bool    { return t.Status == StatusActive }
func (t *Tenant) IsTrial() bool     { return t.Status == StatusTrial }
func (t *Tenant) IsInactive() bool  { return t.Status == StatusInactive }
func (t *Tenant) IsSuspended() bool { return t.Status == StatusSuspended }

// SchemaName is the PostgreSQL schema owned by the tenant.
func (t *Tenant) SchemaName() string {
	return t.Subdomain
}

// FullDomain returns the tenant's host under baseDomain.
func (t *Tenant) FullDomain(baseDomain string) string {
	if baseDomain == "" {
		baseDomain = "localhost:3000"
	}
	return t.Subdomain + "." + baseDomain
}

// TrialExpired reports whether a trial tenant's trial ended before now.
func (t *Tenant) TrialExpired(now time.Time) bool {
	return t.IsTrial() && t.TrialEndsAt != nil && t.TrialEndsAt.Before(now)
}

// CreateInput is the admin payload for a new tenant.
type CreateInput struct {
	Name         string         `json:"name" binding:"required"`
	Subdomain    string         `json:"subdomain" binding:"required"`
	Status       string         `json:"status"`
	Plan         *string        `json:"plan"`
	Description  string         `json:"description"`
	ContactEmail string         `json:"contact_email"`
	ContactName  string         `json:"contact_name"`
	TrialEndsAt  *time.Time     `json:"trial_ends_at"`
	Settings     map[string]any `json:"settings"`
	Metadata     map[string]any `json:"metadata"`
}

// UpdateInput carries optional changes. The subdomain never changes.
type UpdateInput struct {
	Name         *string        `json:"name"`
	Status       *string        `json:"status"`
	Plan         *string        `json:"plan"`
	Description  *string        `json:"description"`
	ContactEmail *string        `json:"contact_email"`
	ContactName  *string        `json:"contact_name"`
	TrialEndsAt  *time.Time     `json:"trial_ends_at"`
	Settings     map[string]any `json:"settings"`
	Metadata     map[string]any `json:"metadata"`
}
