package auditlog

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// AuditLog is one administrative action. Rows for every tenant share the
// public schema and are told apart by TenantSchema.
type AuditLog struct {
	ID           uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantSchema string            `gorm:"size:63;not null;index" json:"tenant_schema"`
	UserID       *uint             `gorm:"index" json:"user_id"` // nil for anonymous calls such as a failed sign in
	Action       string            `gorm:"size:100;not null;index" json:"action"`
	Target       string            `gorm:"size:255" json:"target"`
	Details      datatypes.JSONMap `gorm:"type:jsonb" json:"details"`
	IPAddress    string            `gorm:"size:45" json:"ip_address"`
	RequestID    string            `gorm:"size:64" json:"request_id"`
	Status       string            `gorm:"size:20;not null;index" json:"status"`
	CreatedAt    time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "public.audit_logs"
}

// Entry is what callers record; the tenant comes from the context.
type Entry struct {
	UserID    *uint
	Action    string
	Target    string
	Details   map[string]any
	IPAddress string
	RequestID string
	Status    string
}

type Filter struct {
	TenantSchema string
	UserID       *uint
	Action       string
	Status       string
	FromDate     *time.Time
	ToDate       *time.Time
	Page         int
	Limit        int
}

type Page struct {
	Data       []AuditLog `json:"data"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}

type Stats struct {
	Total           int64            `json:"total"`
	SuccessCount    int64            `json:"success_count"`
	FailureCount    int64            `json:"failure_count"`
	ActionBreakdown map[string]int64 `json:"action_breakdown"`
}
