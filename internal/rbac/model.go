package rbac

import (
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"gorm.io/gorm"
)

// Built-in role names.
const (
	SuperAdminRole  = "Super Admin"
	AdminRole       = "Admin"
	DefaultUserRole = "User"

	// DefaultUserLevel is used when no role is named DefaultUserRole.
	DefaultUserLevel = 5
)

// Role groups permissions. Lower levels are more privileged.
type Role struct {
	ID          string       `gorm:"primaryKey;size:32" json:"id"`
	Name        string       `gorm:"size:100;not null;uniqueIndex" json:"name" validate:"required,max=100"`
	Description string       `gorm:"type:text" json:"description"`
	Color       string       `gorm:"size:7;not null" json:"color" validate:"required,rolecolor"`
	Icon        string       `gorm:"size:50;not null" json:"icon" validate:"required"`
	IsSystem    bool         `gorm:"not null" json:"is_system"`
	IsActive    bool         `gorm:"not null" json:"is_active"`
	Level       int          `gorm:"not null;uniqueIndex" json:"level" validate:"required,min=1"`
	UserCount   int          `gorm:"not null" json:"user_count"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BeforeSave recomputes the cached member count from user_roles.
func (r *Role) BeforeSave(tx *gorm.DB) error {
	if r.ID == "" {
		return nil
	}
	var n int64
	err := tx.Session(&gorm.Session{NewDB: true}).
		Model(&UserRole{}).
		Where("role_id = ?", r.ID).
		Count(&n).Error
	if err != nil {
		return err
	}
	r.UserCount = int(n)
	return nil
}

// HasPermission reports whether the role itself grants ref.
func (r *Role) HasPermission(ref PermissionRef) bool {
	for _, p := range r.Permissions {
		if ref.Matches(p) {
			return true
		}
	}
	return false
}

// PermissionNames lists the names of the role's permissions.
func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// Permission is a (resource, action) grant.
type Permission struct {
	ID          string    `gorm:"primaryKey;size:32" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name" validate:"required,max=100"`
	Description string    `gorm:"type:text" json:"description"`
	Resource    string    `gorm:"size:100;not null;uniqueIndex:idx_permissions_resource_action" json:"resource" validate:"required"`
	Action      string    `gorm:"size:100;not null;uniqueIndex:idx_permissions_resource_action" json:"action" validate:"required"`
	IsSystem    bool      `gorm:"not null" json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize lowercases and pluralizes the resource and lowercases the action.
func (p *Permission) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	if res := strings.ToLower(strings.TrimSpace(p.Resource)); res != "" {
		p.Resource = inflection.Plural(res)
	} else {
		p.Resource = ""
	}
	p.Action = strings.ToLower(strings.TrimSpace(p.Action))
}

// FullName is the "resource:action" slug.
func (p *Permission) FullName() string {
	return p.Resource + ":" + p.Action
}

func (p Permission) Ref() PermissionRef {
	return PermissionID(p.ID)
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	RoleID    string    `gorm:"primaryKey;size:32;index" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

type refKind int

const (
	refByID refKind = iota + 1
	refByName
)

// PermissionRef identifies a permission either by id or by name.
type PermissionRef struct {
	kind  refKind
	value string
}

func PermissionID(id string) PermissionRef { return PermissionRef{kind: refByID, value: id} }

func PermissionNamed(name string) PermissionRef { return PermissionRef{kind: refByName, value: name} }

// Matches reports whether p is the permission ref points to.
func (r PermissionRef) Matches(p Permission) bool {
	switch r.kind {
	case refByID:
		return p.ID == r.value
	case refByName:
		return p.Name == r.value
	default:
		return false
	}
}

func (r PermissionRef) IsZero() bool { return r.kind == 0 || r.value == "" }

func (r PermissionRef) ByID() (string, bool) { return r.value, r.kind == refByID }

func (r PermissionRef) ByName() (string, bool) { return r.value, r.kind == refByName }

func (r PermissionRef) String() string {
	if r.kind == refByID {
		return "id:" + r.value
	}
	return "name:" + r.value
}

// RoleInput is the admin payload for creating or updating a role.
type RoleInput struct {
	ID          string   `json:"id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Color       *string  `json:"color"`
	Icon        *string  `json:"icon"`
	IsActive    *bool    `json:"is_active"`
	Level       *int     `json:"level"`
	Permissions []string `json:"permission_ids"`
}

// PermissionInput is the admin payload for a new permission.
type PermissionInput struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Resource    string `json:"resource" binding:"required"`
	Action      string `json:"action" binding:"required"`
	IsSystem    bool   `json:"is_system"`
}
