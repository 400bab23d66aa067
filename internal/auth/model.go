package auth

import (
	"strings"
	"time"
)

// User statuses.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
)

// User represents an account inside a tenant schema.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"size:255;uniqueIndex;not null" json:"email" validate:"required,email,max=255"`
	UserName       *string    `gorm:"column:user_name;size:100;uniqueIndex" json:"user_name" validate:"omitempty,max=100"`
	PasswordHash   string     `gorm:"column:encrypted_password;size:255;not null" json:"-"`
	Status         string     `gorm:"size:20;not null;default:active" json:"status" validate:"required,oneof=active inactive pending suspended"`
	Phone          string     `gorm:"size:20" json:"phone"`
	Occupation     string     `gorm:"size:100" json:"occupation"`
	CompanyName    string     `gorm:"size:100" json:"company_name"`
	Location       string     `gorm:"size:100" json:"location"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	LastActivityAt *time.Time `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Normalize lowercases the email and drops a blank user name.
func (u *User) Normalize() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.UserName != nil {
		name := strings.TrimSpace(*u.UserName)
		if name == "" {
			u.UserName = nil
		} else {
			u.UserName = &name
		}
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
}

func (u *User) IsActive() bool { return u.Status == StatusActive }

// FullName is the user name, or the local part of the email.
func (u *User) FullName() string {
	if u.UserName != nil && *u.UserName != "" {
		return *u.UserName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// JWTDenylist holds revoked token ids. It lives in the public schema so a
// revocation is visible whichever tenant the token belongs to.
type JWTDenylist struct {
	ID        uint      `gorm:"primaryKey"`
	JTI       string    `gorm:"column:jti;size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"column:exp;not null;index"`
	CreatedAt time.Time
}

func (JWTDenylist) TableName() string {
	return "public.jwt_denylists"
}

type RegisterInput struct {
	Email                string  `json:"email" validate:"required,email,max=255"`
	Password             string  `json:"password" validate:"required,min=6,max=128"`
	PasswordConfirmation string  `json:"password_confirmation" validate:"omitempty,eqfield=Password"`
	UserName             *string `json:"user_name"`
	Status               string  `json:"status" validate:"omitempty,oneof=active inactive pending suspended"`
	Phone                string  `json:"phone"`
	Occupation           string  `json:"occupation"`
	CompanyName          string  `json:"company_name"`
	Location             string  `json:"location"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
