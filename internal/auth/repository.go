package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
)

// UserFilter narrows List. Zero values match everything.
type UserFilter struct {
	Status   string
	RoleName string
	Search   string
	Page     int
	Limit    int
}

// Repository reads and writes users of the schema the request is bound to.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error)
	UserNameTaken(ctx context.Context, name string, exceptID uint) (bool, error)
	List(ctx context.Context, f UserFilter) ([]User, int64, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error

	// Transaction runs fn in one transaction. Every repository that goes
	// through tenancy.DB joins it when called with fn's ctx.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return tenancy.DB(ctx, r.db)
}

func (r *repository) Create(ctx context.Context, user *User) error {
	return r.conn(ctx).Create(user).Error
}

func (r *repository) Update(ctx context.Context, user *User) error {
	return r.conn(ctx).Save(user).Error
}

// Delete removes the user and its role links.
func (r *repository) Delete(ctx context.Context, id uint) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_roles WHERE user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, id).Error
	})
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	err := r.conn(ctx).Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) FindByID(ctx context.Context, id uint) (*User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *repository) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&User{}).
		Where("LOWER(email) = LOWER(?) AND id <> ?", email, exceptID).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) UserNameTaken(ctx context.Context, name string, exceptID uint) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&User{}).
		Where("user_name = ? AND id <> ?", name, exceptID).
		Count(&n).Error
	return n > 0, err
}

// List pages through users ordered by newest first.
func (r *repository) List(ctx context.Context, f UserFilter) ([]User, int64, error) {
	q := r.conn(ctx).Model(&User{})
	if f.Status != "" {
		q = q.Where("users.status = ?", f.Status)
	}
	if f.RoleName != "" {
		q = q.Where(`EXISTS (SELECT 1 FROM user_roles JOIN roles ON roles.id = user_roles.role_id
			WHERE user_roles.user_id = users.id AND roles.name = ?)`, f.RoleName)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where(`(LOWER(users.email) LIKE ? OR LOWER(users.user_name) LIKE ?
			OR LOWER(users.occupation) LIKE ? OR LOWER(users.company_name) LIKE ?)`, like, like, like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []User
	err := q.Order("users.created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&users).Error
	return users, total, err
}

func (r *repository) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	return r.conn(ctx).Model(&User{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"last_login_at": at, "last_activity_at": at}).Error
}

func (r *repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return tenancy.Transaction(ctx, r.db, fn)
}
