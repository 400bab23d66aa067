package rbac

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
)

// Repository works on the roles, permissions and join tables of the schema
// the request is bound to.
type Repository interface {
	RolesForUser(ctx context.Context, userID uint) ([]Role, error)
	AddUserRole(ctx context.Context, userID uint, roleID string) error
	RemoveUserRole(ctx context.Context, userID uint, roleID string) (bool, error)
	ReplaceUserRoles(ctx context.Context, userID uint, roleIDs []string) error
	RefreshUserCount(ctx context.Context, roleIDs ...string) error

	ListRoles(ctx context.Context) ([]Role, error)
	FindRoleByID(ctx context.Context, id string) (*Role, error)
	FindRoleByName(ctx context.Context, name string) (*Role, error)
	FindRoleByLevel(ctx context.Context, level int) (*Role, error)
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermission(ctx context.Context, ref PermissionRef) (*Permission, error)
	FindPermissionByPair(ctx context.Context, resource, action string) (*Permission, error)
	FindPermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error)
	CreatePermission(ctx context.Context, p *Permission) error
	AttachPermission(ctx context.Context, roleID, permissionID string) error
	DetachPermission(ctx context.Context, roleID, permissionID string) error
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error
}

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return tenancy.DB(ctx, r.db)
}

func (r *repository) RolesForUser(ctx context.Context, userID uint) ([]Role, error) {
	var roles []Role
	err := r.conn(ctx).
		Preload("Permissions").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.level ASC").
		Find(&roles).Error
	return roles, err
}

func (r *repository) AddUserRole(ctx context.Context, userID uint, roleID string) error {
	return r.conn(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&UserRole{UserID: userID, RoleID: roleID}).Error
}

func (r *repository) RemoveUserRole(ctx context.Context, userID uint, roleID string) (bool, error) {
	res := r.conn(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&UserRole{})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ReplaceUserRoles(ctx context.Context, userID uint, roleIDs []string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&UserRole{}).Error; err != nil {
			return err
		}
		for _, id := range roleIDs {
			if err := tx.Create(&UserRole{UserID: userID, RoleID: id}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RefreshUserCount recomputes user_count from user_roles. No ids means all
// roles.
func (r *repository) RefreshUserCount(ctx context.Context, roleIDs ...string) error {
	q := r.conn(ctx).Model(&Role{})
	if len(roleIDs) > 0 {
		q = q.Where("id IN ?", roleIDs)
	} else {
		q = q.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	return q.UpdateColumn("user_count",
		gorm.Expr("(SELECT COUNT(*) FROM user_roles WHERE user_roles.role_id = roles.id)")).Error
}

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := r.conn(ctx).Preload("Permissions").Order("level ASC").Find(&roles).Error
	return roles, err
}

func (r *repository) findRole(ctx context.Context, query string, arg any) (*Role, error) {
	var role Role
	err := r.conn(ctx).Preload("Permissions").Where(query, arg).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *repository) FindRoleByID(ctx context.Context, id string) (*Role, error) {
	return r.findRole(ctx, "id = ?", id)
}

func (r *repository) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	return r.findRole(ctx, "name = ?", name)
}

func (r *repository) FindRoleByLevel(ctx context.Context, level int) (*Role, error) {
	return r.findRole(ctx, "level = ?", level)
}

// CreateRole assigns the next sequential id when r has none. The id is read
// and the row inserted while holding a transaction scoped advisory lock, so
// concurrent creations cannot pick the same id.
func (r *repository) CreateRole(ctx context.Context, role *Role) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if role.ID == "" {
			id, err := nextID(tx, "roles", RoleIDPrefix)
			if err != nil {
				return err
			}
			role.ID = id
		}
		return tx.Omit(clause.Associations).Create(role).Error
	})
}

func (r *repository) UpdateRole(ctx context.Context, role *Role) error {
	return r.conn(ctx).Omit(clause.Associations).Save(role).Error
}

func (r *repository) DeleteRole(ctx context.Context, id string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM role_permissions WHERE role_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Role{}, "id = ?", id).Error
	})
}

func (r *repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	err := r.conn(ctx).Order("resource ASC, action ASC").Find(&perms).Error
	return perms, err
}

func (r *repository) FindPermission(ctx context.Context, ref PermissionRef) (*Permission, error) {
	q := r.conn(ctx)
	if id, ok := ref.ByID(); ok {
		q = q.Where("id = ?", id)
	} else if name, ok := ref.ByName(); ok {
		q = q.Where("name = ?", name)
	} else {
		return nil, nil
	}

	var p Permission
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) FindPermissionByPair(ctx context.Context, resource, action string) (*Permission, error) {
	var p Permission
	err := r.conn(ctx).Where("resource = ? AND action = ?", resource, action).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) FindPermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error) {
	var perms []Permission
	if len(ids) == 0 {
		return perms, nil
	}
	err := r.conn(ctx).Where("id IN ?", ids).Order("id ASC").Find(&perms).Error
	return perms, err
}

func (r *repository) CreatePermission(ctx context.Context, p *Permission) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if p.ID == "" {
			id, err := nextID(tx, "permissions", PermissionIDPrefix)
			if err != nil {
				return err
			}
			p.ID = id
		}
		return tx.Create(p).Error
	})
}

func (r *repository) AttachPermission(ctx context.Context, roleID, permissionID string) error {
	return r.conn(ctx).Exec(
		"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		roleID, permissionID,
	).Error
}

func (r *repository) DetachPermission(ctx context.Context, roleID, permissionID string) error {
	return r.conn(ctx).Exec(
		"DELETE FROM role_permissions WHERE role_id = ? AND permission_id = ?",
		roleID, permissionID,
	).Error
}

func (r *repository) ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM role_permissions WHERE role_id = ?", roleID).Error; err != nil {
			return err
		}
		for _, pid := range permissionIDs {
			err := tx.Exec(
				"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
				roleID, pid,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// nextID locks the id sequence of table within the current schema for the
// rest of the transaction and returns the id after the highest one in use.
func nextID(tx *gorm.DB, table, prefix string) (string, error) {
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(current_schema() || ?))", "."+table).Error; err != nil {
		return "", err
	}

	var last string
	pattern := "^" + prefix + "-[0-9]+$"
	err := tx.Table(table).
		Select("id").
		Where("id ~ ?", pattern).
		Order(fmt.Sprintf("CAST(SUBSTRING(id FROM %d) AS INTEGER) DESC", len(prefix)+2)).
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}
	return NextID(prefix, last), nil
}
