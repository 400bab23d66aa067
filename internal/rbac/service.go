package rbac

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/validation"
)

type Service interface {
	// Membership and checks
	Grants(ctx context.Context, userID uint) (Grants, error)
	HasRole(ctx context.Context, userID uint, roleName string) (bool, error)
	AddRole(ctx context.Context, userID uint, roleName string) (bool, error)
	RemoveRole(ctx context.Context, userID uint, roleName string) (bool, error)
	SetRoles(ctx context.Context, userID uint, roleNames []string) error
	AssignDefaultRole(ctx context.Context, userID uint) (bool, error)
	HasPermission(ctx context.Context, userID uint, ref PermissionRef) (bool, error)
	CanPerform(ctx context.Context, userID uint, action, resource string) (bool, error)

	// Roles
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	CreateRole(ctx context.Context, in RoleInput) (*Role, error)
	UpdateRole(ctx context.Context, id string, in RoleInput) (*Role, error)
	DeleteRole(ctx context.Context, id string) error
	AddPermission(ctx context.Context, roleID string, ref PermissionRef) (bool, error)
	RemovePermission(ctx context.Context, roleID string, ref PermissionRef) (bool, error)

	// Permissions
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, in PermissionInput) (*Permission, error)

	Seed(ctx context.Context) error
}

type service struct {
	repo      Repository
	validator *validation.Validator
	log       *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &service{repo: repo, validator: validation.NewValidator(), log: log}
}

// ===============================
// Membership and checks
// ===============================

func (s *service) Grants(ctx context.Context, userID uint) (Grants, error) {
	roles, err := s.repo.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Grants(roles), nil
}

func (s *service) HasRole(ctx context.Context, userID uint, roleName string) (bool, error) {
	g, err := s.Grants(ctx, userID)
	if err != nil {
		return false, err
	}
	return g.HasRole(roleName), nil
}

// AddRole returns false when the role does not exist or is already held.
func (s *service) AddRole(ctx context.Context, userID uint, roleName string) (bool, error) {
	role, err := s.repo.FindRoleByName(ctx, roleName)
	if err != nil || role == nil {
		return false, err
	}
	held, err := s.HasRole(ctx, userID, roleName)
	if err != nil || held {
		return false, err
	}

	if err := s.repo.AddUserRole(ctx, userID, role.ID); err != nil {
		return false, err
	}
	if err := s.repo.RefreshUserCount(ctx, role.ID); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveRole returns false when the user does not hold the role.
func (s *service) RemoveRole(ctx context.Context, userID uint, roleName string) (bool, error) {
	role, err := s.repo.FindRoleByName(ctx, roleName)
	if err != nil || role == nil {
		return false, err
	}

	removed, err := s.repo.RemoveUserRole(ctx, userID, role.ID)
	if err != nil || !removed {
		return false, err
	}
	if err := s.repo.RefreshUserCount(ctx, role.ID); err != nil {
		return false, err
	}
	return true, nil
}

// SetRoles replaces the user's roles. Unknown names fail validation.
func (s *service) SetRoles(ctx context.Context, userID uint, roleNames []string) error {
	before, err := s.repo.RolesForUser(ctx, userID)
	if err != nil {
		return err
	}

	var ids []string
	verr := apperr.NewValidationError()
	for _, name := range roleNames {
		role, err := s.repo.FindRoleByName(ctx, name)
		if err != nil {
			return err
		}
		if role == nil {
			verr.Add("roles", "contains unknown role "+name)
			continue
		}
		ids = append(ids, role.ID)
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	if err := s.repo.ReplaceUserRoles(ctx, userID, ids); err != nil {
		return err
	}

	affected := ids
	for _, r := range before {
		affected = append(affected, r.ID)
	}
	if len(affected) == 0 {
		return nil
	}
	return s.repo.RefreshUserCount(ctx, affected...)
}

// AssignDefaultRole gives a new user the "User" role, or the level 5 role
// when no role carries that name.
func (s *service) AssignDefaultRole(ctx context.Context, userID uint) (bool, error) {
	role, err := s.repo.FindRoleByName(ctx, DefaultUserRole)
	if err != nil {
		return false, err
	}
	if role == nil {
		role, err = s.repo.FindRoleByLevel(ctx, DefaultUserLevel)
		if err != nil || role == nil {
			return false, err
		}
	}
	return s.AddRole(ctx, userID, role.Name)
}

func (s *service) HasPermission(ctx context.Context, userID uint, ref PermissionRef) (bool, error) {
	g, err := s.Grants(ctx, userID)
	if err != nil {
		return false, err
	}
	return g.HasPermission(ref), nil
}

func (s *service) CanPerform(ctx context.Context, userID uint, action, resource string) (bool, error) {
	g, err := s.Grants(ctx, userID)
	if err != nil {
		return false, err
	}
	return g.CanPerform(action, resource), nil
}

// ===============================
// Roles
// ===============================

func (s *service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns nil when the role does not exist.
func (s *service) GetRole(ctx context.Context, id string) (*Role, error) {
	return s.repo.FindRoleByID(ctx, id)
}

func (s *service) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	role := &Role{ID: strings.TrimSpace(in.ID), IsActive: true}
	applyRoleInput(role, in)

	if err := s.validateRole(ctx, role); err != nil {
		return nil, err
	}
	perms, err := s.resolvePermissions(ctx, in.Permissions)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	if in.Permissions != nil {
		if err := s.repo.ReplacePermissions(ctx, role.ID, permissionIDs(perms)); err != nil {
			return nil, err
		}
	}
	s.log.Info("role created", zap.String("role_id", role.ID), zap.String("name", role.Name))
	return s.repo.FindRoleByID(ctx, role.ID)
}

func (s *service) UpdateRole(ctx context.Context, id string, in RoleInput) (*Role, error) {
	role, err := s.repo.FindRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, apperr.NotFound("role")
	}
	applyRoleInput(role, in)

	if err := s.validateRole(ctx, role); err != nil {
		return nil, err
	}
	perms, err := s.resolvePermissions(ctx, in.Permissions)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	if in.Permissions != nil {
		if err := s.repo.ReplacePermissions(ctx, role.ID, permissionIDs(perms)); err != nil {
			return nil, err
		}
	}
	return s.repo.FindRoleByID(ctx, role.ID)
}

// DeleteRole refuses system roles.
func (s *service) DeleteRole(ctx context.Context, id string) error {
	role, err := s.repo.FindRoleByID(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return apperr.NotFound("role")
	}
	if role.IsSystem {
		return apperr.Forbidden("system roles cannot be deleted")
	}
	return s.repo.DeleteRole(ctx, id)
}

// AddPermission returns false when the permission does not exist or the role
// already grants it.
func (s *service) AddPermission(ctx context.Context, roleID string, ref PermissionRef) (bool, error) {
	role, perm, err := s.roleAndPermission(ctx, roleID, ref)
	if err != nil || perm == nil {
		return false, err
	}
	if role.HasPermission(perm.Ref()) {
		return false, nil
	}
	if err := s.repo.AttachPermission(ctx, role.ID, perm.ID); err != nil {
		return false, err
	}
	return true, nil
}

// RemovePermission returns false when the role does not grant the permission.
func (s *service) RemovePermission(ctx context.Context, roleID string, ref PermissionRef) (bool, error) {
	role, perm, err := s.roleAndPermission(ctx, roleID, ref)
	if err != nil || perm == nil {
		return false, err
	}
	if !role.HasPermission(perm.Ref()) {
		return false, nil
	}
	if err := s.repo.DetachPermission(ctx, role.ID, perm.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) roleAndPermission(ctx context.Context, roleID string, ref PermissionRef) (*Role, *Permission, error) {
	role, err := s.repo.FindRoleByID(ctx, roleID)
	if err != nil {
		return nil, nil, err
	}
	if role == nil {
		return nil, nil, apperr.NotFound("role")
	}
	perm, err := s.repo.FindPermission(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	return role, perm, nil
}

func (s *service) validateRole(ctx context.Context, role *Role) error {
	verr := apperr.NewValidationError()
	if err := s.validator.Validate(role); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}

	if role.Name != "" {
		other, err := s.repo.FindRoleByName(ctx, role.Name)
		if err != nil {
			return err
		}
		if other != nil && other.ID != role.ID {
			verr.Add("name", "has already been taken")
		}
	}
	if role.Level != 0 {
		other, err := s.repo.FindRoleByLevel(ctx, role.Level)
		if err != nil {
			return err
		}
		if other != nil && other.ID != role.ID {
			verr.Add("level", "has already been taken")
		}
	}
	return verr.OrNil()
}

func (s *service) resolvePermissions(ctx context.Context, ids []string) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	perms, err := s.repo.FindPermissionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(perms) != len(uniq(ids)) {
		return nil, apperr.Invalid("permission_ids", "contains unknown permissions")
	}
	return perms, nil
}

func applyRoleInput(role *Role, in RoleInput) {
	if in.Name != nil {
		role.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		role.Description = *in.Description
	}
	if in.Color != nil {
		role.Color = strings.TrimSpace(*in.Color)
	}
	if in.Icon != nil {
		role.Icon = strings.TrimSpace(*in.Icon)
	}
	if in.IsActive != nil {
		role.IsActive = *in.IsActive
	}
	if in.Level != nil {
		role.Level = *in.Level
	}
}

// ===============================
// Permissions
// ===============================

func (s *service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func (s *service) CreatePermission(ctx context.Context, in PermissionInput) (*Permission, error) {
	p := &Permission{
		ID:          strings.TrimSpace(in.ID),
		Name:        in.Name,
		Description: in.Description,
		Resource:    in.Resource,
		Action:      in.Action,
		IsSystem:    in.IsSystem,
	}
	p.Normalize()

	verr := apperr.NewValidationError()
	if err := s.validator.Validate(p); err != nil {
		if !errors.As(err, &verr) {
			return nil, err
		}
	}
	if p.Name != "" {
		other, err := s.repo.FindPermission(ctx, PermissionNamed(p.Name))
		if err != nil {
			return nil, err
		}
		if other != nil {
			verr.Add("name", "has already been taken")
		}
	}
	if p.Resource != "" && p.Action != "" {
		other, err := s.repo.FindPermissionByPair(ctx, p.Resource, p.Action)
		if err != nil {
			return nil, err
		}
		if other != nil {
			verr.Add("action", "has already been taken for this resource")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.repo.CreatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func permissionIDs(perms []Permission) []string {
	ids := make([]string, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
