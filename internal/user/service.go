package user

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/auth"
	"github.com/sharath018/tenant-access-backend/internal/rbac"
	"github.com/sharath018/tenant-access-backend/internal/validation"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// RoleService is the part of rbac.Service user administration needs.
type RoleService interface {
	Grants(ctx context.Context, userID uint) (rbac.Grants, error)
	AddRole(ctx context.Context, userID uint, roleName string) (bool, error)
	RemoveRole(ctx context.Context, userID uint, roleName string) (bool, error)
	SetRoles(ctx context.Context, userID uint, roleNames []string) error
}

// Registrar creates accounts the same way self registration does.
type Registrar interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.User, error)
}

// Query filters and pages List.
type Query struct {
	Status  string
	Role    string
	Search  string
	Page    int
	PerPage int
}

func (q *Query) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
}

// Profile is a user with its loaded roles.
type Profile struct {
	User   *auth.User
	Grants rbac.Grants
}

type Page struct {
	Profiles   []Profile
	Page       int
	PerPage    int
	Total      int64
	TotalPages int
}

type CreateInput struct {
	auth.RegisterInput
	RoleNames []string `json:"role_names"`
}

type UpdateInput struct {
	Email       *string   `json:"email"`
	UserName    *string   `json:"user_name"`
	Status      *string   `json:"status"`
	Phone       *string   `json:"phone"`
	Occupation  *string   `json:"occupation"`
	CompanyName *string   `json:"company_name"`
	Location    *string   `json:"location"`
	RoleNames   *[]string `json:"role_names"`
}

type Service interface {
	List(ctx context.Context, q Query) (*Page, error)
	Get(ctx context.Context, id uint) (*Profile, error)
	Create(ctx context.Context, in CreateInput) (*Profile, error)
	Update(ctx context.Context, actor *auth.Identity, id uint, in UpdateInput) (*Profile, error)
	Delete(ctx context.Context, actor *auth.Identity, id uint) error
	ToggleStatus(ctx context.Context, id uint) (*Profile, error)
	AssignRole(ctx context.Context, id uint, roleName string) (bool, error)
	RemoveRole(ctx context.Context, id uint, roleName string) (bool, error)
}

type service struct {
	users     auth.Repository
	registrar Registrar
	roles     RoleService
	validator *validation.Validator
	log       *zap.Logger
}

func NewService(users auth.Repository, registrar Registrar, roles RoleService, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		users:     users,
		registrar: registrar,
		roles:     roles,
		validator: validation.NewValidator(),
		log:       log,
	}
}

func (s *service) List(ctx context.Context, q Query) (*Page, error) {
	q.normalize()
	users, total, err := s.users.List(ctx, auth.UserFilter{
		Status:   q.Status,
		RoleName: q.Role,
		Search:   strings.TrimSpace(q.Search),
		Page:     q.Page,
		Limit:    q.PerPage,
	})
	if err != nil {
		return nil, err
	}

	page := &Page{
		Profiles:   make([]Profile, 0, len(users)),
		Page:       q.Page,
		PerPage:    q.PerPage,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PerPage))),
	}
	for i := range users {
		p, err := s.profile(ctx, &users[i])
		if err != nil {
			return nil, err
		}
		page.Profiles = append(page.Profiles, *p)
	}
	return page, nil
}

// Get returns nil when the user does not exist.
func (s *service) Get(ctx context.Context, id uint) (*Profile, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// Create registers a user and, when names are given, replaces the default
// role with them. A rejected role list leaves no user behind.
func (s *service) Create(ctx context.Context, in CreateInput) (*Profile, error) {
	var u *auth.User
	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.registrar.Register(ctx, in.RegisterInput)
		if err != nil {
			return err
		}
		if len(in.RoleNames) > 0 {
			return s.roles.SetRoles(ctx, u.ID, in.RoleNames)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// Update lets admins edit anyone and other users edit themselves. Only
// admins can change roles; super admins keep their existing roles.
func (s *service) Update(ctx context.Context, actor *auth.Identity, id uint, in UpdateInput) (*Profile, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	if !actor.Grants.IsAdmin() && actor.User.ID != u.ID {
		return nil, apperr.Forbidden("you can only manage your own account")
	}

	applyUpdate(u, in)
	u.Normalize()
	if err := s.validate(ctx, u); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	if in.RoleNames != nil && actor.Grants.IsAdmin() {
		if err := s.assignRoles(ctx, u.ID, *in.RoleNames); err != nil {
			return nil, err
		}
	}
	return s.profile(ctx, u)
}

func (s *service) assignRoles(ctx context.Context, id uint, names []string) error {
	current, err := s.roles.Grants(ctx, id)
	if err != nil {
		return err
	}
	if !current.IsSuperAdmin() {
		return s.roles.SetRoles(ctx, id, names)
	}
	for _, name := range names {
		if _, err := s.roles.AddRole(ctx, id, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Delete(ctx context.Context, actor *auth.Identity, id uint) error {
	if actor.User.ID == id {
		return apperr.Forbidden("you cannot delete your own account through this endpoint")
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.NotFound("user")
	}

	target, err := s.roles.Grants(ctx, id)
	if err != nil {
		return err
	}
	if target.IsSuperAdmin() && !actor.Grants.IsSuperAdmin() {
		return apperr.Forbidden("only super admins can delete other super admin accounts")
	}

	// SetRoles with no names also refreshes the user_count of each role held.
	err = s.users.Transaction(ctx, func(ctx context.Context) error {
		if err := s.roles.SetRoles(ctx, id, nil); err != nil {
			return err
		}
		return s.users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by", actor.User.ID))
	return nil
}

// ToggleStatus flips a user between active and inactive.
func (s *service) ToggleStatus(ctx context.Context, id uint) (*Profile, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}

	if u.IsActive() {
		u.Status = auth.StatusInactive
	} else {
		u.Status = auth.StatusActive
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// AssignRole returns false when the user already holds the role.
func (s *service) AssignRole(ctx context.Context, id uint, roleName string) (bool, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return false, apperr.Invalid("role_name", "can't be blank")
	}
	if err := s.mustExist(ctx, id); err != nil {
		return false, err
	}

	current, err := s.roles.Grants(ctx, id)
	if err != nil {
		return false, err
	}
	if current.HasRole(roleName) {
		return false, nil
	}

	added, err := s.roles.AddRole(ctx, id, roleName)
	if err != nil {
		return false, err
	}
	if !added {
		return false, apperr.NotFound("role " + roleName)
	}
	return true, nil
}

// RemoveRole returns false when the user does not hold the role.
func (s *service) RemoveRole(ctx context.Context, id uint, roleName string) (bool, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return false, apperr.Invalid("role_name", "can't be blank")
	}
	if err := s.mustExist(ctx, id); err != nil {
		return false, err
	}
	return s.roles.RemoveRole(ctx, id, roleName)
}

func (s *service) mustExist(ctx context.Context, id uint) error {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.NotFound("user")
	}
	return nil
}

func (s *service) profile(ctx context.Context, u *auth.User) (*Profile, error) {
	g, err := s.roles.Grants(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: u, Grants: g}, nil
}

func (s *service) validate(ctx context.Context, u *auth.User) error {
	verr := apperr.NewValidationError()
	if err := s.validator.Validate(u); err != nil && !errors.As(err, &verr) {
		return err
	}

	taken, err := s.users.EmailTaken(ctx, u.Email, u.ID)
	if err != nil {
		return err
	}
	if taken {
		verr.Add("email", "has already been taken")
	}
	if u.UserName != nil {
		taken, err := s.users.UserNameTaken(ctx, *u.UserName, u.ID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("user_name", "has already been taken")
		}
	}
	return verr.OrNil()
}

func applyUpdate(u *auth.User, in UpdateInput) {
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.UserName != nil {
		u.UserName = in.UserName
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Occupation != nil {
		u.Occupation = *in.Occupation
	}
	if in.CompanyName != nil {
		u.CompanyName = *in.CompanyName
	}
	if in.Location != nil {
		u.Location = *in.Location
	}
}
