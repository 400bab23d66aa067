package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/rbac"
	"github.com/sharath018/tenant-access-backend/internal/tenancy"
	"github.com/sharath018/tenant-access-backend/internal/validation"
	"github.com/sharath018/tenant-access-backend/metrics"
)

// RoleService is the part of rbac.Service that authentication needs.
type RoleService interface {
	Grants(ctx context.Context, userID uint) (rbac.Grants, error)
	AssignDefaultRole(ctx context.Context, userID uint) (bool, error)
}

// Session is the outcome of a sign in or a refresh.
type Session struct {
	Token  string
	Claims *Claims
	User   *User
}

// Identity is an authenticated caller.
type Identity struct {
	User   *User
	Claims *Claims
	Grants rbac.Grants
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	Login(ctx context.Context, in LoginInput) (*Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*Identity, error)
	Refresh(ctx context.Context, token string) (*Session, error)
	Inspect(token string) (*TokenInfo, error)
	HashPassword(password string) (string, error)
}

type Option func(*service)

func WithBcryptCost(cost int) Option {
	return func(s *service) { s.bcryptCost = cost }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	repo       Repository
	roles      RoleService
	tokens     *TokenManager
	denylist   Denylist
	validator  *validation.Validator
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

func NewService(repo Repository, roles RoleService, tokens *TokenManager, denylist Denylist, opts ...Option) Service {
	s := &service{
		repo:       repo,
		roles:      roles,
		tokens:     tokens,
		denylist:   denylist,
		validator:  validation.NewValidator(),
		bcryptCost: bcrypt.DefaultCost,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================
// Register
// =============================

// Register creates an account in the current tenant and gives it the
// default role. Both happen in one transaction.
func (s *service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	verr := apperr.NewValidationError()
	if err := s.validator.Validate(in); err != nil && !errors.As(err, &verr) {
		return nil, err
	}

	user := &User{
		Email:       in.Email,
		UserName:    in.UserName,
		Status:      in.Status,
		Phone:       in.Phone,
		Occupation:  in.Occupation,
		CompanyName: in.CompanyName,
		Location:    in.Location,
	}
	user.Normalize()

	if user.Email != "" {
		taken, err := s.repo.EmailTaken(ctx, user.Email, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			verr.Add("email", "has already been taken")
		}
	}
	if user.UserName != nil {
		taken, err := s.repo.UserNameTaken(ctx, *user.UserName, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			verr.Add("user_name", "has already been taken")
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	err = s.repo.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, user); err != nil {
			return err
		}
		if _, err := s.roles.AssignDefaultRole(ctx, user.ID); err != nil {
			return fmt.Errorf("assign default role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("schema", tenancy.CurrentSchema(ctx)))
	return user, nil
}

func (s *service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// =============================
// Login / Logout
// =============================

var errBadCredentials = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)

func (s *service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, errBadCredentials
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: your account is %s", apperr.ErrUnauthorized, user.Status)
	}

	now := s.now()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt, user.LastActivityAt = &now, &now

	return s.issue(ctx, user, "login")
}

// Logout revokes the token. Tokens that are already invalid are ignored.
func (s *service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	return s.revoke(ctx, claims, "logout")
}

// =============================
// Tokens
// =============================

// Authenticate verifies token and loads the caller. The token must not be
// revoked and must belong to the schema ctx is bound to.
func (s *service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", apperr.ErrUnauthorized)
	}

	if schema := tenancy.CurrentSchema(ctx); claims.Tenant != schema {
		return nil, fmt.Errorf("%w: token was issued for another tenant", apperr.ErrUnauthorized)
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive() {
		return nil, fmt.Errorf("%w: user not found", apperr.ErrUnauthorized)
	}

	grants, err := s.roles.Grants(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Identity{User: user, Claims: claims, Grants: grants}, nil
}

// Refresh revokes a valid token and issues a new one for the same user.
func (s *service) Refresh(ctx context.Context, token string) (*Session, error) {
	ident, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, ident.Claims, "refresh"); err != nil {
		return nil, err
	}
	return s.issue(ctx, ident.User, "refresh")
}

func (s *service) Inspect(token string) (*TokenInfo, error) {
	return s.tokens.Inspect(token)
}

func (s *service) issue(ctx context.Context, user *User, reason string) (*Session, error) {
	signed, claims, err := s.tokens.Issue(user, tenancy.CurrentSchema(ctx))
	if err != nil {
		return nil, err
	}
	metrics.RecordTokenIssued(reason)
	return &Session{Token: signed, Claims: claims, User: user}, nil
}

func (s *service) revoke(ctx context.Context, claims *Claims, reason string) error {
	exp := s.now()
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := s.denylist.Revoke(ctx, claims.ID, exp); err != nil {
		return err
	}
	metrics.RecordTokenRevoked(reason)
	return nil
}
