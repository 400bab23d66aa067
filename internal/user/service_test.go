package user_test

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
	"github.com/sharath018/tenant-access-backend/internal/auth"
	"github.com/sharath018/tenant-access-backend/internal/rbac"
	"github.com/sharath018/tenant-access-backend/internal/user"
)

type memUsers struct {
	rows       map[uint]*auth.User
	nextID     uint
	lastFilter auth.UserFilter
}

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) Update(_ context.Context, u *auth.User) error {
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) Delete(_ context.Context, id uint) error {
	delete(m.rows, id)
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id uint) (*auth.User, error) {
	u, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range m.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) EmailTaken(_ context.Context, email string, exceptID uint) (bool, error) {
	for _, u := range m.rows {
		if strings.EqualFold(u.Email, email) && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UserNameTaken(_ context.Context, name string, exceptID uint) (bool, error) {
	for _, u := range m.rows {
		if u.UserName != nil && *u.UserName == name && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) List(_ context.Context, f auth.UserFilter) ([]auth.User, int64, error) {
	m.lastFilter = f
	var all []auth.User
	for _, u := range m.rows {
		if f.Status == "" || u.Status == f.Status {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (m *memUsers) TouchLogin(context.Context, uint, time.Time) error { return nil }

// Transaction restores the rows when fn fails.
func (m *memUsers) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := make(map[uint]*auth.User, len(m.rows))
	for id, u := range m.rows {
		saved[id] = u
	}
	if err := fn(ctx); err != nil {
		m.rows = saved
		return err
	}
	return nil
}

// memRoles knows the seeded role names and tracks membership by name.
type memRoles struct {
	known map[string]int
	held  map[uint]map[string]bool
}

func newMemRoles() *memRoles {
	return &memRoles{
		known: map[string]int{rbac.SuperAdminRole: 1, rbac.AdminRole: 2, "Manager": 3, rbac.DefaultUserRole: 5, "Viewer": 6},
		held:  map[uint]map[string]bool{},
	}
}

func (r *memRoles) Grants(_ context.Context, id uint) (rbac.Grants, error) {
	var g rbac.Grants
	for name := range r.held[id] {
		g = append(g, rbac.Role{Name: name, Level: r.known[name]})
	}
	sort.Slice(g, func(i, j int) bool { return g[i].Level < g[j].Level })
	return g, nil
}

func (r *memRoles) AddRole(_ context.Context, id uint, name string) (bool, error) {
	if _, ok := r.known[name]; !ok || r.held[id][name] {
		return false, nil
	}
	if r.held[id] == nil {
		r.held[id] = map[string]bool{}
	}
	r.held[id][name] = true
	return true, nil
}

func (r *memRoles) RemoveRole(_ context.Context, id uint, name string) (bool, error) {
	if !r.held[id][name] {
		return false, nil
	}
	delete(r.held[id], name)
	return true, nil
}

// holders counts the users holding name, like Role.UserCount.
func (r *memRoles) holders(name string) int {
	n := 0
	for _, held := range r.held {
		if held[name] {
			n++
		}
	}
	return n
}

func (r *memRoles) SetRoles(_ context.Context, id uint, names []string) error {
	r.held[id] = map[string]bool{}
	for _, n := range names {
		if _, ok := r.known[n]; !ok {
			return apperr.Invalid("roles", "contains unknown role "+n)
		}
		r.held[id][n] = true
	}
	return nil
}

type registrar struct {
	users *memUsers
	roles *memRoles
}

func (r registrar) Register(ctx context.Context, in auth.RegisterInput) (*auth.User, error) {
	u := &auth.User{Email: strings.ToLower(in.Email), Status: in.Status}
	u.Normalize()
	if err := r.users.Create(ctx, u); err != nil {
		return nil, err
	}
	_, err := r.roles.AddRole(ctx, u.ID, rbac.DefaultUserRole)
	return u, err
}

type fixture struct {
	svc   user.Service
	users *memUsers
	roles *memRoles
}

func newFixture() *fixture {
	f := &fixture{users: &memUsers{rows: map[uint]*auth.User{}}, roles: newMemRoles()}
	f.svc = user.NewService(f.users, registrar{f.users, f.roles}, f.roles, nil)
	return f
}

func (f *fixture) create(c *qt.C, email string, roles ...string) *auth.Identity {
	p, err := f.svc.Create(context.Background(), user.CreateInput{
		RegisterInput: auth.RegisterInput{Email: email, Password: "secret123"},
		RoleNames:     roles,
	})
	c.Assert(err, qt.IsNil)
	return &auth.Identity{User: p.User, Grants: p.Grants}
}

func strPtr(s string) *string { return &s }

func TestCreateWithRoles(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	plain := f.create(c, "plain@acme.test")
	c.Assert(plain.Grants.RoleNames(), qt.DeepEquals, []string{"User"})

	mgr := f.create(c, "mgr@acme.test", "Manager", "Viewer")
	c.Assert(mgr.Grants.RoleNames(), qt.DeepEquals, []string{"Manager", "Viewer"})
}

func TestListPaginationIsCapped(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	for _, e := range []string{"a@x.test", "b@x.test", "c@x.test"} {
		f.create(c, e)
	}

	page, err := f.svc.List(context.Background(), user.Query{Page: 2, PerPage: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Profiles, qt.HasLen, 1)
	c.Assert(page.Total, qt.Equals, int64(3))
	c.Assert(page.TotalPages, qt.Equals, 2)

	page, err = f.svc.List(context.Background(), user.Query{PerPage: 500, Role: "Manager", Search: " ana "})
	c.Assert(err, qt.IsNil)
	c.Assert(page.PerPage, qt.Equals, user.MaxPerPage)
	c.Assert(page.Page, qt.Equals, 1)
	c.Assert(f.users.lastFilter, qt.DeepEquals, auth.UserFilter{RoleName: "Manager", Search: "ana", Page: 1, Limit: 100})

	page, err = f.svc.List(context.Background(), user.Query{})
	c.Assert(err, qt.IsNil)
	c.Assert(page.PerPage, qt.Equals, user.DefaultPerPage)
}

func TestUpdateSelfOrAdmin(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	ctx := context.Background()

	admin := f.create(c, "admin@acme.test", rbac.AdminRole)
	ana := f.create(c, "ana@acme.test")
	bob := f.create(c, "bob@acme.test")

	p, err := f.svc.Update(ctx, ana, ana.User.ID, user.UpdateInput{Occupation: strPtr("Pilot")})
	c.Assert(err, qt.IsNil)
	c.Assert(p.User.Occupation, qt.Equals, "Pilot")

	_, err = f.svc.Update(ctx, ana, bob.User.ID, user.UpdateInput{Occupation: strPtr("Pilot")})
	c.Assert(err, qt.ErrorIs, apperr.ErrForbidden)

	// Role changes from non admins are ignored.
	p, err = f.svc.Update(ctx, ana, ana.User.ID, user.UpdateInput{RoleNames: &[]string{rbac.SuperAdminRole}})
	c.Assert(err, qt.IsNil)
	c.Assert(p.Grants.RoleNames(), qt.DeepEquals, []string{"User"})

	p, err = f.svc.Update(ctx, admin, bob.User.ID, user.UpdateInput{RoleNames: &[]string{"Manager"}})
	c.Assert(err, qt.IsNil)
	c.Assert(p.Grants.RoleNames(), qt.DeepEquals, []string{"Manager"})

	_, err = f.svc.Update(ctx, admin, bob.User.ID, user.UpdateInput{Email: strPtr("ANA@acme.test")})
	c.Assert(apperr.Status(err), qt.Equals, 422)

	_, err = f.svc.Update(ctx, admin, 404, user.UpdateInput{})
	c.Assert(err, qt.ErrorIs, apperr.ErrNotFound)
}

func TestUpdateKeepsSuperAdminRoles(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	admin := f.create(c, "admin@acme.test", rbac.AdminRole)
	root := f.create(c, "root@acme.test", rbac.SuperAdminRole)

	p, err := f.svc.Update(context.Background(), admin, root.User.ID, user.UpdateInput{RoleNames: &[]string{"Viewer"}})
	c.Assert(err, qt.IsNil)
	c.Assert(p.Grants.RoleNames(), qt.DeepEquals, []string{"Super Admin", "Viewer"})
}

func TestDeleteGuards(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	ctx := context.Background()

	admin := f.create(c, "admin@acme.test", rbac.AdminRole)
	root := f.create(c, "root@acme.test", rbac.SuperAdminRole)
	ana := f.create(c, "ana@acme.test")

	err := f.svc.Delete(ctx, admin, admin.User.ID)
	c.Assert(err, qt.ErrorIs, apperr.ErrForbidden)

	err = f.svc.Delete(ctx, admin, root.User.ID)
	c.Assert(err, qt.ErrorIs, apperr.ErrForbidden)
	c.Assert(err, qt.ErrorMatches, ".*only super admins.*")

	c.Assert(f.svc.Delete(ctx, admin, ana.User.ID), qt.IsNil)
	c.Assert(f.users.rows[ana.User.ID], qt.IsNil)

	c.Assert(f.svc.Delete(ctx, root, admin.User.ID), qt.IsNil)

	err = f.svc.Delete(ctx, root, 404)
	c.Assert(err, qt.ErrorIs, apperr.ErrNotFound)
}

func TestToggleStatus(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	ana := f.create(c, "ana@acme.test")

	p, err := f.svc.ToggleStatus(context.Background(), ana.User.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(p.User.Status, qt.Equals, auth.StatusInactive)

	p, err = f.svc.ToggleStatus(context.Background(), ana.User.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(p.User.Status, qt.Equals, auth.StatusActive)
}

func TestAssignAndRemoveRole(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	ctx := context.Background()
	ana := f.create(c, "ana@acme.test")

	ok, err := f.svc.AssignRole(ctx, ana.User.ID, "Manager")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ok, err = f.svc.AssignRole(ctx, ana.User.ID, "Manager")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	_, err = f.svc.AssignRole(ctx, ana.User.ID, "Astronaut")
	c.Assert(err, qt.ErrorIs, apperr.ErrNotFound)

	_, err = f.svc.AssignRole(ctx, ana.User.ID, "  ")
	c.Assert(apperr.Status(err), qt.Equals, 422)

	ok, err = f.svc.RemoveRole(ctx, ana.User.ID, "Manager")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ok, err = f.svc.RemoveRole(ctx, ana.User.ID, "Manager")
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	_, err = f.svc.RemoveRole(ctx, 404, "Manager")
	c.Assert(err, qt.ErrorIs, apperr.ErrNotFound)
}

func TestDeleteReleasesRoles(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	ctx := context.Background()

	admin := f.create(c, "admin@acme.test", rbac.AdminRole)
	mgr := f.create(c, "mgr@acme.test", "Manager", "Viewer")
	c.Assert(f.roles.holders("Manager"), qt.Equals, 1)
	c.Assert(f.roles.holders("Viewer"), qt.Equals, 1)

	c.Assert(f.svc.Delete(ctx, admin, mgr.User.ID), qt.IsNil)

	c.Assert(f.roles.holders("Manager"), qt.Equals, 0)
	c.Assert(f.roles.holders("Viewer"), qt.Equals, 0)
	c.Assert(f.roles.holders(rbac.AdminRole), qt.Equals, 1)
}

func TestCreateWithUnknownRoleLeavesNoUser(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, user.CreateInput{
		RegisterInput: auth.RegisterInput{Email: "ana@acme.test", Password: "secret123"},
		RoleNames:     []string{"Astronaut"},
	})
	c.Assert(apperr.Status(err), qt.Equals, 422)
	c.Assert(f.users.rows, qt.HasLen, 0)

	ana := f.create(c, "ana@acme.test", "Manager")
	c.Assert(ana.Grants.RoleNames(), qt.DeepEquals, []string{"Manager"})
}
