package rbac_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/sharath018/tenant-access-backend/internal/rbac"
)

var (
	createUsers = rbac.Permission{ID: "perm-001", Name: "Create Users", Resource: "users", Action: "create"}
	readUsers   = rbac.Permission{ID: "perm-002", Name: "Read Users", Resource: "users", Action: "read"}
	slugExport  = rbac.Permission{ID: "perm-030", Name: "reports:export", Resource: "reports", Action: "export"}
	viewReports = rbac.Permission{ID: "perm-015", Name: "View Reports", Resource: "reports", Action: "read"}
)

func TestGrantsHasPermission(t *testing.T) {
	c := qt.New(t)

	g := rbac.Grants{
		{ID: "role-003", Name: "Manager", Level: 3, Permissions: []rbac.Permission{readUsers, viewReports}},
	}

	c.Assert(g.HasPermission(rbac.PermissionID("perm-002")), qt.IsTrue)
	c.Assert(g.HasPermission(rbac.PermissionNamed("Read Users")), qt.IsTrue)
	c.Assert(g.HasPermission(rbac.PermissionID("perm-001")), qt.IsFalse)
	c.Assert(g.HasPermission(rbac.PermissionNamed("perm-002")), qt.IsFalse)
	c.Assert(g.HasPermission(rbac.PermissionID("Read Users")), qt.IsFalse)
}

func TestSuperAdminHoldsEveryPermission(t *testing.T) {
	c := qt.New(t)

	g := rbac.Grants{{ID: "role-001", Name: rbac.SuperAdminRole, Level: 1}}

	c.Assert(g.IsSuperAdmin(), qt.IsTrue)
	c.Assert(g.IsAdmin(), qt.IsTrue)
	c.Assert(g.HasPermission(rbac.PermissionNamed("Anything At All")), qt.IsTrue)
	c.Assert(g.CanPerform("destroy", "planet"), qt.IsTrue)
}

func TestCanPerformAcceptsBothNamingConventions(t *testing.T) {
	c := qt.New(t)

	g := rbac.Grants{
		{ID: "role-009", Name: "Mixed", Level: 9, Permissions: []rbac.Permission{createUsers, slugExport}},
	}

	c.Assert(g.CanPerform("create", "user"), qt.IsTrue)
	c.Assert(g.CanPerform("CREATE", "Users"), qt.IsTrue)
	c.Assert(g.CanPerform("export", "report"), qt.IsTrue)
	c.Assert(g.CanPerform("delete", "user"), qt.IsFalse)
}

func TestNoRoles(t *testing.T) {
	c := qt.New(t)

	var g rbac.Grants
	c.Assert(g.HasRole(rbac.DefaultUserRole), qt.IsFalse)
	c.Assert(g.HasPermission(rbac.PermissionID("perm-001")), qt.IsFalse)
	c.Assert(g.CanPerform("read", "users"), qt.IsFalse)
	c.Assert(g.PrimaryRole(), qt.IsNil)
	c.Assert(g.PrimaryRoleName(), qt.Equals, "User")
}

func TestPrimaryRoleIsLowestLevel(t *testing.T) {
	c := qt.New(t)

	g := rbac.Grants{
		{ID: "role-006", Name: "Viewer", Level: 6},
		{ID: "role-002", Name: "Admin", Level: 2},
		{ID: "role-004", Name: "Accountant", Level: 4},
	}
	c.Assert(g.PrimaryRoleName(), qt.Equals, "Admin")
	c.Assert(g.IsAdmin(), qt.IsTrue)
	c.Assert(g.IsSuperAdmin(), qt.IsFalse)
	c.Assert(g.RoleNames(), qt.DeepEquals, []string{"Viewer", "Admin", "Accountant"})
}

func TestPermissionsAreDeduplicated(t *testing.T) {
	c := qt.New(t)

	g := rbac.Grants{
		{ID: "role-003", Permissions: []rbac.Permission{viewReports, readUsers}},
		{ID: "role-004", Permissions: []rbac.Permission{readUsers, createUsers}},
	}
	c.Assert(g.PermissionNames(), qt.DeepEquals, []string{"Create Users", "Read Users", "View Reports"})
}

func TestPermissionNames(t *testing.T) {
	c := qt.New(t)

	c.Assert(rbac.PhraseName("create", "user"), qt.Equals, "Create Users")
	c.Assert(rbac.PhraseName("approve", "expenses"), qt.Equals, "Approve Expenses")
	c.Assert(rbac.SlugName("Create", "User"), qt.Equals, "users:create")
	c.Assert(rbac.SlugName("manage", "category"), qt.Equals, "categories:manage")
}

func TestPermissionNormalize(t *testing.T) {
	c := qt.New(t)

	p := rbac.Permission{Name: " Create Budgets ", Resource: " Budget ", Action: " CREATE "}
	p.Normalize()
	c.Assert(p.Name, qt.Equals, "Create Budgets")
	c.Assert(p.Resource, qt.Equals, "budgets")
	c.Assert(p.Action, qt.Equals, "create")
	c.Assert(p.FullName(), qt.Equals, "budgets:create")
}

func TestPermissionRef(t *testing.T) {
	c := qt.New(t)

	c.Assert(rbac.PermissionRef{}.IsZero(), qt.IsTrue)
	c.Assert(rbac.PermissionID("perm-001").IsZero(), qt.IsFalse)
	c.Assert(createUsers.Ref().Matches(createUsers), qt.IsTrue)
	c.Assert(createUsers.Ref().Matches(readUsers), qt.IsFalse)
	c.Assert(rbac.PermissionNamed("Create Users").String(), qt.Equals, "name:Create Users")
	c.Assert(rbac.PermissionID("perm-001").String(), qt.Equals, "id:perm-001")
}
