package rbac

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type seedPermission struct {
	id, name, description, resource, action string
}

var defaultPermissions = []seedPermission{
	{"perm-001", "Create Users", "Ability to create new user accounts", "users", "create"},
	{"perm-002", "Read Users", "Ability to view user information", "users", "read"},
	{"perm-003", "Update Users", "Ability to modify user accounts", "users", "update"},
	{"perm-004", "Delete Users", "Ability to delete user accounts", "users", "delete"},
	{"perm-005", "Manage Roles", "Ability to create, edit, and delete roles", "roles", "manage"},
	{"perm-006", "Assign Roles", "Ability to assign roles to users", "roles", "assign"},
	{"perm-007", "Manage Permissions", "Ability to create, edit, and delete permissions", "permissions", "manage"},
	{"perm-008", "System Settings", "Access to system configuration settings", "system", "configure"},
	{"perm-009", "System Logs", "Access to view system logs and audit trails", "system", "logs"},
	{"perm-010", "Create Expenses", "Ability to create expense records", "expenses", "create"},
	{"perm-011", "View Expenses", "Ability to view expense records", "expenses", "read"},
	{"perm-012", "Edit Expenses", "Ability to modify expense records", "expenses", "update"},
	{"perm-013", "Delete Expenses", "Ability to delete expense records", "expenses", "delete"},
	{"perm-014", "Approve Expenses", "Ability to approve or reject expense claims", "expenses", "approve"},
	{"perm-015", "View Reports", "Access to view financial and expense reports", "reports", "read"},
	{"perm-016", "Generate Reports", "Ability to generate custom reports", "reports", "generate"},
	{"perm-017", "Export Data", "Ability to export data in various formats", "reports", "export"},
	{"perm-018", "Create Budgets", "Ability to create budget plans", "budgets", "create"},
	{"perm-019", "View Budgets", "Ability to view budget information", "budgets", "read"},
	{"perm-020", "Update Budgets", "Ability to modify budget plans", "budgets", "update"},
	{"perm-021", "Delete Budgets", "Ability to delete budget plans", "budgets", "delete"},
	{"perm-022", "Manage Categories", "Ability to create, edit, and delete expense categories", "categories", "manage"},
	{"perm-023", "Manage Teams", "Ability to create and manage teams", "teams", "manage"},
	{"perm-024", "View Team Data", "Access to view team expense data", "teams", "read"},
	{"perm-025", "API Access", "Access to API endpoints and external integrations", "api", "access"},
	{"perm-026", "Webhooks", "Ability to manage webhook configurations", "webhooks", "manage"},
}

type seedRole struct {
	role        Role
	permissions []int
}

func permRange(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func without(in []int, skip int) []int {
	var out []int
	for _, n := range in {
		if n != skip {
			out = append(out, n)
		}
	}
	return out
}

var defaultRoles = []seedRole{
	{Role{ID: "role-001", Name: SuperAdminRole, Description: "Full system access with all permissions", Color: "#dc2626", Icon: "Shield", IsSystem: true, Level: 1},
		permRange(1, 26)},
	{Role{ID: "role-002", Name: AdminRole, Description: "Administrative access with most permissions", Color: "#ea580c", Icon: "UserCheck", IsSystem: true, Level: 2},
		without(permRange(1, 26), 4)},
	{Role{ID: "role-003", Name: "Manager", Description: "Team management with approval permissions", Color: "#0ea5e9", Icon: "Users", IsSystem: true, Level: 3},
		[]int{2, 3, 7, 10, 11, 12, 14, 15, 16}},
	{Role{ID: "role-004", Name: "Accountant", Description: "Financial data management", Color: "#10b981", Icon: "Calculator", IsSystem: true, Level: 4},
		[]int{10, 11, 12, 13, 15, 16}},
	{Role{ID: "role-005", Name: DefaultUserRole, Description: "Basic user access for expense management", Color: "#6b7280", Icon: "User", IsSystem: true, Level: DefaultUserLevel},
		[]int{10, 11, 15}},
	{Role{ID: "role-006", Name: "Viewer", Description: "Read-only access to data", Color: "#9ca3af", Icon: "Eye", IsSystem: true, Level: 6},
		[]int{11, 15}},
	{Role{ID: "role-007", Name: "Finance Manager", Description: "Custom role for finance team management", Color: "#10b981", Icon: "DollarSign", Level: 15},
		[]int{10, 11, 12, 13, 14, 18, 19, 20, 21, 22, 23, 24, 15, 16, 17}},
	{Role{ID: "role-008", Name: "Department Head", Description: "Custom role for department heads with approval rights", Color: "#8b5cf6", Icon: "Crown", Level: 25},
		[]int{2, 3, 10, 11, 12, 14, 18, 19, 20, 15, 16, 23}},
}

// Seed creates the built-in permissions and roles that are missing from the
// bound schema and links them. Existing rows are left untouched, so it is
// safe to run on every provisioning.
func (s *service) Seed(ctx context.Context) error {
	for _, sp := range defaultPermissions {
		existing, err := s.repo.FindPermission(ctx, PermissionID(sp.id))
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		p := &Permission{
			ID:          sp.id,
			Name:        sp.name,
			Description: sp.description,
			Resource:    sp.resource,
			Action:      sp.action,
			IsSystem:    true,
		}
		if err := s.repo.CreatePermission(ctx, p); err != nil {
			return fmt.Errorf("seed permission %s: %w", sp.id, err)
		}
	}

	for _, sr := range defaultRoles {
		existing, err := s.repo.FindRoleByID(ctx, sr.role.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			role := sr.role
			role.IsActive = true
			if err := s.repo.CreateRole(ctx, &role); err != nil {
				return fmt.Errorf("seed role %s: %w", sr.role.ID, err)
			}
		}
		for _, n := range sr.permissions {
			if err := s.repo.AttachPermission(ctx, sr.role.ID, FormatID(PermissionIDPrefix, n)); err != nil {
				return fmt.Errorf("seed role %s: %w", sr.role.ID, err)
			}
		}
	}

	s.log.Info("rbac defaults seeded",
		zap.Int("roles", len(defaultRoles)),
		zap.Int("permissions", len(defaultPermissions)))
	return nil
}
