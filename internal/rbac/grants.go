package rbac

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Grants is the loaded role set of one user.
type Grants []Role

func (g Grants) HasRole(name string) bool {
	for _, r := range g {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (g Grants) IsSuperAdmin() bool { return g.HasRole(SuperAdminRole) }

func (g Grants) IsAdmin() bool { return g.HasRole(AdminRole) || g.IsSuperAdmin() }

// HasPermission is true for super admins and otherwise when any role grants
// ref.
func (g Grants) HasPermission(ref PermissionRef) bool {
	if g.IsSuperAdmin() {
		return true
	}
	for i := range g {
		if g[i].HasPermission(ref) {
			return true
		}
	}
	return false
}

// CanPerform checks action on resource under both naming conventions in
// use: "Create Users" and "users:create".
//
// TODO: settle on one convention once seeded permission names are migrated.
func (g Grants) CanPerform(action, resource string) bool {
	return g.HasPermission(PermissionNamed(PhraseName(action, resource))) ||
		g.HasPermission(PermissionNamed(SlugName(action, resource)))
}

// Permissions returns the union of all role permissions ordered by id.
func (g Grants) Permissions() []Permission {
	seen := map[string]bool{}
	var out []Permission
	for _, r := range g {
		for _, p := range r.Permissions {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g Grants) PermissionNames() []string {
	perms := g.Permissions()
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.Name
	}
	return names
}

func (g Grants) RoleNames() []string {
	names := make([]string, len(g))
	for i, r := range g {
		names[i] = r.Name
	}
	return names
}

// PrimaryRole is the most privileged role, or nil.
func (g Grants) PrimaryRole() *Role {
	var best *Role
	for i := range g {
		if best == nil || g[i].Level < best.Level {
			best = &g[i]
		}
	}
	return best
}

// PrimaryRoleName falls back to DefaultUserRole for users without roles.
func (g Grants) PrimaryRoleName() string {
	if r := g.PrimaryRole(); r != nil {
		return r.Name
	}
	return DefaultUserRole
}

// PhraseName builds the capitalized form, ("create", "user") -> "Create Users".
func PhraseName(action, resource string) string {
	title := cases.Title(language.English)
	return title.String(strings.ToLower(action)) + " " +
		title.String(inflection.Plural(strings.ToLower(resource)))
}

// SlugName builds the slug form, ("create", "user") -> "users:create".
func SlugName(action, resource string) string {
	return inflection.Plural(strings.ToLower(resource)) + ":" + strings.ToLower(action)
}
