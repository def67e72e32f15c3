// Package access resolves the role held by a session and decides whether it
// may reach a role-scoped view.
package access

import "strings"

// Role is one entry of the application's role vocabulary.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePresident  Role = "president"
	RoleSG         Role = "sg"
	RoleTresorier  Role = "tresorier"
	RoleAgent      Role = "agent"
	RoleCommission Role = "commission"
	RoleRegional   Role = "regional"
	RoleMedecin    Role = "medecin"
	// RolePublic is only meaningful in an allowed set: it admits anonymous sessions.
	RolePublic Role = "public"
)

// DefaultRole is held by authenticated users without a persisted role row.
const DefaultRole = RoleMedecin

// Roles lists every role a session can hold, excluding RolePublic.
var Roles = []Role{
	RoleAdmin, RolePresident, RoleSG, RoleTresorier, RoleAgent,
	RoleCommission, RoleRegional, RoleMedecin,
}

// storedRoles maps raw user_roles.role values to the vocabulary.
var storedRoles = map[string]Role{
	"super_admin": RoleAdmin,
	"approver":    RoleCommission,
	"treasurer":   RoleTresorier,
}

// TranslateStoredRole maps a persisted raw role value to a Role.
// Unmapped values collapse to DefaultRole.
func TranslateStoredRole(raw string) Role {
	if r, ok := storedRoles[raw]; ok {
		return r
	}
	return DefaultRole
}

// ParseRole parses a session role token. RolePublic is not a session role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// ParseAllowed parses a comma separated allowed set. RolePublic is accepted.
// Unknown names are returned separately.
func ParseAllowed(csv string) (allowed []Role, unknown []string) {
	for _, part := range strings.Split(csv, ",") {
		name := strings.TrimSpace(strings.ToLower(part))
		if name == "" {
			continue
		}
		if Role(name) == RolePublic {
			allowed = append(allowed, RolePublic)
			continue
		}
		if r, ok := ParseRole(name); ok {
			allowed = append(allowed, r)
			continue
		}
		unknown = append(unknown, part)
	}
	return allowed, unknown
}

func contains(set []Role, r Role) bool {
	for _, candidate := range set {
		if candidate == r {
			return true
		}
	}
	return false
}
