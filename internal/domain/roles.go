package domain

import "strings"

// Role is the staff or portal role assigned to a user.
type Role string

const (
	RoleSuperAdmin     Role = "SUPERADMIN"
	RoleAdmin          Role = "ADMIN"
	RoleClaimsManager  Role = "CLAIMS_MANAGER"
	RoleAccountManager Role = "ACCOUNT_MANAGER"
	RoleClientAdmin    Role = "CLIENT_ADMIN"
	RoleAffiliate      Role = "AFFILIATE"
)

// AllRoles lists every role in ascending bit order.
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleClaimsManager,
	RoleAccountManager,
	RoleClientAdmin,
	RoleAffiliate,
}

// RoleSet is a bitset of roles. The zero value contains nothing.
type RoleSet uint16

func (r Role) bit() RoleSet {
	for i, known := range AllRoles {
		if known == r {
			return 1 << uint(i)
		}
	}
	return 0
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool { return r.bit() != 0 }

// ParseRole normalizes a role string. Unknown values yield ("", false).
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

func Roles(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= r.bit()
	}
	return s
}

// Has reports membership. Unknown roles are never members.
func (s RoleSet) Has(r Role) bool {
	b := r.bit()
	return b != 0 && s&b != 0
}

func (s RoleSet) Union(other RoleSet) RoleSet { return s | other }

// List returns the members in AllRoles order.
func (s RoleSet) List() []Role {
	out := make([]Role, 0, len(AllRoles))
	for _, r := range AllRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Named role tiers.
var (
	TopAdmin            = Roles(RoleSuperAdmin)
	SeniorClaimManagers = Roles(RoleSuperAdmin, RoleAdmin, RoleClaimsManager)
	BrokerEmployees     = Roles(RoleSuperAdmin, RoleAdmin, RoleClaimsManager, RoleAccountManager)
	ScopedRoles         = Roles(RoleClientAdmin, RoleAffiliate)
	InsurerManagers     = Roles(RoleSuperAdmin, RoleAdmin)
)
