package auth

import "strings"

// Role is the user's role
type Role string

const (
	// RoleBuyer can browse and purchase
	RoleBuyer Role = "buyer"
	// RoleSeller can list products
	RoleSeller Role = "seller"
	// RoleAdmin operates the store
	RoleAdmin Role = "admin"
)

// DefaultRole is assigned when registration does not name one
const DefaultRole = RoleBuyer

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsSelfAssignable reports whether a user may pick this role at registration
func (r Role) IsSelfAssignable() bool {
	switch r {
	case RoleBuyer, RoleSeller:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleBuyer,
		RoleSeller,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}
