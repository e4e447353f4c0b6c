package auth

// RoleGuard accepts identities whose role is in a fixed set
type RoleGuard struct {
	allowed map[Role]struct{}
}

// NewRoleGuard returns a guard for the given roles. An empty set rejects everyone.
func NewRoleGuard(roles ...Role) *RoleGuard {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return &RoleGuard{allowed: allowed}
}

// Allows is the pure membership test
func (g *RoleGuard) Allows(role Role) bool {
	if g == nil {
		return false
	}
	_, ok := g.allowed[role]
	return ok
}

// Roles returns the allowed predefined roles in GetAllRoles order
func (g *RoleGuard) Roles() []Role {
	if g == nil {
		return nil
	}
	out := make([]Role, 0, len(g.allowed))
	for _, r := range GetAllRoles() {
		if _, ok := g.allowed[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Authorize must run after authentication. A nil identity is an
// authentication failure, never an authorization one.
func (g *RoleGuard) Authorize(identity *Identity) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if !g.Allows(identity.Role) {
		return ErrInsufficientRole.WithFields(map[string]string{
			"role": string(identity.Role),
		})
	}
	return nil
}

// Authorize is a shorthand for NewRoleGuard(allowed...).Authorize(identity)
func Authorize(identity *Identity, allowed ...Role) error {
	return NewRoleGuard(allowed...).Authorize(identity)
}
