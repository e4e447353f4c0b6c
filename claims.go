package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the claim set a token carries: enough to resolve and
// authorize an identity, nothing sensitive.
type Principal struct {
	SubjectID string `json:"sub"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// Claims is the signed JWT payload
type Claims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid"`
	Email    string `json:"email,omitempty"`
	UserRole Role   `json:"role"`
}

// Subject returns the subject claim
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *Claims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role claim
func (c *Claims) Role() Role {
	return c.UserRole
}

// Principal returns the claim set carried by the token
func (c *Claims) Principal() Principal {
	return Principal{
		SubjectID: c.UserID(),
		Email:     c.Email,
		Role:      c.UserRole,
	}
}

// Identity builds an identity from the claims alone, without a store lookup
func (c *Claims) Identity() *Identity {
	return &Identity{
		ID:    c.UserID(),
		Email: c.Email,
		Role:  c.UserRole,
	}
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
