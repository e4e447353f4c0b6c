package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted account record
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	Role          Role      `bun:"role,notnull" json:"role"`
	ProfileImage  string    `bun:"profile_image,nullzero" json:"profile_image,omitempty"`
	Phone         string    `bun:"phone,nullzero" json:"phone,omitempty"`
	Address       string    `bun:"address,nullzero" json:"address,omitempty"`
	Verified      bool      `bun:"is_verified,notnull,default:false" json:"is_verified"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Identity is the sanitized user attached to an authenticated request.
// It has no field able to carry a password hash.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	ProfileImage string    `json:"profile_image,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Verified     bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// NewIdentity returns the sanitized view of user
func NewIdentity(user *User) *Identity {
	if user == nil {
		return nil
	}
	return &Identity{
		ID:           user.ID.String(),
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		ProfileImage: user.ProfileImage,
		Phone:        user.Phone,
		Address:      user.Address,
		Verified:     user.Verified,
		CreatedAt:    user.CreatedAt,
	}
}

// Principal returns the claim set for this identity
func (i *Identity) Principal() Principal {
	return Principal{SubjectID: i.ID, Email: i.Email, Role: i.Role}
}

// Session is returned by successful login and registration
type Session struct {
	Identity  *Identity `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
