package auth

import (
	"context"
	"errors"
)

// IdentityResolver turns verified claims into a live, sanitized identity.
// A subject deleted after issuance stops authenticating here even while its
// token is unexpired.
type IdentityResolver struct {
	finder UserFinder
}

// NewIdentityResolver returns a resolver backed by finder
func NewIdentityResolver(finder UserFinder) *IdentityResolver {
	return &IdentityResolver{finder: finder}
}

// Resolve looks the subject up exactly once. It fails with ErrUserNotFound
// when the record is gone and with ErrDependency when the lookup itself fails.
func (r *IdentityResolver) Resolve(ctx context.Context, claims *Claims) (*Identity, error) {
	if claims == nil || claims.UserID() == "" {
		return nil, ErrTokenMalformed.WithMessage("claims carry no subject")
	}

	user, err := r.finder.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound.Wrap(err)
		}
		return nil, ErrDependency.Wrap(err)
	}

	if user == nil {
		return nil, ErrUserNotFound
	}

	return NewIdentity(user), nil
}
