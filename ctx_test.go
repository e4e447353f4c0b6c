package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storeauth"
)

func TestIdentityContext(t *testing.T) {
	_, ok := auth.IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := auth.WithIdentity(context.Background(), nil)
	_, ok = auth.IdentityFromContext(ctx)
	assert.False(t, ok)

	identity := &auth.Identity{ID: "u-1", Email: "alice@x.com", Role: auth.RoleSeller}
	ctx = auth.WithIdentity(context.Background(), identity)

	got, ok := auth.IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, identity, got)
}

func TestClaimsContext(t *testing.T) {
	_, ok := auth.GetClaims(context.Background())
	assert.False(t, ok)

	ts := newTokenService(t, newClock())
	token, _, err := ts.Issue(testPrincipal(auth.RoleBuyer))
	require.NoError(t, err)
	claims, err := ts.Validate(token)
	require.NoError(t, err)

	ctx := auth.WithClaimsContext(context.Background(), claims)
	got, ok := auth.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, claims.UserID(), got.UserID())
}

func TestAuthResultContext(t *testing.T) {
	result := auth.AuthResult{
		Identity: &auth.Identity{ID: "u-1", Role: auth.RoleBuyer},
		Claims:   &auth.Claims{UID: "u-1", UserRole: auth.RoleBuyer},
	}
	ctx := result.Context(context.Background())

	_, ok := auth.IdentityFromContext(ctx)
	assert.True(t, ok)
	_, ok = auth.GetClaims(ctx)
	assert.True(t, ok)

	empty := auth.AuthResult{}.Context(context.Background())
	_, ok = auth.IdentityFromContext(empty)
	assert.False(t, ok)
}

func TestHasRole(t *testing.T) {
	assert.False(t, auth.HasRole(context.Background(), auth.RoleAdmin))

	ctx := auth.WithIdentity(context.Background(), &auth.Identity{ID: "u-1", Role: auth.RoleSeller})
	assert.True(t, auth.HasRole(ctx, auth.RoleSeller))
	assert.True(t, auth.HasRole(ctx, auth.RoleBuyer, auth.RoleSeller))
	assert.False(t, auth.HasRole(ctx, auth.RoleAdmin))
	assert.False(t, auth.HasRole(ctx))
}
