package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storeauth"
)

type authFixture struct {
	clock  *testClock
	tokens *auth.TokenService
	store  *memStore
	sink   *recordingSink
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := newClock()
	return &authFixture{
		clock:  clock,
		tokens: newTokenService(t, clock),
		store:  newMemStore(),
		sink:   &recordingSink{},
	}
}

func (f *authFixture) addUser(t *testing.T, role auth.Role) (*auth.User, string) {
	t.Helper()
	user := &auth.User{
		ID:           uuid.New(),
		Name:         "Alice Smith",
		Email:        uuid.NewString() + "@x.com",
		PasswordHash: "$2a$10$secret",
		Role:         role,
	}
	require.NoError(t, f.store.Insert(context.Background(), user))

	token, _, err := f.tokens.Issue(auth.NewIdentity(user).Principal())
	require.NoError(t, err)
	return user, token
}

func (f *authFixture) authenticator(resolve bool) *auth.Authenticator {
	opts := []auth.AuthenticatorOption{
		auth.WithAuthenticatorLogger(nopLogger{}),
		auth.WithAuthenticatorActivitySink(f.sink),
	}
	if resolve {
		opts = append(opts, auth.WithIdentityResolver(auth.NewIdentityResolver(f.store)))
	}
	return auth.NewAuthenticator(f.tokens, opts...)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"BEARER   abc  ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearerabc", "", false},
		{"abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		token, ok := auth.ExtractToken(tt.header, auth.DefaultAuthScheme)
		assert.Equal(t, tt.ok, ok, "header %q", tt.header)
		assert.Equal(t, tt.token, token, "header %q", tt.header)
	}
}

func TestAuthenticateMissingToken(t *testing.T) {
	f := newAuthFixture(t)
	a := f.authenticator(true)

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		result := a.Authenticate(context.Background(), header)
		assert.False(t, result.Authenticated())
		assert.Equal(t, auth.FailureMissingToken, result.Failure)
		assert.ErrorIs(t, result.Err, auth.ErrMissingToken)
		assert.Nil(t, result.Identity)
	}
}

func TestAuthenticateValidTokenResolvesIdentity(t *testing.T) {
	f := newAuthFixture(t)
	user, token := f.addUser(t, auth.RoleSeller)

	result := f.authenticator(true).Authenticate(context.Background(), "Bearer "+token)
	require.True(t, result.Authenticated(), "err: %v", result.Err)
	assert.Equal(t, auth.FailureNone, result.Failure)
	assert.Equal(t, user.ID.String(), result.Identity.ID)
	assert.Equal(t, "Alice Smith", result.Identity.Name)
	assert.Equal(t, auth.RoleSeller, result.Identity.Role)
	assert.Equal(t, user.ID.String(), result.Claims.UserID())
}

func TestAuthenticateClaimsOnly(t *testing.T) {
	f := newAuthFixture(t)
	user, token := f.addUser(t, auth.RoleBuyer)
	f.store.delete(user.ID.String())

	a := f.authenticator(false)
	assert.False(t, a.ResolvesIdentity())

	result := a.Authenticate(context.Background(), "Bearer "+token)
	require.True(t, result.Authenticated())
	assert.Equal(t, user.ID.String(), result.Identity.ID)
	assert.Equal(t, user.Email, result.Identity.Email)
	assert.Empty(t, result.Identity.Name)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	_, token := f.addUser(t, auth.RoleBuyer)

	f.clock.Advance(16 * time.Minute)

	result := f.authenticator(true).Authenticate(context.Background(), "Bearer "+token)
	assert.False(t, result.Authenticated())
	assert.Equal(t, auth.FailureInvalidToken, result.Failure)
	assert.ErrorIs(t, result.Err, auth.ErrInvalidToken)
	assert.ErrorIs(t, result.Err, auth.ErrTokenExpired)
	assert.Equal(t, auth.ErrInvalidToken.Message, auth.AsError(result.Err).Message)
}

func TestAuthenticateTamperedToken(t *testing.T) {
	f := newAuthFixture(t)
	_, token := f.addUser(t, auth.RoleBuyer)

	tampered := tamperPayload(t, token, `"role":"buyer"`, `"role":"admin"`)
	result := f.authenticator(true).Authenticate(context.Background(), "Bearer "+tampered)
	assert.Equal(t, auth.FailureInvalidToken, result.Failure)
	assert.ErrorIs(t, result.Err, auth.ErrInvalidToken)
	assert.ErrorIs(t, result.Err, auth.ErrTokenSignatureInvalid)
}

func TestAuthenticateDeletedUser(t *testing.T) {
	f := newAuthFixture(t)
	user, token := f.addUser(t, auth.RoleBuyer)
	f.store.delete(user.ID.String())

	result := f.authenticator(true).Authenticate(context.Background(), "Bearer "+token)
	assert.Equal(t, auth.FailureInvalidToken, result.Failure)
	assert.ErrorIs(t, result.Err, auth.ErrInvalidToken)
	assert.ErrorIs(t, result.Err, auth.ErrUserNotFound)
}

func TestAuthenticateDependencyFailure(t *testing.T) {
	f := newAuthFixture(t)
	_, token := f.addUser(t, auth.RoleBuyer)
	f.store.findErr = errors.New("connection refused")

	result := f.authenticator(true).Authenticate(context.Background(), "Bearer "+token)
	assert.False(t, result.Authenticated())
	assert.Equal(t, auth.FailureDependency, result.Failure)
	assert.ErrorIs(t, result.Err, auth.ErrDependency)
	assert.NotErrorIs(t, result.Err, auth.ErrInvalidToken)
	assert.Equal(t, auth.CategoryDependency, auth.CategoryOf(result.Err))
	assert.Empty(t, f.sink.events)
}

func TestAuthenticateRecordsRejections(t *testing.T) {
	f := newAuthFixture(t)
	_, token := f.addUser(t, auth.RoleBuyer)
	a := f.authenticator(true)

	a.Authenticate(context.Background(), "")
	f.clock.Advance(time.Hour)
	a.Authenticate(context.Background(), "Bearer "+token)

	require.Len(t, f.sink.events, 2)
	assert.Equal(t, auth.ActivityEventAuthRejected, f.sink.events[0].EventType)
	assert.Equal(t, "missing_token", f.sink.events[0].Metadata["failure"])
	assert.Equal(t, "MISSING_TOKEN", f.sink.events[0].Metadata["reason"])
	assert.Equal(t, "invalid_token", f.sink.events[1].Metadata["failure"])
	assert.Equal(t, "TOKEN_EXPIRED", f.sink.events[1].Metadata["reason"])
	assert.False(t, f.sink.events[1].OccurredAt.IsZero())
}

func TestAuthenticateCustomScheme(t *testing.T) {
	f := newAuthFixture(t)
	_, token := f.addUser(t, auth.RoleBuyer)

	a := auth.NewAuthenticator(f.tokens, auth.WithAuthScheme("Token"), auth.WithAuthenticatorLogger(nopLogger{}))
	assert.Equal(t, "Token", a.Scheme())

	assert.True(t, a.Authenticate(context.Background(), "Token "+token).Authenticated())
	assert.Equal(t, auth.FailureMissingToken, a.Authenticate(context.Background(), "Bearer "+token).Failure)
}

func TestNewAuthenticatorPanicsWithoutValidator(t *testing.T) {
	assert.Panics(t, func() {
		auth.NewAuthenticator(nil)
	})
}

func TestProtect(t *testing.T) {
	f := newAuthFixture(t)
	buyer, buyerToken := f.addUser(t, auth.RoleBuyer)
	_, adminToken := f.addUser(t, auth.RoleAdmin)
	a := f.authenticator(true)

	errDownstream := errors.New("downstream failed")

	t.Run("passes identity to next", func(t *testing.T) {
		var seen *auth.Identity
		op := a.Protect(nil, func(ctx context.Context) error {
			seen, _ = auth.IdentityFromContext(ctx)
			claims, ok := auth.GetClaims(ctx)
			assert.True(t, ok)
			assert.Equal(t, buyer.ID.String(), claims.UserID())
			return nil
		})

		require.NoError(t, op(context.Background(), "Bearer "+buyerToken))
		require.NotNil(t, seen)
		assert.Equal(t, buyer.ID.String(), seen.ID)
	})

	t.Run("returns next error untouched", func(t *testing.T) {
		op := a.Protect(nil, func(context.Context) error { return errDownstream })
		assert.Same(t, errDownstream, op(context.Background(), "Bearer "+buyerToken))
	})

	t.Run("does not call next without token", func(t *testing.T) {
		called := false
		op := a.Protect(nil, func(context.Context) error { called = true; return nil })

		err := op(context.Background(), "")
		assert.ErrorIs(t, err, auth.ErrMissingToken)
		assert.False(t, called)
	})

	t.Run("guard rejects with forbidden", func(t *testing.T) {
		called := false
		op := a.Protect(auth.NewRoleGuard(auth.RoleAdmin), func(context.Context) error { called = true; return nil })

		err := op(context.Background(), "Bearer "+buyerToken)
		assert.ErrorIs(t, err, auth.ErrInsufficientRole)
		assert.Equal(t, auth.CategoryAuthz, auth.CategoryOf(err))
		assert.False(t, called)

		require.NoError(t, op(context.Background(), "Bearer "+adminToken))
		assert.True(t, called)
	})
}
