package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storeauth"
)

func TestIdentityResolverResolve(t *testing.T) {
	user := &auth.User{
		ID:           uuid.New(),
		Name:         "Alice Smith",
		Email:        "alice@x.com",
		PasswordHash: "$2a$10$secret-hash",
		Role:         auth.RoleBuyer,
		Phone:        "+6281234567890",
	}

	finder := new(MockUserFinder)
	finder.On("FindByID", mock.Anything, user.ID.String()).Return(user, nil).Once()

	resolver := auth.NewIdentityResolver(finder)
	identity, err := resolver.Resolve(context.Background(), &auth.Claims{UID: user.ID.String(), UserRole: auth.RoleBuyer})
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), identity.ID)
	assert.Equal(t, "Alice Smith", identity.Name)
	assert.Equal(t, "+6281234567890", identity.Phone)

	raw, err := json.Marshal(identity)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-hash")
	assert.NotContains(t, string(raw), "password")

	finder.AssertExpectations(t)
	finder.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestIdentityResolverUserNotFound(t *testing.T) {
	finder := new(MockUserFinder)
	finder.On("FindByID", mock.Anything, "gone").Return(nil, auth.ErrUserNotFound).Once()

	_, err := auth.NewIdentityResolver(finder).Resolve(context.Background(), &auth.Claims{UID: "gone"})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	assert.Equal(t, auth.CategoryNotFound, auth.CategoryOf(err))
	finder.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestIdentityResolverNilRecord(t *testing.T) {
	finder := new(MockUserFinder)
	finder.On("FindByID", mock.Anything, "u1").Return(nil, nil).Once()

	_, err := auth.NewIdentityResolver(finder).Resolve(context.Background(), &auth.Claims{UID: "u1"})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestIdentityResolverDependencyFailure(t *testing.T) {
	cause := errors.New("connection reset by peer")
	finder := new(MockUserFinder)
	finder.On("FindByID", mock.Anything, "u1").Return(nil, cause).Once()

	_, err := auth.NewIdentityResolver(finder).Resolve(context.Background(), &auth.Claims{UID: "u1"})
	assert.ErrorIs(t, err, auth.ErrDependency)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, auth.ErrUserNotFound)
	finder.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestIdentityResolverRequiresSubject(t *testing.T) {
	finder := new(MockUserFinder)
	resolver := auth.NewIdentityResolver(finder)

	_, err := resolver.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)

	_, err = resolver.Resolve(context.Background(), &auth.Claims{})
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)

	finder.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestNewIdentityNil(t *testing.T) {
	assert.Nil(t, auth.NewIdentity(nil))
}

func TestUserJSONOmitsHash(t *testing.T) {
	raw, err := json.Marshal(&auth.User{ID: uuid.New(), Email: "a@x.com", PasswordHash: "$2a$10$secret-hash"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-hash")
}
