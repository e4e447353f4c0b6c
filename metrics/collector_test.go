package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storeauth"
)

func TestCollectorCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventRegistered}))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Events().WithLabelValues(string(auth.ActivityEventLoginSuccess))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Events().WithLabelValues(string(auth.ActivityEventRegistered))))
}

func TestCollectorCountsRejections(t *testing.T) {
	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventAuthRejected,
		Metadata:  map[string]any{"failure": "invalid_token", "reason": "TOKEN_EXPIRED"},
	}))
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventAuthRejected}))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rejections().WithLabelValues("invalid_token", "TOKEN_EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rejections().WithLabelValues("unknown", "unknown")))
}

func TestNewCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}

func TestCollectorWithAuthenticator(t *testing.T) {
	c, err := NewCollector(nil)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService([]byte("secret"))
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(tokens, auth.WithAuthenticatorActivitySink(c))
	result := authenticator.Authenticate(context.Background(), "")
	assert.False(t, result.Authenticated())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rejections().WithLabelValues("missing_token", auth.ErrMissingToken.TextCode)))
}
