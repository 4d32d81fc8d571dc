package external

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAuthenticate_AccessTokenIsPrimaryScheme(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	token := "tok-123"
	require.NoError(t, st.CreateAgent(ctx, &store.Agent{
		ID: "a1", Name: "a1", AccessToken: &token, IsExternal: true,
	}))

	a := New(st, nil, "main")
	id, err := a.Authenticate(ctx, "Bearer tok-123")
	require.NoError(t, err)
	assert.Equal(t, "a1", id)
}

func TestAuthenticate_APIKeyFallbackRequiresExplicitEnable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateAgent(ctx, &store.Agent{
		ID: "a1", Name: "a1", APIKey: "key-abc", IsExternal: true,
	}))

	a := New(st, nil, "main")
	_, err := a.Authenticate(ctx, "key-abc")
	assert.Equal(t, corefail.Precondition, corefail.KindOf(err))

	a.AllowLegacyAPIKey = true
	id, err := a.Authenticate(ctx, "key-abc")
	require.NoError(t, err)
	assert.Equal(t, "a1", id)
}

func TestAuthenticate_RejectsNonExternalAgent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	token := "tok-123"
	require.NoError(t, st.CreateAgent(ctx, &store.Agent{
		ID: "a1", Name: "a1", AccessToken: &token, IsExternal: false,
	}))

	a := New(st, nil, "main")
	_, err := a.Authenticate(ctx, token)
	assert.Equal(t, corefail.Precondition, corefail.KindOf(err))
}

func TestAuthenticate_RejectsEmptyToken(t *testing.T) {
	st := newTestStore(t)
	a := New(st, nil, "main")
	_, err := a.Authenticate(context.Background(), "   ")
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestRateLimiter_AllowsUpToMaxRatePerWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	assert.True(t, rl.Allow("a1"))
	assert.True(t, rl.Allow("a1"))
	assert.False(t, rl.Allow("a1"))
}

func TestRateLimiter_CleanupDropsStaleBuckets(t *testing.T) {
	rl := newRateLimiter(2, time.Millisecond)
	rl.Allow("a1")
	time.Sleep(5 * time.Millisecond)
	rl.cleanup()
	rl.mu.Lock()
	_, ok := rl.buckets["a1"]
	rl.mu.Unlock()
	assert.False(t, ok)
}
