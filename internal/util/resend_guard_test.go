package util

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGuard(t *testing.T, ttl time.Duration) (*ResendGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewResendGuard(rdb, ttl, zap.NewNop()), mr
}

func TestResendGuardAcquireOnce(t *testing.T) {
	t.Parallel()
	guard, _ := newTestGuard(t, time.Minute)
	ctx := context.Background()

	assert.True(t, guard.AcquireOnce(ctx, "jane@example.com"), "first acquire must pass")
	assert.False(t, guard.AcquireOnce(ctx, "jane@example.com"), "second acquire inside the window must be throttled")
	assert.True(t, guard.AcquireOnce(ctx, "other@example.com"), "addresses are throttled independently")
}

func TestResendGuardWindowExpires(t *testing.T) {
	t.Parallel()
	guard, mr := newTestGuard(t, time.Minute)
	ctx := context.Background()

	require.True(t, guard.AcquireOnce(ctx, "jane@example.com"))
	mr.FastForward(2 * time.Minute)
	assert.True(t, guard.AcquireOnce(ctx, "jane@example.com"), "slot frees after the TTL")
}

func TestResendGuardFailsOpenOnRedisOutage(t *testing.T) {
	t.Parallel()
	guard, mr := newTestGuard(t, time.Minute)
	mr.Close()

	// Redis being down must not block subscriptions.
	assert.True(t, guard.AcquireOnce(context.Background(), "jane@example.com"))
}
