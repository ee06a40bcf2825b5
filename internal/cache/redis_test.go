package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

func newTestRedisCache(t *testing.T, opts ...RedisOption) *RedisCache {
	t.Helper()

	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(context.Background(), logger.NewNop(), &types.CacheConfig{
		Redis: &types.RedisConfig{
			Addr:   mr.Addr(),
			Prefix: "test",
		},
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return cache
}

func TestRedisCacheSetGet(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "auth:abc", "bot-user", time.Minute))

	value, hit := cache.Get(ctx, "auth:abc")
	assert.True(t, hit)
	assert.Equal(t, "bot-user", value)

	// Miss
	_, hit = cache.Get(ctx, "auth:other")
	assert.False(t, hit)
}

func TestRedisCacheRejectsEmptyKey(t *testing.T) {
	cache := newTestRedisCache(t)

	err := cache.Set(context.Background(), "", "v", time.Minute)
	assert.ErrorIs(t, err, types.ErrCacheKeyEmpty)
}

func TestRedisCacheExpiryDoubleCheck(t *testing.T) {
	clock := newFakeClock()
	cache := newTestRedisCache(t, WithRedisClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "guilds:abc", "payload", time.Minute))

	_, hit := cache.Get(ctx, "guilds:abc")
	assert.True(t, hit)

	// Even before redis expires the key, a payload past its recorded
	// ExpiresAt is treated as a miss and removed.
	clock.Advance(2 * time.Minute)

	_, hit = cache.Get(ctx, "guilds:abc")
	assert.False(t, hit)
}

func TestRedisCacheDelete(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, cache.Delete(ctx, "k"))

	_, hit := cache.Get(ctx, "k")
	assert.False(t, hit)
}

func TestRedisCacheStatsCounters(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))

	cache.Get(ctx, "k")
	cache.Get(ctx, "missing")

	stats := cache.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}
