package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

// RedisCache stores entries as JSON blobs under a prefixed key with the
// TTL enforced both by redis expiry and an ExpiresAt double-check, so a
// clock-skewed replica never serves a stale payload.
type RedisCache struct {
	logger     types.Logger
	clock      types.Clock
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration

	hits    int64
	misses  int64
	evicted int64
}

type RedisOption func(*RedisCache)

func WithRedisClock(clock types.Clock) RedisOption {
	return func(r *RedisCache) {
		r.clock = clock
	}
}

func NewRedisCache(ctx context.Context, logger types.Logger, config *types.CacheConfig, opts ...RedisOption) (*RedisCache, error) {
	rc := &types.RedisConfig{
		Addr:     "localhost:6379",
		Prefix:   "nexusbd",
		PoolSize: 10,
	}
	if config != nil && config.Redis != nil {
		rc = config.Redis
	}

	cache := &RedisCache{
		logger:     logger,
		clock:      time.Now,
		prefix:     rc.Prefix,
		defaultTTL: DefaultTTL,
		client: redis.NewClient(&redis.Options{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
	}

	if config != nil && config.DefaultTTL > 0 {
		cache.defaultTTL = config.DefaultTTL.Std()
	}
	if cache.prefix == "" {
		cache.prefix = "nexusbd"
	}

	for _, opt := range opts {
		opt(cache)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cache.client.Ping(pingCtx).Err(); err != nil {
		return nil, types.WrapError(err, "failed to connect to redis")
	}

	return cache, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}

	result, err := r.client.Get(ctx, r.buildFullKey(key)).Result()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			atomic.AddInt64(&r.misses, 1)
			return nil, false
		}
		r.logger.Error("failed to get cache entry", zap.String("key", key), zap.Error(err))
		atomic.AddInt64(&r.misses, 1)
		return nil, false
	}

	var entry types.CacheEntry
	if err := utils.Unmarshal([]byte(result), &entry); err != nil {
		r.logger.Error("failed to unmarshal cache entry", zap.String("key", key), zap.Error(err))
		r.client.Del(ctx, r.buildFullKey(key))
		atomic.AddInt64(&r.misses, 1)
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && r.clock().After(entry.ExpiresAt) {
		if err := r.Delete(ctx, key); err != nil {
			r.logger.Error("failed to delete expired cache key", zap.Error(err))
		}
		atomic.AddInt64(&r.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&r.hits, 1)
	return entry.Value, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	now := r.clock()
	entry := &types.CacheEntry{
		Key:       key,
		Value:     value,
		TTL:       ttl,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := utils.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := r.client.Set(ctx, r.buildFullKey(key), data, ttl).Err(); err != nil {
		r.logger.Error("failed to set cache entry", zap.String("key", key), zap.Error(err))
		return types.WrapError(err, "failed to set cache entry")
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := r.client.Del(ctx, r.buildFullKey(key)).Err(); err != nil {
		r.logger.Error("failed to delete cache key", zap.String("key", key), zap.Error(err))
		return types.WrapError(err, "failed to delete cache key")
	}

	atomic.AddInt64(&r.evicted, 1)
	return nil
}

// Sweep is a no-op for redis, expiry is server-side.
func (r *RedisCache) Sweep(_ context.Context) int {
	return 0
}

func (r *RedisCache) Stats() types.CacheStats {
	return types.CacheStats{
		Hits:    atomic.LoadInt64(&r.hits),
		Misses:  atomic.LoadInt64(&r.misses),
		Evicted: atomic.LoadInt64(&r.evicted),
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) buildFullKey(key string) string {
	return r.prefix + ":cache:" + key
}
