package types

import (
	"context"
	"time"
)

// ResponseCache stores decoded upstream payloads keyed by token identity
// and action parameters. Implementations must treat expired entries as
// absent.
type ResponseCache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Sweep(ctx context.Context) int
	Stats() CacheStats
	Close() error
}

type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Evicted int64 `json:"evicted"`
}

type CacheEntry struct {
	Key       string        `json:"key"`
	Value     interface{}   `json:"value"`
	TTL       time.Duration `json:"ttl"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Clock lets tests drive cache expiry without sleeping.
type Clock func() time.Time
