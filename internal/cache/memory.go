package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
)

const (
	MaxTTL     = 24 * time.Hour
	DefaultTTL = time.Minute
)

// MemoryCache keeps decoded response payloads in a map guarded by an
// RWMutex. Expired entries are removed lazily on Get and in bulk by
// Sweep. The clock is injected so tests can drive expiry directly.
type MemoryCache struct {
	logger     types.Logger
	clock      types.Clock
	maxEntries int
	defaultTTL time.Duration

	data      map[string]*types.CacheEntry
	order     []string
	mu        sync.RWMutex
	entryPool sync.Pool

	hits    int64
	misses  int64
	evicted int64
}

type MemoryOption func(*MemoryCache)

func WithClock(clock types.Clock) MemoryOption {
	return func(m *MemoryCache) {
		m.clock = clock
	}
}

func NewMemoryCache(logger types.Logger, config *types.CacheConfig, opts ...MemoryOption) *MemoryCache {
	m := &MemoryCache{
		logger:     logger,
		clock:      time.Now,
		maxEntries: 10000,
		defaultTTL: DefaultTTL,
		data:       make(map[string]*types.CacheEntry),
		order:      make([]string, 0, 64),
		entryPool: sync.Pool{
			New: func() interface{} {
				return &types.CacheEntry{}
			},
		},
	}

	if config != nil {
		if config.MaxEntries > 0 {
			m.maxEntries = config.MaxEntries
		}
		if config.DefaultTTL > 0 {
			m.defaultTTL = config.DefaultTTL.Std()
		}
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	now := m.clock()

	m.mu.RLock()
	entry, exists := m.data[key]
	if !exists {
		m.mu.RUnlock()
		atomic.AddInt64(&m.misses, 1)
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
		m.mu.RUnlock()
		m.mu.Lock()
		if entry, exists := m.data[key]; exists && now.After(entry.ExpiresAt) {
			m.removeEntryUnsafe(key)
			m.entryPool.Put(entry)
		}
		m.mu.Unlock()

		atomic.AddInt64(&m.misses, 1)
		return nil, false
	}

	value := entry.Value
	m.mu.RUnlock()

	atomic.AddInt64(&m.hits, 1)
	return value, true
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	now := m.clock()
	entry := m.entryPool.Get().(*types.CacheEntry)
	entry.Key = key
	entry.Value = value
	entry.TTL = ttl
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, exists := m.data[key]; exists {
		m.entryPool.Put(old)
		m.data[key] = entry
		return nil
	}

	if m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		m.evictOldestUnsafe()
	}

	m.data[key] = entry
	m.order = append(m.order, key)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.data[key]; exists {
		m.removeEntryUnsafe(key)
		m.entryPool.Put(entry)
	}
	return nil
}

// Sweep drops every expired entry and reports how many were removed.
func (m *MemoryCache) Sweep(_ context.Context) int {
	now := m.clock()
	removed := 0

	m.mu.Lock()
	for key, entry := range m.data {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			m.removeEntryUnsafe(key)
			m.entryPool.Put(entry)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 && m.logger != nil {
		m.logger.Debug("Cache sweep completed", zap.Int("removed", removed))
	}

	return removed
}

func (m *MemoryCache) Stats() types.CacheStats {
	m.mu.RLock()
	entries := int64(len(m.data))
	m.mu.RUnlock()

	return types.CacheStats{
		Entries: entries,
		Hits:    atomic.LoadInt64(&m.hits),
		Misses:  atomic.LoadInt64(&m.misses),
		Evicted: atomic.LoadInt64(&m.evicted),
	}
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.data = make(map[string]*types.CacheEntry)
	m.order = m.order[:0]
	m.mu.Unlock()
	return nil
}

// evictOldestUnsafe removes the oldest still-present key, FIFO. Caller
// holds the write lock.
func (m *MemoryCache) evictOldestUnsafe() {
	for len(m.order) > 0 {
		key := m.order[0]
		m.order = m.order[1:]

		if entry, exists := m.data[key]; exists {
			delete(m.data, key)
			m.entryPool.Put(entry)
			atomic.AddInt64(&m.evicted, 1)
			return
		}
	}
}

func (m *MemoryCache) removeEntryUnsafe(key string) {
	delete(m.data, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
