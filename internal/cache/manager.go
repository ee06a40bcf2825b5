package cache

import (
	"context"
	"time"

	"github.com/T9Tuco/NexusBD/internal/metrics"
	"github.com/T9Tuco/NexusBD/internal/types"
)

// MetricsRecorder is the slice of the metrics manager the cache needs.
type MetricsRecorder interface {
	Counter(name string, labels map[string]string) metrics.Counter
	Histogram(name string, buckets []float64, labels map[string]string) metrics.Histogram
}

func New(ctx context.Context, logger types.Logger, config *types.CacheConfig, recorder MetricsRecorder) (types.ResponseCache, error) {
	if config == nil || !config.Enabled {
		config = &types.CacheConfig{Enabled: true, Type: "memory", DefaultTTL: types.Duration(DefaultTTL)}
	}

	var impl types.ResponseCache
	var err error

	switch config.Type {
	case "memory", "":
		impl = NewMemoryCache(logger, config)
	case "redis":
		impl, err = NewRedisCache(ctx, logger, config)
	default:
		return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", config.Type)
	}

	if err != nil {
		return nil, err
	}

	if recorder == nil {
		return impl, nil
	}

	return NewInstrumented(impl, recorder), nil
}

type instrumented struct {
	impl     types.ResponseCache
	recorder MetricsRecorder
}

func NewInstrumented(impl types.ResponseCache, recorder MetricsRecorder) types.ResponseCache {
	return &instrumented{impl: impl, recorder: recorder}
}

func (i *instrumented) Get(ctx context.Context, key string) (interface{}, bool) {
	start := time.Now()
	value, exists := i.impl.Get(ctx, key)

	result := "miss"
	if exists {
		result = "hit"
	}
	i.record("get", result, time.Since(start))

	return value, exists
}

func (i *instrumented) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := i.impl.Set(ctx, key, value, ttl)

	result := "success"
	if err != nil {
		result = "error"
	}
	i.record("set", result, time.Since(start))

	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.impl.Delete(ctx, key)

	result := "success"
	if err != nil {
		result = "error"
	}
	i.record("delete", result, time.Since(start))

	return err
}

func (i *instrumented) Sweep(ctx context.Context) int {
	return i.impl.Sweep(ctx)
}

func (i *instrumented) Stats() types.CacheStats {
	return i.impl.Stats()
}

func (i *instrumented) Close() error {
	return i.impl.Close()
}

func (i *instrumented) record(operation, result string, duration time.Duration) {
	i.recorder.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	}).Inc()

	i.recorder.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	).Observe(duration.Seconds())
}
