package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

func TestNewDefaultsToMemory(t *testing.T) {
	impl, err := New(context.Background(), logger.NewNop(), nil, nil)
	require.NoError(t, err)

	_, ok := impl.(*MemoryCache)
	assert.True(t, ok)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(context.Background(), logger.NewNop(), &types.CacheConfig{
		Enabled: true,
		Type:    "memcached",
	}, nil)

	assert.True(t, types.IsError(err, types.ErrCacheTypeUnknown))
}
