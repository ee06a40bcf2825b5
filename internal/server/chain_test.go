package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

func TestBuildChainSkipsDisabledItems(t *testing.T) {
	chain, err := BuildChain(context.Background(), logger.NewNop(), &types.MiddlewaresConfig{
		Enabled:   true,
		Recovery:  &types.MiddlewareItemConfig{Enabled: true, Weight: 10},
		Logging:   &types.MiddlewareItemConfig{Enabled: false, Weight: 20},
		BodyLimit: &types.MiddlewareItemConfig{Enabled: true, Weight: 40},
	})
	require.NoError(t, err)

	names := make([]string, 0, len(chain.entries))
	for _, mw := range chain.entries {
		names = append(names, mw.Name())
	}
	assert.Equal(t, []string{"recovery", "body-limit"}, names)
}

func TestBuildChainDisabledSwitchYieldsEmptyChain(t *testing.T) {
	chain, err := BuildChain(context.Background(), logger.NewNop(), &types.MiddlewaresConfig{
		Enabled:  false,
		Recovery: &types.MiddlewareItemConfig{Enabled: true, Weight: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, chain.entries)

	chain, err = BuildChain(context.Background(), logger.NewNop(), nil)
	require.NoError(t, err)
	assert.Empty(t, chain.entries)
}

func TestBuildChainRejectsWeightCollisions(t *testing.T) {
	_, err := BuildChain(context.Background(), logger.NewNop(), &types.MiddlewaresConfig{
		Enabled:   true,
		Recovery:  &types.MiddlewareItemConfig{Enabled: true, Weight: 10},
		BodyLimit: &types.MiddlewareItemConfig{Enabled: true, Weight: 10},
	})

	assert.True(t, types.IsError(err, types.ErrMiddlewareOrderInvalid))
}
