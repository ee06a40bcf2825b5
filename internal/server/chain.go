package server

import (
	"context"

	"github.com/T9Tuco/NexusBD/internal/types"
)

// BuildChain assembles the middleware chain from config. Disabled
// items are skipped; a disabled top-level switch yields an empty chain.
func BuildChain(ctx context.Context, logger types.Logger, config *types.MiddlewaresConfig) (*MiddlewareManager, error) {
	manager := NewMiddlewareManager(logger)

	if config == nil || !config.Enabled {
		return manager, nil
	}

	if item := config.Recovery; item != nil && item.Enabled {
		if err := manager.Register(NewRecoveryMiddleware(logger, item.Weight)); err != nil {
			return nil, err
		}
	}

	if item := config.Logging; item != nil && item.Enabled {
		if err := manager.Register(NewLoggingMiddlewareFromConfig(logger, item)); err != nil {
			return nil, err
		}
	}

	if item := config.CORS; item != nil && item.Enabled {
		if err := manager.Register(NewCORSMiddleware(logger, item)); err != nil {
			return nil, err
		}
	}

	if item := config.BodyLimit; item != nil && item.Enabled {
		if err := manager.Register(NewBodyLimitMiddleware(logger, item)); err != nil {
			return nil, err
		}
	}

	if item := config.RateLimit; item != nil && item.Enabled {
		if err := manager.Register(NewRateLimitMiddleware(ctx, logger, item)); err != nil {
			return nil, err
		}
	}

	if item := config.Compression; item != nil && item.Enabled {
		if err := manager.Register(NewCompressionMiddleware(logger, item)); err != nil {
			return nil, err
		}
	}

	return manager, nil
}
