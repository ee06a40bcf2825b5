package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/gateway"
	"github.com/T9Tuco/NexusBD/internal/types"
)

// RegisterJobs wires the standing maintenance jobs: an expired-entry
// cache sweep and an optional stats cache warmer for a configured bot
// token.
func RegisterJobs(m *Manager, logger types.Logger, responseCache types.ResponseCache, gw *gateway.Gateway, config *types.CronConfig) error {
	if config.SweepSpec != "" {
		err := m.Add("cache-sweep", config.SweepSpec, func(ctx context.Context) error {
			removed := responseCache.Sweep(ctx)
			if removed > 0 {
				logger.Debug("Cache sweep removed expired entries", zap.Int("removed", removed))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if config.WarmSpec != "" && config.WarmToken != "" {
		err := m.Add("stats-warm", config.WarmSpec, func(ctx context.Context) error {
			result := gw.Dispatch(ctx, &types.ActionRequest{
				Action: gateway.ActionFetchStats,
				Token:  config.WarmToken,
			})
			if result.Err != "" {
				return types.Errorf(types.ErrUpstreamFailed, "stats warm: %s", result.Err)
			}
			if result.Warning != "" {
				logger.Warn("Stats warm completed degraded", zap.String("warning", result.Warning))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
