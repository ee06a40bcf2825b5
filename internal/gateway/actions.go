package gateway

import (
	"context"

	"github.com/T9Tuco/NexusBD/internal/events"
	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

const (
	ActionAuthenticate      = "authenticate"
	ActionFetchGuilds       = "fetchGuilds"
	ActionFetchGuildDetails = "fetchGuildDetails"
	ActionFetchMembers      = "fetchMembers"
	ActionFetchChannels     = "fetchChannels"
	ActionFetchMessages     = "fetchMessages"
	ActionSendMessage       = "sendMessage"
	ActionFetchDMChannels   = "fetchDMChannels"
	ActionCreateDM          = "createDM"
	ActionFetchStats        = "fetchStats"
)

type fieldCheck struct {
	missing func(*types.ActionRequest) bool
	message string
}

// actionSpec declares everything the dispatcher needs to run one
// action: parameter checks, cache policy, the upstream invocation, the
// degraded fallback and the event emitted on success.
type actionSpec struct {
	name     string
	checks   []fieldCheck
	cacheKey func(*types.ActionRequest) string
	degrade  bool
	empty    func() interface{}
	event    string
	invoke   func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error)
}

var (
	needGuildID = fieldCheck{
		missing: func(r *types.ActionRequest) bool { return r.GuildID == "" },
		message: "Guild ID is required",
	}
	needChannelID = fieldCheck{
		missing: func(r *types.ActionRequest) bool { return r.ChannelID == "" },
		message: "Channel ID is required",
	}
	needChannelAndContent = fieldCheck{
		missing: func(r *types.ActionRequest) bool { return r.ChannelID == "" || r.Content == "" },
		message: "Channel ID and content are required",
	}
	needRecipientID = fieldCheck{
		missing: func(r *types.ActionRequest) bool { return r.RecipientID == "" },
		message: "Recipient ID is required",
	}
)

func emptyList() interface{} {
	return []interface{}{}
}

var actionTable = map[string]*actionSpec{
	ActionAuthenticate: {
		name: ActionAuthenticate,
		cacheKey: func(r *types.ActionRequest) string {
			return "auth:" + utils.TokenID(r.Token)
		},
		event: events.EventAuthedUser,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			user, err := g.api.Me(ctx, req.Token)
			if err != nil {
				return nil, err
			}
			return user, nil
		},
	},
	ActionFetchGuilds: {
		name: ActionFetchGuilds,
		cacheKey: func(r *types.ActionRequest) string {
			return "guilds:" + utils.TokenID(r.Token)
		},
		degrade: true,
		empty:   emptyList,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			guilds, err := g.api.Guilds(ctx, req.Token)
			if err != nil {
				return nil, err
			}
			return guilds, nil
		},
	},
	ActionFetchGuildDetails: {
		name:   ActionFetchGuildDetails,
		checks: []fieldCheck{needGuildID},
		cacheKey: func(r *types.ActionRequest) string {
			return "guild-details:" + utils.TokenID(r.Token) + ":" + r.GuildID
		},
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			detail, err := g.api.Guild(ctx, req.Token, req.GuildID)
			if err != nil {
				return nil, err
			}
			return detail, nil
		},
	},
	ActionFetchMembers: {
		name:   ActionFetchMembers,
		checks: []fieldCheck{needGuildID},
		cacheKey: func(r *types.ActionRequest) string {
			return "members:" + utils.TokenID(r.Token) + ":" + r.GuildID
		},
		degrade: true,
		empty:   emptyList,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			members, err := g.api.Members(ctx, req.Token, req.GuildID)
			if err != nil {
				return nil, err
			}
			return members, nil
		},
	},
	ActionFetchChannels: {
		name:   ActionFetchChannels,
		checks: []fieldCheck{needGuildID},
		cacheKey: func(r *types.ActionRequest) string {
			return "channels:" + utils.TokenID(r.Token) + ":" + r.GuildID
		},
		degrade: true,
		empty:   emptyList,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			channels, err := g.api.Channels(ctx, req.Token, req.GuildID)
			if err != nil {
				return nil, err
			}
			return channels, nil
		},
	},
	ActionFetchMessages: {
		name:    ActionFetchMessages,
		checks:  []fieldCheck{needChannelID},
		degrade: true,
		empty:   emptyList,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			messages, err := g.api.Messages(ctx, req.Token, req.ChannelID)
			if err != nil {
				return nil, err
			}
			return messages, nil
		},
	},
	ActionSendMessage: {
		name:   ActionSendMessage,
		checks: []fieldCheck{needChannelAndContent},
		event:  events.EventMessageSent,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			message, err := g.api.SendMessage(ctx, req.Token, req.ChannelID, req.Content)
			if err != nil {
				return nil, err
			}
			return message, nil
		},
	},
	ActionFetchDMChannels: {
		name: ActionFetchDMChannels,
		cacheKey: func(r *types.ActionRequest) string {
			return "dms:" + utils.TokenID(r.Token)
		},
		degrade: true,
		empty:   emptyList,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			channels, err := g.api.DMChannels(ctx, req.Token)
			if err != nil {
				return nil, err
			}
			return channels, nil
		},
	},
	ActionCreateDM: {
		name:   ActionCreateDM,
		checks: []fieldCheck{needRecipientID},
		event:  events.EventDMCreated,
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			channel, err := g.api.CreateDM(ctx, req.Token, req.RecipientID)
			if err != nil {
				return nil, err
			}
			return channel, nil
		},
	},
	ActionFetchStats: {
		name:    ActionFetchStats,
		degrade: true,
		empty: func() interface{} {
			return emptyStats()
		},
		invoke: func(ctx context.Context, g *Gateway, req *types.ActionRequest) (interface{}, error) {
			stats, err := g.collectStats(ctx, req.Token)
			if err != nil {
				return nil, err
			}
			return stats, nil
		},
	},
}
