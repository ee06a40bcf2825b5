package gateway

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/T9Tuco/NexusBD/internal/cache"
	"github.com/T9Tuco/NexusBD/internal/discord"
	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

var testToken = strings.Repeat("x", 60)

type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	me          func() (*discord.User, error)
	guilds      func() ([]discord.Guild, error)
	guild       func(guildID string) (*discord.GuildDetail, error)
	members     func(guildID string) ([]discord.Member, error)
	channels    func(guildID string) ([]discord.Channel, error)
	messages    func(channelID string) ([]discord.Message, error)
	sendMessage func(channelID, content string) (*discord.Message, error)
	dmChannels  func() ([]discord.Channel, error)
	createDM    func(recipientID string) (*discord.Channel, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int)}
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeAPI) Me(_ context.Context, _ string) (*discord.User, error) {
	f.count("me")
	if f.me == nil {
		return &discord.User{ID: "1", Username: "bot"}, nil
	}
	return f.me()
}

func (f *fakeAPI) Guilds(_ context.Context, _ string) ([]discord.Guild, error) {
	f.count("guilds")
	if f.guilds == nil {
		return []discord.Guild{{ID: "g1", Name: "guild"}}, nil
	}
	return f.guilds()
}

func (f *fakeAPI) Guild(_ context.Context, _, guildID string) (*discord.GuildDetail, error) {
	f.count("guild")
	if f.guild == nil {
		return &discord.GuildDetail{ID: guildID, Name: "guild"}, nil
	}
	return f.guild(guildID)
}

func (f *fakeAPI) Members(_ context.Context, _, guildID string) ([]discord.Member, error) {
	f.count("members")
	if f.members == nil {
		return []discord.Member{}, nil
	}
	return f.members(guildID)
}

func (f *fakeAPI) Channels(_ context.Context, _, guildID string) ([]discord.Channel, error) {
	f.count("channels")
	if f.channels == nil {
		return []discord.Channel{}, nil
	}
	return f.channels(guildID)
}

func (f *fakeAPI) Messages(_ context.Context, _, channelID string) ([]discord.Message, error) {
	f.count("messages")
	if f.messages == nil {
		return []discord.Message{}, nil
	}
	return f.messages(channelID)
}

func (f *fakeAPI) SendMessage(_ context.Context, _, channelID, content string) (*discord.Message, error) {
	f.count("sendMessage")
	if f.sendMessage == nil {
		return &discord.Message{ID: "m1", ChannelID: channelID, Content: content}, nil
	}
	return f.sendMessage(channelID, content)
}

func (f *fakeAPI) DMChannels(_ context.Context, _ string) ([]discord.Channel, error) {
	f.count("dmChannels")
	if f.dmChannels == nil {
		return []discord.Channel{}, nil
	}
	return f.dmChannels()
}

func (f *fakeAPI) CreateDM(_ context.Context, _, recipientID string) (*discord.Channel, error) {
	f.count("createDM")
	if f.createDM == nil {
		return &discord.Channel{ID: "dm1", Type: discord.ChannelTypeDM}, nil
	}
	return f.createDM(recipientID)
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return nil
}

func newTestGateway(t *testing.T, api discord.API, opts ...Option) *Gateway {
	t.Helper()

	responseCache := cache.NewMemoryCache(logger.NewNop(), nil)
	t.Cleanup(func() { _ = responseCache.Close() })

	base := []Option{WithSleeper((&recordingSleeper{}).sleep)}
	return New(logger.NewNop(), api, responseCache, nil, append(base, opts...)...)
}

func TestDispatchRequiresToken(t *testing.T) {
	api := newFakeAPI()
	g := newTestGateway(t, api)

	result := g.Dispatch(context.Background(), &types.ActionRequest{Action: ActionFetchGuilds})

	assert.Equal(t, fasthttp.StatusBadRequest, result.Status)
	assert.Equal(t, "Token is required", result.Err)
	assert.Zero(t, api.totalCalls())
}

func TestDispatchRejectsShortToken(t *testing.T) {
	api := newFakeAPI()
	g := newTestGateway(t, api)

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action: ActionFetchGuilds,
		Token:  "too-short",
	})

	assert.Equal(t, fasthttp.StatusBadRequest, result.Status)
	assert.Equal(t, "Invalid token format", result.Err)
	assert.Zero(t, api.totalCalls())
}

func TestDispatchRejectsUnknownAction(t *testing.T) {
	api := newFakeAPI()
	g := newTestGateway(t, api)

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action: "deleteEverything",
		Token:  testToken,
	})

	assert.Equal(t, fasthttp.StatusBadRequest, result.Status)
	assert.Equal(t, "Invalid action", result.Err)
	assert.Zero(t, api.totalCalls())
}

func TestDispatchValidatesActionFields(t *testing.T) {
	cases := []struct {
		name    string
		request *types.ActionRequest
		message string
	}{
		{
			name:    "members without guild",
			request: &types.ActionRequest{Action: ActionFetchMembers, Token: testToken},
			message: "Guild ID is required",
		},
		{
			name:    "guild details without guild",
			request: &types.ActionRequest{Action: ActionFetchGuildDetails, Token: testToken},
			message: "Guild ID is required",
		},
		{
			name:    "messages without channel",
			request: &types.ActionRequest{Action: ActionFetchMessages, Token: testToken},
			message: "Channel ID is required",
		},
		{
			name:    "send without content",
			request: &types.ActionRequest{Action: ActionSendMessage, Token: testToken, ChannelID: "c1"},
			message: "Channel ID and content are required",
		},
		{
			name:    "dm without recipient",
			request: &types.ActionRequest{Action: ActionCreateDM, Token: testToken},
			message: "Recipient ID is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			g := newTestGateway(t, api)

			result := g.Dispatch(context.Background(), tc.request)

			assert.Equal(t, fasthttp.StatusBadRequest, result.Status)
			assert.Equal(t, tc.message, result.Err)
			assert.Zero(t, api.totalCalls())
		})
	}
}

func TestDispatchServesSecondCallFromCache(t *testing.T) {
	api := newFakeAPI()
	g := newTestGateway(t, api)

	request := &types.ActionRequest{Action: ActionFetchGuilds, Token: testToken}

	first := g.Dispatch(context.Background(), request)
	second := g.Dispatch(context.Background(), request)

	assert.Equal(t, fasthttp.StatusOK, first.Status)
	assert.Equal(t, fasthttp.StatusOK, second.Status)
	assert.Equal(t, 1, api.callCount("guilds"))
	assert.Equal(t, first.Data, second.Data)
}

func TestDispatchNeverCachesWrites(t *testing.T) {
	api := newFakeAPI()
	g := newTestGateway(t, api)

	request := &types.ActionRequest{
		Action:    ActionSendMessage,
		Token:     testToken,
		ChannelID: "c1",
		Content:   "hello",
	}

	g.Dispatch(context.Background(), request)
	g.Dispatch(context.Background(), request)

	assert.Equal(t, 2, api.callCount("sendMessage"))
}

func TestDispatchNeverCachesMessageReads(t *testing.T) {
	api := newFakeAPI()
	g := newTestGateway(t, api)

	request := &types.ActionRequest{
		Action:    ActionFetchMessages,
		Token:     testToken,
		ChannelID: "c1",
	}

	g.Dispatch(context.Background(), request)
	g.Dispatch(context.Background(), request)

	assert.Equal(t, 2, api.callCount("messages"))
}

func TestDispatchRetriesRateLimits(t *testing.T) {
	api := newFakeAPI()
	attempts := 0
	api.guild = func(guildID string) (*discord.GuildDetail, error) {
		attempts++
		if attempts <= 2 {
			return nil, &discord.RateLimitError{RetryAfter: 2 * time.Second}
		}
		return &discord.GuildDetail{ID: guildID, Name: "guild"}, nil
	}

	sleeper := &recordingSleeper{}
	g := newTestGateway(t, api, WithSleeper(sleeper.sleep))

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action:  ActionFetchGuildDetails,
		Token:   testToken,
		GuildID: "g1",
	})

	require.Equal(t, fasthttp.StatusOK, result.Status)
	assert.Equal(t, 3, api.callCount("guild"))
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeper.waits)
}

func TestDispatchRateLimitFallbackWait(t *testing.T) {
	api := newFakeAPI()
	attempts := 0
	api.guild = func(guildID string) (*discord.GuildDetail, error) {
		attempts++
		if attempts == 1 {
			return nil, &discord.RateLimitError{}
		}
		return &discord.GuildDetail{ID: guildID}, nil
	}

	sleeper := &recordingSleeper{}
	g := newTestGateway(t, api, WithSleeper(sleeper.sleep))

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action:  ActionFetchGuildDetails,
		Token:   testToken,
		GuildID: "g1",
	})

	require.Equal(t, fasthttp.StatusOK, result.Status)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.waits)
}

func TestDispatchExhaustsRetryBudget(t *testing.T) {
	api := newFakeAPI()
	api.guild = func(string) (*discord.GuildDetail, error) {
		return nil, &discord.RateLimitError{RetryAfter: time.Second}
	}

	sleeper := &recordingSleeper{}
	g := newTestGateway(t, api, WithSleeper(sleeper.sleep))

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action:  ActionFetchGuildDetails,
		Token:   testToken,
		GuildID: "g1",
	})

	assert.Equal(t, fasthttp.StatusTooManyRequests, result.Status)
	assert.Equal(t, "Rate limited by Discord", result.Err)
	assert.Equal(t, 5, api.callCount("guild"))
}

func TestDispatchDegradesListActions(t *testing.T) {
	api := newFakeAPI()
	api.guilds = func() ([]discord.Guild, error) {
		return nil, &discord.UpstreamError{Status: 502, Message: "bad gateway"}
	}

	g := newTestGateway(t, api)

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action: ActionFetchGuilds,
		Token:  testToken,
	})

	assert.Equal(t, fasthttp.StatusOK, result.Status)
	assert.Empty(t, result.Err)
	assert.Equal(t, []interface{}{}, result.Data)
	assert.Contains(t, result.Warning, "bad gateway")
}

func TestDispatchPassesThroughClientErrors(t *testing.T) {
	api := newFakeAPI()
	api.me = func() (*discord.User, error) {
		return nil, &discord.UpstreamError{Status: 401, Message: "401: Unauthorized"}
	}

	g := newTestGateway(t, api)

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action: ActionAuthenticate,
		Token:  testToken,
	})

	assert.Equal(t, 401, result.Status)
	assert.Equal(t, "401: Unauthorized", result.Err)
}

func TestDispatchReportsServerErrorsWithDetails(t *testing.T) {
	api := newFakeAPI()
	api.me = func() (*discord.User, error) {
		return nil, &discord.UpstreamError{Status: 500, Message: "internal"}
	}

	g := newTestGateway(t, api)

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action: ActionAuthenticate,
		Token:  testToken,
	})

	assert.Equal(t, fasthttp.StatusInternalServerError, result.Status)
	assert.NotEmpty(t, result.Err)
	assert.NotEmpty(t, result.Details)
}

type recordingBroker struct {
	mu     sync.Mutex
	events []types.Event
}

func (b *recordingBroker) Publish(event types.Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
	return nil
}

func (b *recordingBroker) Subscribe(string, types.EventHandler) (string, error) { return "", nil }
func (b *recordingBroker) Unsubscribe(string) error                             { return nil }

func TestDispatchPublishesEvents(t *testing.T) {
	api := newFakeAPI()
	broker := &recordingBroker{}
	g := newTestGateway(t, api, WithBroker(broker))

	g.Dispatch(context.Background(), &types.ActionRequest{
		Action:    ActionSendMessage,
		Token:     testToken,
		ChannelID: "c1",
		Content:   "hi",
	})

	require.Len(t, broker.events, 1)
	assert.Equal(t, "message.sent", broker.events[0].Type)
}

// fakeClock drives cache expiry without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDispatchFloorsRetryBudget(t *testing.T) {
	api := newFakeAPI()
	g := New(logger.NewNop(), api, nil, &types.GatewayConfig{TokenMinLength: 50},
		WithSleeper((&recordingSleeper{}).sleep))

	result := g.Dispatch(context.Background(), &types.ActionRequest{
		Action: ActionFetchGuilds,
		Token:  testToken,
	})

	assert.Equal(t, fasthttp.StatusOK, result.Status)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Err)
	assert.Equal(t, 1, api.callCount("guilds"))
}

func TestDispatchRefreshesExpiredCacheEntry(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	responseCache := cache.NewMemoryCache(logger.NewNop(), nil, cache.WithClock(clk.Now))
	t.Cleanup(func() { _ = responseCache.Close() })

	api := newFakeAPI()
	g := New(logger.NewNop(), api, responseCache, nil,
		WithSleeper((&recordingSleeper{}).sleep))

	req := &types.ActionRequest{Action: ActionFetchGuilds, Token: testToken}

	require.Equal(t, fasthttp.StatusOK, g.Dispatch(context.Background(), req).Status)
	require.Equal(t, fasthttp.StatusOK, g.Dispatch(context.Background(), req).Status)
	assert.Equal(t, 1, api.callCount("guilds")) // Second call served from cache

	clk.Advance(61 * time.Second)

	// Expired entry triggers exactly one fresh upstream call.
	result := g.Dispatch(context.Background(), req)
	assert.Equal(t, fasthttp.StatusOK, result.Status)
	assert.Equal(t, 2, api.callCount("guilds"))

	// The refreshed payload is cached again.
	g.Dispatch(context.Background(), req)
	assert.Equal(t, 2, api.callCount("guilds"))
}
