package discord

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		name string
		body string
		want time.Duration
	}{
		{
			name: "fractional seconds",
			body: `{"message":"You are being rate limited.","retry_after":2.5,"global":false}`,
			want: 2500 * time.Millisecond,
		},
		{
			name: "whole seconds",
			body: `{"retry_after":7}`,
			want: 7 * time.Second,
		},
		{
			name: "missing field defaults to a second",
			body: `{"message":"rate limited"}`,
			want: time.Second,
		},
		{
			name: "zero defaults to a second",
			body: `{"retry_after":0}`,
			want: time.Second,
		},
		{
			name: "malformed body defaults to a second",
			body: `not json`,
			want: time.Second,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseRetryAfter([]byte(tc.body)))
		})
	}
}

func TestParseAPIMessage(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{
			name:   "message field wins",
			body:   `{"message":"401: Unauthorized","code":0}`,
			status: 401,
			want:   "401: Unauthorized",
		},
		{
			name:   "empty message falls back to status",
			body:   `{"message":""}`,
			status: 403,
			want:   "Discord API error: 403",
		},
		{
			name:   "malformed body falls back to status",
			body:   `<html>bad gateway</html>`,
			status: 502,
			want:   "Discord API error: 502",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseAPIMessage([]byte(tc.body), tc.status))
		})
	}
}

func TestUpstreamErrorMessage(t *testing.T) {
	err := &UpstreamError{Status: 404, Message: "Unknown Guild"}
	assert.Equal(t, "discord api error 404: Unknown Guild", err.Error())
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{RetryAfter: 3 * time.Second}
	assert.Contains(t, err.Error(), "3s")
}

// newTestClient points a real client at an in-process upstream so the
// request path runs end to end.
func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return NewClient(logger.NewNop(), &types.DiscordConfig{
		APIBase:        "http://" + ln.Addr().String(),
		RequestTimeout: 2,
		MaxConns:       4,
	})
}

func TestDMChannelsKeepsOnlyDirectMessages(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "/users/@me/channels", string(ctx.Path()))
		assert.Equal(t, "Bot bot-token", string(ctx.Request.Header.Peek("Authorization")))

		ctx.SetContentType("application/json")
		// Mixed payload: direct messages, a group DM, a guild text
		// channel and an entry missing the type field entirely.
		ctx.SetBodyString(`[
			{"id":"1","type":1,"recipients":[{"id":"u1","username":"alice"}]},
			{"id":"2","type":3,"name":"group chat"},
			{"id":"3","type":1},
			{"id":"4","type":0,"name":"general"},
			{"unexpected":true}
		]`)
	})

	channels, err := c.DMChannels(context.Background(), "bot-token")
	require.NoError(t, err)

	require.Len(t, channels, 2)
	assert.Equal(t, "1", channels[0].ID)
	assert.Equal(t, "3", channels[1].ID)
	for _, ch := range channels {
		assert.Equal(t, ChannelTypeDM, ch.Type)
	}
}

func TestClientSurfacesRateLimit(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		ctx.SetBodyString(`{"retry_after":1.5}`)
	})

	_, err := c.Guilds(context.Background(), "bot-token")

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 1500*time.Millisecond, rateErr.RetryAfter)
}

func TestClientReturnsOnContextCancel(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		time.Sleep(500 * time.Millisecond)
		ctx.SetBodyString(`{}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Me(ctx, "bot-token")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
