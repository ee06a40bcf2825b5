package discord

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

// API is the slice of the Discord REST surface the gateway dispatches
// to. The concrete client lives behind it so tests can substitute a
// scripted upstream.
type API interface {
	Me(ctx context.Context, token string) (*User, error)
	Guilds(ctx context.Context, token string) ([]Guild, error)
	Guild(ctx context.Context, token, guildID string) (*GuildDetail, error)
	Members(ctx context.Context, token, guildID string) ([]Member, error)
	Channels(ctx context.Context, token, guildID string) ([]Channel, error)
	Messages(ctx context.Context, token, channelID string) ([]Message, error)
	SendMessage(ctx context.Context, token, channelID, content string) (*Message, error)
	DMChannels(ctx context.Context, token string) ([]Channel, error)
	CreateDM(ctx context.Context, token, recipientID string) (*Channel, error)
}

type Client struct {
	logger    types.Logger
	client    *fasthttp.Client
	baseURL   string
	userAgent string
	timeout   time.Duration
}

func NewClient(logger types.Logger, config *types.DiscordConfig) *Client {
	if config == nil {
		config = &types.DiscordConfig{
			APIBase:        "https://discord.com/api/v10",
			RequestTimeout: 15,
			MaxConns:       128,
		}
	}

	timeout := time.Duration(config.RequestTimeout) * time.Second

	return &Client{
		logger:    logger,
		baseURL:   config.APIBase,
		userAgent: config.UserAgent,
		timeout:   timeout,
		client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxConnsPerHost:     config.MaxConns,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.call(ctx, token, fasthttp.MethodGet, "/users/@me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Guilds(ctx context.Context, token string) ([]Guild, error) {
	var guilds []Guild
	if err := c.call(ctx, token, fasthttp.MethodGet, "/users/@me/guilds", nil, &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

func (c *Client) Guild(ctx context.Context, token, guildID string) (*GuildDetail, error) {
	var detail GuildDetail
	path := fmt.Sprintf("/guilds/%s?with_counts=true", url.PathEscape(guildID))
	if err := c.call(ctx, token, fasthttp.MethodGet, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) Members(ctx context.Context, token, guildID string) ([]Member, error) {
	var members []Member
	path := fmt.Sprintf("/guilds/%s/members?limit=1000", url.PathEscape(guildID))
	if err := c.call(ctx, token, fasthttp.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) Channels(ctx context.Context, token, guildID string) ([]Channel, error) {
	var channels []Channel
	path := fmt.Sprintf("/guilds/%s/channels", url.PathEscape(guildID))
	if err := c.call(ctx, token, fasthttp.MethodGet, path, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *Client) Messages(ctx context.Context, token, channelID string) ([]Message, error) {
	var messages []Message
	path := fmt.Sprintf("/channels/%s/messages?limit=50", url.PathEscape(channelID))
	if err := c.call(ctx, token, fasthttp.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, token, channelID, content string) (*Message, error) {
	var message Message
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	body := map[string]string{"content": content}
	if err := c.call(ctx, token, fasthttp.MethodPost, path, body, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) DMChannels(ctx context.Context, token string) ([]Channel, error) {
	var channels []Channel
	if err := c.call(ctx, token, fasthttp.MethodGet, "/users/@me/channels", nil, &channels); err != nil {
		return nil, err
	}

	dms := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type == ChannelTypeDM {
			dms = append(dms, ch)
		}
	}
	return dms, nil
}

func (c *Client) CreateDM(ctx context.Context, token, recipientID string) (*Channel, error) {
	var channel Channel
	body := map[string]string{"recipient_id": recipientID}
	if err := c.call(ctx, token, fasthttp.MethodPost, "/users/@me/channels", body, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (c *Client) call(ctx context.Context, token, method, path string, data interface{}, target interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bot "+token)
	if c.userAgent != "" {
		req.Header.SetUserAgent(c.userAgent)
	}

	if data != nil {
		jsonData, err := utils.Marshal(data)
		if err != nil {
			release()
			return types.WrapError(err, "failed to marshal request data")
		}
		req.SetBody(jsonData)
		req.Header.SetContentType("application/json")
	}

	done := make(chan error, 1)
	go func() {
		done <- c.client.DoTimeout(req, resp, c.timeout)
	}()

	select {
	case err := <-done:
		if err != nil {
			release()
			return types.Errorf(types.ErrUpstreamFailed, "%s %s: %v", method, path, err)
		}
	case <-ctx.Done():
		// DoTimeout may still be writing into the pooled objects,
		// hand them back only once it returns.
		go func() {
			<-done
			release()
		}()
		return types.WrapError(ctx.Err(), "discord request cancelled")
	}

	defer release()

	status := resp.StatusCode()
	body := resp.Body()

	if status == fasthttp.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(body)}
	}

	if status < 200 || status >= 300 {
		c.logger.Debug("Discord request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status))
		return &UpstreamError{Status: status, Message: parseAPIMessage(body, status)}
	}

	if target == nil || len(body) == 0 {
		return nil
	}

	if err := utils.Unmarshal(body, target); err != nil {
		return types.Errorf(types.ErrUpstreamDecode, "%s %s: %v", method, path, err)
	}

	return nil
}

// parseRetryAfter reads retry_after seconds from a 429 body, defaulting
// to one second when the field is missing or malformed.
func parseRetryAfter(body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := utils.Unmarshal(body, &payload); err != nil || payload.RetryAfter <= 0 {
		return time.Second
	}
	return time.Duration(payload.RetryAfter * float64(time.Second))
}

func parseAPIMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("Discord API error: %d", status)
}
