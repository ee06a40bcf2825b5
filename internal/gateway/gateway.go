package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/discord"
	"github.com/T9Tuco/NexusBD/internal/metrics"
	"github.com/T9Tuco/NexusBD/internal/types"
)

// MetricsRecorder is the slice of the metrics manager the gateway uses.
type MetricsRecorder interface {
	Counter(name string, labels map[string]string) metrics.Counter
	Histogram(name string, buckets []float64, labels map[string]string) metrics.Histogram
}

// Gateway validates action requests, serves them from the response
// cache when possible and dispatches the rest to the Discord API with a
// bounded rate-limit retry.
type Gateway struct {
	logger    types.Logger
	api       discord.API
	cache     types.ResponseCache
	broker    types.EventBroker
	estimator UsageEstimator
	recorder  MetricsRecorder
	config    *types.GatewayConfig

	// sleep is swappable so tests don't wait out real rate-limit
	// pauses.
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Gateway)

func WithEstimator(estimator UsageEstimator) Option {
	return func(g *Gateway) {
		g.estimator = estimator
	}
}

func WithBroker(broker types.EventBroker) Option {
	return func(g *Gateway) {
		g.broker = broker
	}
}

func WithMetrics(recorder MetricsRecorder) Option {
	return func(g *Gateway) {
		g.recorder = recorder
	}
}

func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) {
		g.sleep = sleep
	}
}

func New(logger types.Logger, api discord.API, cache types.ResponseCache, config *types.GatewayConfig, opts ...Option) *Gateway {
	if config == nil {
		config = &types.GatewayConfig{
			TokenMinLength: 50,
			CacheTTL:       types.Duration(time.Minute),
			MaxAttempts:    5,
			StatsSamples:   3,
			StatsPause:     types.Duration(300 * time.Millisecond),
		}
	}

	// Validation enforces min=1 for loaded configs; hand-built ones
	// still get at least one upstream attempt.
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	g := &Gateway{
		logger:    logger,
		api:       api,
		cache:     cache,
		estimator: NewRandomEstimator(),
		config:    config,
		sleep:     sleepContext,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Dispatch runs one action end to end and returns the rendered result.
// It never panics outward and never returns nil.
func (g *Gateway) Dispatch(ctx context.Context, req *types.ActionRequest) *types.ActionResult {
	start := time.Now()

	result := g.dispatch(ctx, req)

	g.record(req.Action, result, time.Since(start))
	return result
}

func (g *Gateway) dispatch(ctx context.Context, req *types.ActionRequest) *types.ActionResult {
	if req.Token == "" {
		return badRequest("Token is required")
	}

	if len(req.Token) < g.config.TokenMinLength {
		return badRequest("Invalid token format")
	}

	spec, exists := actionTable[req.Action]
	if !exists {
		return badRequest("Invalid action")
	}

	for _, check := range spec.checks {
		if check.missing(req) {
			return badRequest(check.message)
		}
	}

	var cacheKey string
	if spec.cacheKey != nil && g.cache != nil {
		cacheKey = spec.cacheKey(req)
		if value, hit := g.cache.Get(ctx, cacheKey); hit {
			g.logger.Debug("Serving cached response",
				zap.String("action", req.Action),
				zap.String("key", cacheKey))
			return &types.ActionResult{Status: fasthttp.StatusOK, Data: value}
		}
	}

	data, err := g.invokeWithRetry(ctx, spec, req)
	if err != nil {
		return g.renderFailure(spec, err)
	}

	if cacheKey != "" {
		if err := g.cache.Set(ctx, cacheKey, data, g.config.CacheTTL.Std()); err != nil {
			g.logger.Warn("Failed to cache response",
				zap.String("key", cacheKey),
				zap.Error(err))
		}
	}

	g.publish(spec, data)

	return &types.ActionResult{Status: fasthttp.StatusOK, Data: data}
}

func (g *Gateway) invokeWithRetry(ctx context.Context, spec *actionSpec, req *types.ActionRequest) (interface{}, error) {
	return g.withRetry(ctx, spec.name, func(ctx context.Context) (interface{}, error) {
		return spec.invoke(ctx, g, req)
	})
}

// withRetry calls the upstream, waiting out 429s with the window
// Discord supplies. The attempt budget is capped; when Discord omits
// retry_after the wait falls back to an exponential schedule.
func (g *Gateway) withRetry(ctx context.Context, name string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt < g.config.MaxAttempts; attempt++ {
		data, err := fn(ctx)
		if err == nil {
			return data, nil
		}

		var rateErr *discord.RateLimitError
		if !errors.As(err, &rateErr) {
			return nil, err
		}

		lastErr = err
		wait := rateErr.RetryAfter
		if wait <= 0 {
			wait = time.Second << attempt
		}

		g.logger.Warn("Discord rate limited, backing off",
			zap.String("action", name),
			zap.Duration("retry_after", wait),
			zap.Int("attempt", attempt+1))

		if err := g.sleep(ctx, wait); err != nil {
			return nil, types.WrapError(err, "retry wait cancelled")
		}
	}

	return nil, types.WrapError(lastErr, "retry budget exhausted")
}

func (g *Gateway) renderFailure(spec *actionSpec, err error) *types.ActionResult {
	if spec.degrade {
		g.logger.Warn("Upstream failure, serving degraded response",
			zap.String("action", spec.name),
			zap.Error(err))

		return &types.ActionResult{
			Status:  fasthttp.StatusOK,
			Data:    spec.empty(),
			Warning: errors.Cause(err).Error(),
		}
	}

	var rateErr *discord.RateLimitError
	if errors.As(err, &rateErr) || types.IsError(err, types.ErrUpstreamRateLimited) {
		return &types.ActionResult{
			Status:  fasthttp.StatusTooManyRequests,
			Err:     "Rate limited by Discord",
			Details: err.Error(),
		}
	}

	var upErr *discord.UpstreamError
	if errors.As(err, &upErr) && upErr.Status >= 400 && upErr.Status < 500 {
		return &types.ActionResult{
			Status: upErr.Status,
			Err:    upErr.Message,
		}
	}

	g.logger.Error("Action failed",
		zap.String("action", spec.name),
		zap.Error(err))

	return &types.ActionResult{
		Status:  fasthttp.StatusInternalServerError,
		Err:     errors.Cause(err).Error(),
		Details: err.Error(),
	}
}

func (g *Gateway) publish(spec *actionSpec, data interface{}) {
	if g.broker == nil || spec.event == "" {
		return
	}

	if err := g.broker.Publish(types.Event{
		Type:    spec.event,
		Payload: data,
	}); err != nil {
		g.logger.Warn("Event publish failed",
			zap.String("event", spec.event),
			zap.Error(err))
	}
}

func (g *Gateway) record(action string, result *types.ActionResult, duration time.Duration) {
	if g.recorder == nil {
		return
	}

	outcome := "success"
	switch {
	case result.Err != "":
		outcome = "error"
	case result.Warning != "":
		outcome = "degraded"
	}

	g.recorder.Counter("discord_actions_total", map[string]string{
		"action": action,
		"result": outcome,
	}).Inc()

	g.recorder.Histogram("discord_action_duration_seconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		map[string]string{"action": action},
	).Observe(duration.Seconds())
}

func badRequest(message string) *types.ActionResult {
	return &types.ActionResult{Status: fasthttp.StatusBadRequest, Err: message}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
