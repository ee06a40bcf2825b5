package server

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

type LoggingConfig struct {
	LogHeaders bool `json:"log_headers"`
}

type LoggingMiddleware struct {
	logger     types.Logger
	name       string
	weight     int
	logHeaders bool
}

func NewLoggingMiddleware(logger types.Logger, weight int) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: logger,
		name:   "logging",
		weight: weight,
	}
}

func NewLoggingMiddlewareFromConfig(logger types.Logger, item *types.MiddlewareItemConfig) *LoggingMiddleware {
	logConfig := &LoggingConfig{}

	if item.Params != nil {
		if err := utils.Remarshal(item.Params, logConfig); err != nil {
			logger.Error("Failed to unmarshal logging middleware config", zap.Error(err))
		}
	}

	m := NewLoggingMiddleware(logger, item.Weight)
	m.logHeaders = logConfig.LogHeaders
	return m
}

func (l *LoggingMiddleware) Name() string { return l.name }
func (l *LoggingMiddleware) Weight() int  { return l.weight }

func (l *LoggingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	start := time.Now()

	next(ctx)

	status := ctx.Response.StatusCode()
	fields := []zap.Field{
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
		zap.String("remote_addr", ctx.RemoteAddr().String()),
	}

	if ua := ctx.Request.Header.UserAgent(); len(ua) > 0 {
		fields = append(fields, zap.ByteString("user_agent", ua))
	}

	if l.logHeaders {
		fields = append(fields, zap.String("request_headers", ctx.Request.Header.String()))
	}

	switch {
	case status >= fasthttp.StatusInternalServerError:
		l.logger.Error("Request completed", fields...)
	case status >= fasthttp.StatusBadRequest:
		l.logger.Warn("Request completed", fields...)
	default:
		l.logger.Info("Request completed", fields...)
	}
}
