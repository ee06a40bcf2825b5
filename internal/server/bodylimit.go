package server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

type BodyLimitConfig struct {
	MaxBodySize int `json:"max_body_size"`
}

type BodyLimitMiddleware struct {
	logger      types.Logger
	name        string
	weight      int
	maxBodySize int
}

func NewBodyLimitMiddleware(logger types.Logger, item *types.MiddlewareItemConfig) *BodyLimitMiddleware {
	limitConfig := &BodyLimitConfig{
		MaxBodySize: 1 << 20,
	}

	if item.Params != nil {
		if err := utils.Remarshal(item.Params, limitConfig); err != nil {
			logger.Error("Failed to unmarshal body limit middleware config", zap.Error(err))
		}
	}

	return &BodyLimitMiddleware{
		logger:      logger,
		name:        "body-limit",
		weight:      item.Weight,
		maxBodySize: limitConfig.MaxBodySize,
	}
}

func (b *BodyLimitMiddleware) Name() string { return b.name }
func (b *BodyLimitMiddleware) Weight() int  { return b.weight }

func (b *BodyLimitMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	if len(ctx.Request.Body()) > b.maxBodySize {
		b.logger.Warn("Request body too large",
			zap.Int("size", len(ctx.Request.Body())),
			zap.Int("limit", b.maxBodySize),
			zap.ByteString("path", ctx.Path()))

		ctx.SetStatusCode(fasthttp.StatusRequestEntityTooLarge)
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"Request body too large"}`)
		return
	}

	next(ctx)
}
