package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

func newBodyLimit(maxSize int) *BodyLimitMiddleware {
	return NewBodyLimitMiddleware(logger.NewNop(), &types.MiddlewareItemConfig{
		Enabled: true,
		Weight:  40,
		Params:  map[string]interface{}{"max_body_size": maxSize},
	})
}

func TestBodyLimitPassesSmallBodies(t *testing.T) {
	mw := newBodyLimit(64)

	called := false
	var ctx fasthttp.RequestCtx
	ctx.Request.SetBodyString(`{"action":"fetchGuilds"}`)

	mw.Handle(&ctx, func(*fasthttp.RequestCtx) { called = true })
	assert.True(t, called)
}

func TestBodyLimitRejectsOversizedBodies(t *testing.T) {
	mw := newBodyLimit(64)

	called := false
	var ctx fasthttp.RequestCtx
	ctx.Request.SetBodyString(strings.Repeat("a", 65))

	mw.Handle(&ctx, func(*fasthttp.RequestCtx) { called = true })

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusRequestEntityTooLarge, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "Request body too large")
}

func TestBodyLimitBoundaryIsInclusive(t *testing.T) {
	mw := newBodyLimit(64)

	called := false
	var ctx fasthttp.RequestCtx
	ctx.Request.SetBodyString(strings.Repeat("a", 64))

	mw.Handle(&ctx, func(*fasthttp.RequestCtx) { called = true })
	assert.True(t, called)
}
