package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/T9Tuco/NexusBD/internal/logger"
)

func TestRecoveryCatchesPanics(t *testing.T) {
	mw := NewRecoveryMiddleware(logger.NewNop(), 10)

	var ctx fasthttp.RequestCtx
	assert.NotPanics(t, func() {
		mw.Handle(&ctx, func(*fasthttp.RequestCtx) {
			panic("handler exploded")
		})
	})

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "Internal server error")
}

func TestRecoveryPassesCleanRequests(t *testing.T) {
	mw := NewRecoveryMiddleware(logger.NewNop(), 10)

	called := false
	var ctx fasthttp.RequestCtx
	mw.Handle(&ctx, func(c *fasthttp.RequestCtx) {
		called = true
		c.SetStatusCode(fasthttp.StatusOK)
	})

	assert.True(t, called)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestRecoveryKeepsServerUsableAfterPanic(t *testing.T) {
	manager := NewMiddlewareManager(logger.NewNop())
	require.NoError(t, manager.Register(NewRecoveryMiddleware(logger.NewNop(), 10)))

	var first fasthttp.RequestCtx
	manager.Execute(&first, func(*fasthttp.RequestCtx) { panic("boom") })
	assert.Equal(t, fasthttp.StatusInternalServerError, first.Response.StatusCode())

	handled := false
	var second fasthttp.RequestCtx
	manager.Execute(&second, func(*fasthttp.RequestCtx) { handled = true })
	assert.True(t, handled)
}
