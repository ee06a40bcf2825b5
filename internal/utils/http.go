package utils

import (
	"github.com/valyala/fasthttp"

	"github.com/T9Tuco/NexusBD/internal/types"
)

func setNoCacheHeaders(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")

	ctx.Response.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Response.Header.Set("Pragma", "no-cache")
	ctx.Response.Header.Set("Expires", "0")

	if requestID := string(ctx.Request.Header.Peek("X-Request-ID")); requestID != "" {
		ctx.Response.Header.Set("X-Request-ID", requestID)
	}
}

func WriteJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	body, err := Marshal(payload)
	if err != nil {
		CreateErrorResponse(ctx, "response encoding failed")
		return
	}

	ctx.SetStatusCode(status)
	setNoCacheHeaders(ctx)
	ctx.SetBody(body)
}

func WriteError(ctx *fasthttp.RequestCtx, status int, message string) {
	WriteJSON(ctx, status, types.ErrorEnvelope{Error: message})
}

func CreateErrorResponse(ctx *fasthttp.RequestCtx, details string) {
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	setNoCacheHeaders(ctx)

	body, err := Marshal(types.ErrorEnvelope{Error: "Internal server error", Details: details})
	if err != nil {
		ctx.SetBodyString(`{"error":"Internal server error"}`)
		return
	}
	ctx.SetBody(body)
}

func CreateBadRequestResponse(ctx *fasthttp.RequestCtx, message string) {
	WriteError(ctx, fasthttp.StatusBadRequest, message)
}
