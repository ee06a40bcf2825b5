package server

import (
	"runtime"
	"sync"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

const (
	stackBufSmall = 4096
	stackBufLarge = 65536
)

type RecoveryMiddleware struct {
	logger types.Logger
	name   string
	weight int

	stackBufPool sync.Pool
}

func NewRecoveryMiddleware(logger types.Logger, weight int) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger: logger,
		name:   "recovery",
		weight: weight,
		stackBufPool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, stackBufSmall)
				return &buf
			},
		},
	}
}

func (r *RecoveryMiddleware) Name() string { return r.name }
func (r *RecoveryMiddleware) Weight() int  { return r.weight }

func (r *RecoveryMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logPanic(ctx, recovered)
			utils.CreateErrorResponse(ctx, "internal server error")
		}
	}()

	next(ctx)
}

func (r *RecoveryMiddleware) logPanic(ctx *fasthttp.RequestCtx, recovered interface{}) {
	r.logger.Error("Panic recovered in request handler",
		zap.Any("panic", recovered),
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.String("remote_addr", ctx.RemoteAddr().String()),
		zap.String("stack", r.captureStack()))
}

func (r *RecoveryMiddleware) captureStack() string {
	bufPtr := r.stackBufPool.Get().(*[]byte)
	defer r.stackBufPool.Put(bufPtr)

	buf := *bufPtr
	n := runtime.Stack(buf, false)
	if n == len(buf) {
		// small buffer truncated, retry with a large one
		large := make([]byte, stackBufLarge)
		n = runtime.Stack(large, false)
		return string(large[:n])
	}

	return string(buf[:n])
}
