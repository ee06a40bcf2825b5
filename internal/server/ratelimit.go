package server

import (
	"bytes"
	"context"
	"hash"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

const rateLimitShards = 64

var (
	realIPHeader    = []byte("X-Real-IP")
	forwardedHeader = []byte("X-Forwarded-For")
	commaBytes      = []byte(",")
)

type RateLimitConfig struct {
	RequestsPerMinute int64         `json:"requests_per_minute"`
	WindowSize        time.Duration `json:"window_size"`
	BlockDuration     time.Duration `json:"block_duration"`
}

type rateLimitShard struct {
	clients map[string]*clientWindow
	mu      sync.RWMutex
}

type clientWindow struct {
	counter      int64
	windowStart  int64
	blockedUntil int64
	lastAccess   int64
}

type RateLimitMiddleware struct {
	ctx        context.Context
	logger     types.Logger
	limits     *RateLimitConfig
	name       string
	weight     int
	shards     [rateLimitShards]*rateLimitShard
	hasherPool sync.Pool
	limitStr   string
	stopOnce   sync.Once
	stopCh     chan struct{}
	workers    sync.WaitGroup
}

func NewRateLimitMiddleware(ctx context.Context, logger types.Logger, item *types.MiddlewareItemConfig) *RateLimitMiddleware {
	limits := &RateLimitConfig{
		RequestsPerMinute: 120,
		WindowSize:        time.Minute,
		BlockDuration:     time.Minute,
	}

	if item.Params != nil {
		if err := utils.Remarshal(item.Params, limits); err != nil {
			logger.Error("Failed to unmarshal rate limit middleware config", zap.Error(err))
		}
	}

	rl := &RateLimitMiddleware{
		ctx:      ctx,
		logger:   logger,
		limits:   limits,
		name:     "rate-limit",
		weight:   item.Weight,
		limitStr: strconv.FormatInt(limits.RequestsPerMinute, 10),
		stopCh:   make(chan struct{}),
		hasherPool: sync.Pool{
			New: func() interface{} {
				return fnv.New32a()
			},
		},
	}

	for i := range rl.shards {
		rl.shards[i] = &rateLimitShard{
			clients: make(map[string]*clientWindow, 64),
		}
	}

	rl.workers.Add(1)
	go rl.cleanupWorker()

	return rl
}

func (rl *RateLimitMiddleware) Name() string { return rl.name }
func (rl *RateLimitMiddleware) Weight() int  { return rl.weight }

func (rl *RateLimitMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	clientIP := rl.extractRealIP(ctx)

	if !rl.allow(clientIP) {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		ctx.Response.Header.SetContentType("application/json")
		ctx.Response.Header.Set("Retry-After", "60")
		ctx.Response.Header.Set("X-RateLimit-Limit", rl.limitStr)
		ctx.SetBodyString(`{"error":"Too many requests","retry_after":60}`)
		return
	}

	next(ctx)
}

func (rl *RateLimitMiddleware) extractRealIP(ctx *fasthttp.RequestCtx) []byte {
	if realIP := ctx.Request.Header.PeekBytes(realIPHeader); len(realIP) > 0 {
		return realIP
	}

	if forwarded := ctx.Request.Header.PeekBytes(forwardedHeader); len(forwarded) > 0 {
		if comma := bytes.Index(forwarded, commaBytes); comma > 0 {
			return bytes.TrimSpace(forwarded[:comma])
		}
		return bytes.TrimSpace(forwarded)
	}

	return []byte(ctx.RemoteIP().String())
}

func (rl *RateLimitMiddleware) allow(clientIP []byte) bool {
	shard := rl.shard(clientIP)
	key := utils.BytesToString(clientIP)
	now := time.Now().UnixNano()

	shard.mu.RLock()
	window, exists := shard.clients[key]
	shard.mu.RUnlock()

	if !exists {
		shard.mu.Lock()
		window, exists = shard.clients[key]
		if !exists {
			shard.clients[string(clientIP)] = &clientWindow{
				counter:     1,
				windowStart: now,
				lastAccess:  now,
			}
			shard.mu.Unlock()
			return true
		}
		shard.mu.Unlock()
	}

	return rl.checkWindow(window, now)
}

func (rl *RateLimitMiddleware) shard(clientIP []byte) *rateLimitShard {
	hasher := rl.hasherPool.Get().(hash.Hash32)
	hasher.Reset()
	hasher.Write(clientIP)
	sum := hasher.Sum32()
	rl.hasherPool.Put(hasher)

	return rl.shards[sum&(rateLimitShards-1)]
}

func (rl *RateLimitMiddleware) checkWindow(window *clientWindow, now int64) bool {
	atomic.StoreInt64(&window.lastAccess, now)

	if blockedUntil := atomic.LoadInt64(&window.blockedUntil); blockedUntil > 0 {
		if now < blockedUntil {
			return false
		}
		atomic.StoreInt64(&window.blockedUntil, 0)
		atomic.StoreInt64(&window.counter, 0)
		atomic.StoreInt64(&window.windowStart, now)
	}

	windowStart := atomic.LoadInt64(&window.windowStart)
	if now-windowStart > int64(rl.limits.WindowSize) {
		if atomic.CompareAndSwapInt64(&window.windowStart, windowStart, now) {
			atomic.StoreInt64(&window.counter, 1)
			return true
		}
	}

	counter := atomic.AddInt64(&window.counter, 1)
	if counter > rl.limits.RequestsPerMinute {
		atomic.StoreInt64(&window.blockedUntil, now+int64(rl.limits.BlockDuration))
		return false
	}

	return true
}

func (rl *RateLimitMiddleware) cleanupWorker() {
	defer rl.workers.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.ctx.Done():
			return
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimitMiddleware) cleanup() {
	cutoff := time.Now().UnixNano() - int64(time.Hour)

	for _, shard := range rl.shards {
		shard.mu.Lock()
		for ip, window := range shard.clients {
			lastAccess := atomic.LoadInt64(&window.lastAccess)
			blockedUntil := atomic.LoadInt64(&window.blockedUntil)

			if lastAccess < cutoff && blockedUntil == 0 {
				delete(shard.clients, ip)
			}
		}
		shard.mu.Unlock()
	}
}

func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
		rl.workers.Wait()
	})
}
