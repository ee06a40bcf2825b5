package server

import (
	"sort"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/T9Tuco/NexusBD/internal/types"
)

// Middleware wraps a request handler. Weight orders the chain, lowest
// first; two middlewares may not share a weight.
type Middleware interface {
	Name() string
	Weight() int
	Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx))
}

type MiddlewareManager struct {
	logger  types.Logger
	entries []Middleware
	chain   func(*fasthttp.RequestCtx, func(*fasthttp.RequestCtx))
	mu      sync.RWMutex
}

func NewMiddlewareManager(logger types.Logger) *MiddlewareManager {
	return &MiddlewareManager{
		logger:  logger,
		entries: make([]Middleware, 0, 8),
	}
}

func (m *MiddlewareManager) Register(middleware Middleware) error {
	if middleware == nil {
		return types.ErrInvalidParameter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.entries {
		if existing.Weight() == middleware.Weight() {
			return types.Errorf(types.ErrMiddlewareOrderInvalid,
				"weight %d already taken by %s", middleware.Weight(), existing.Name())
		}
	}

	m.entries = append(m.entries, middleware)
	sort.Slice(m.entries, func(i, j int) bool {
		return m.entries[i].Weight() < m.entries[j].Weight()
	})

	m.chain = nil
	return nil
}

// Execute runs the handler through the weight-ordered chain. The chain
// is composed once and reused.
func (m *MiddlewareManager) Execute(ctx *fasthttp.RequestCtx, handler func(*fasthttp.RequestCtx)) {
	m.mu.RLock()
	chain := m.chain
	if chain == nil {
		m.mu.RUnlock()
		m.mu.Lock()
		if m.chain == nil {
			m.chain = m.compose()
		}
		chain = m.chain
		m.mu.Unlock()
	} else {
		m.mu.RUnlock()
	}

	chain(ctx, handler)
}

func (m *MiddlewareManager) compose() func(*fasthttp.RequestCtx, func(*fasthttp.RequestCtx)) {
	entries := make([]Middleware, len(m.entries))
	copy(entries, m.entries)

	return func(ctx *fasthttp.RequestCtx, handler func(*fasthttp.RequestCtx)) {
		next := handler
		for i := len(entries) - 1; i >= 0; i-- {
			mw := entries[i]
			inner := next
			next = func(ctx *fasthttp.RequestCtx) {
				mw.Handle(ctx, inner)
			}
		}
		next(ctx)
	}
}
