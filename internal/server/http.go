package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

const paramsKey = "route_params"

type Handler func(ctx *fasthttp.RequestCtx)

type compiledRoute struct {
	method     string
	segments   []string
	paramNames []string
	handler    Handler
}

// Server is a fasthttp front for the gateway. Routes registered before
// Start are matched statically first, then against parameterized
// patterns like /api/session/{id}.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger
	chain  *MiddlewareManager

	httpConfig *types.HTTPConfig
	tlsConfig  *types.TLSConfig
	certs      *CertManager

	server   *fasthttp.Server
	listener net.Listener

	staticRoutes  map[string]Handler
	dynamicRoutes []*compiledRoute
	routingMu     sync.RWMutex

	state           atomic.Int32
	shutdownTimeout time.Duration
}

func New(ctx context.Context, logger types.Logger, config *types.ServerConfig, chain *MiddlewareManager) (*Server, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	s := &Server{
		ctx:             serverCtx,
		cancel:          cancel,
		logger:          logger,
		chain:           chain,
		httpConfig:      config.HTTP,
		tlsConfig:       config.TLS,
		staticRoutes:    make(map[string]Handler),
		dynamicRoutes:   make([]*compiledRoute, 0),
		shutdownTimeout: time.Duration(config.HTTP.ShutdownTimeout) * time.Second,
	}

	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 5 * time.Second
	}

	if config.TLS != nil && config.TLS.Enabled {
		certs, err := NewCertManager(logger, config.TLS)
		if err != nil {
			cancel()
			return nil, err
		}
		s.certs = certs
	}

	s.state.Store(types.StateStopped)

	return s, nil
}

// Handle registers a route. Patterns may contain {name} segments which
// become request params.
func (s *Server) Handle(method, path string, handler Handler) error {
	if handler == nil {
		return types.ErrHandlerIsNil
	}

	s.routingMu.Lock()
	defer s.routingMu.Unlock()

	if !strings.Contains(path, "{") {
		s.staticRoutes[method+":"+path] = handler
		return nil
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	paramNames := make([]string, len(segments))
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			paramNames[i] = seg[1 : len(seg)-1]
		}
	}

	s.dynamicRoutes = append(s.dynamicRoutes, &compiledRoute{
		method:     method,
		segments:   segments,
		paramNames: paramNames,
		handler:    handler,
	})

	return nil
}

func (s *Server) Start() error {
	if !s.state.CompareAndSwap(types.StateStopped, types.StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	s.server = &fasthttp.Server{
		Handler:                      s.mainHandler,
		ReadTimeout:                  time.Duration(s.httpConfig.ReadTimeout) * time.Second,
		WriteTimeout:                 time.Duration(s.httpConfig.WriteTimeout) * time.Second,
		IdleTimeout:                  time.Duration(s.httpConfig.IdleTimeout) * time.Second,
		Concurrency:                  fasthttp.DefaultConcurrency,
		TCPKeepalive:                 true,
		DisablePreParseMultipartForm: true,
		CloseOnShutdown:              true,
	}

	addr := fmt.Sprintf("%s:%d", s.httpConfig.Host, s.httpConfig.Port)

	var err error
	if s.certs != nil {
		s.listener, err = s.certs.Listen(addr)
	} else {
		s.listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		s.state.Store(types.StateStopped)
		return types.WrapError(err, "failed to bind listener")
	}

	go func() {
		if serveErr := s.server.Serve(s.listener); serveErr != nil {
			if s.state.Load() == types.StateRunning {
				s.logger.Error("HTTP server failed", zap.Error(serveErr))
			}
			s.state.Store(types.StateStopped)
		}
	}()

	s.state.Store(types.StateRunning)

	s.logger.Info("HTTP server started",
		zap.String("address", addr),
		zap.Bool("tls", s.certs != nil))

	return nil
}

func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(types.StateRunning, types.StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.state.Store(types.StateStopped)
		s.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if s.server == nil {
			return nil
		}
		return s.server.ShutdownWithContext(gCtx)
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
		return types.WrapError(err, "server shutdown")
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (s *Server) IsRunning() bool {
	return s.state.Load() == types.StateRunning
}

func (s *Server) mainHandler(ctx *fasthttp.RequestCtx) {
	s.chain.Execute(ctx, s.route)
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())

	s.routingMu.RLock()
	handler, ok := s.staticRoutes[method+":"+path]
	s.routingMu.RUnlock()

	if ok {
		handler(ctx)
		return
	}

	if handler = s.matchDynamic(ctx, method, path); handler != nil {
		handler(ctx)
		return
	}

	utils.WriteError(ctx, fasthttp.StatusNotFound, "not found")
}

func (s *Server) matchDynamic(ctx *fasthttp.RequestCtx, method, path string) Handler {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	s.routingMu.RLock()
	defer s.routingMu.RUnlock()

	for _, route := range s.dynamicRoutes {
		if route.method != method || len(route.segments) != len(segments) {
			continue
		}

		params := map[string]string{}
		matched := true
		for i, seg := range route.segments {
			if route.paramNames[i] != "" {
				params[route.paramNames[i]] = segments[i]
				continue
			}
			if seg != segments[i] {
				matched = false
				break
			}
		}

		if matched {
			ctx.SetUserValue(paramsKey, params)
			return route.handler
		}
	}

	return nil
}

// RouteParam returns a path parameter extracted during routing.
func RouteParam(ctx *fasthttp.RequestCtx, name string) string {
	params, ok := ctx.UserValue(paramsKey).(map[string]string)
	if !ok {
		return ""
	}
	return params[name]
}
