package service

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/T9Tuco/NexusBD/internal/cache"
	"github.com/T9Tuco/NexusBD/internal/config"
	"github.com/T9Tuco/NexusBD/internal/discord"
	"github.com/T9Tuco/NexusBD/internal/events"
	"github.com/T9Tuco/NexusBD/internal/gateway"
	"github.com/T9Tuco/NexusBD/internal/health"
	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/metrics"
	"github.com/T9Tuco/NexusBD/internal/scheduler"
	"github.com/T9Tuco/NexusBD/internal/server"
	"github.com/T9Tuco/NexusBD/internal/session"
	"github.com/T9Tuco/NexusBD/internal/types"
)

// Service owns construction and lifecycle of every component. Start
// blocks until a shutdown signal or Stop, then tears the components
// down in reverse order.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger

	configManager *config.Manager
	metricsMgr    *metrics.Manager
	responseCache types.ResponseCache
	publisher     events.Publisher
	broker        *events.Broker
	gateway       *gateway.Gateway
	sessions      *session.MemoryStore
	scheduler     *scheduler.Manager
	httpServer    *server.Server

	state atomic.Int32
	done  chan struct{}
}

func New(ctx context.Context, configPath string) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		ctx:    serviceCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.state.Store(types.StateStopped)

	if err := s.assemble(configPath); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Service) assemble(configPath string) error {
	configManager, err := config.NewManager(configPath)
	if err != nil {
		return types.WrapError(err, "failed to load configuration")
	}
	s.configManager = configManager
	cfg := configManager.GetConfig()

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return types.WrapError(err, "failed to build logger")
	}
	s.logger = log

	if cfg.Metrics.Enabled {
		s.metricsMgr = metrics.NewManager(log, cfg.Metrics)
	}

	var cacheRecorder cache.MetricsRecorder
	if s.metricsMgr != nil {
		cacheRecorder = s.metricsMgr
	}
	responseCache, err := cache.New(s.ctx, log, cfg.Cache, cacheRecorder)
	if err != nil {
		return types.WrapError(err, "failed to build cache")
	}
	s.responseCache = responseCache

	if cfg.Events.Enabled {
		publisher, err := events.NewWebSocketPublisher(s.ctx, log, cfg.Events)
		if err != nil {
			return types.WrapError(err, "failed to connect event publisher")
		}
		s.publisher = publisher
	}
	s.broker = events.NewBroker(log, s.publisher)

	api := discord.NewClient(log, cfg.Discord)

	gatewayOpts := []gateway.Option{
		gateway.WithBroker(s.broker),
	}
	if s.metricsMgr != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithMetrics(s.metricsMgr))
	}
	s.gateway = gateway.New(log, api, responseCache, cfg.Gateway, gatewayOpts...)

	if cfg.Session.Enabled {
		s.sessions = session.NewMemoryStore(cfg.Session)
	}

	if cfg.Cron.Enabled {
		cronManager, err := scheduler.NewManager(s.ctx, log, s.metricsMgr, cfg.Cron)
		if err != nil {
			return types.WrapError(err, "failed to build scheduler")
		}
		if err := scheduler.RegisterJobs(cronManager, log, responseCache, s.gateway, cfg.Cron); err != nil {
			return types.WrapError(err, "failed to register cron jobs")
		}
		s.scheduler = cronManager
	}

	chain, err := server.BuildChain(s.ctx, log, cfg.Middlewares)
	if err != nil {
		return types.WrapError(err, "failed to build middleware chain")
	}

	httpServer, err := server.New(s.ctx, log, cfg.Server, chain)
	if err != nil {
		return types.WrapError(err, "failed to build http server")
	}
	s.httpServer = httpServer

	var sessions session.Store
	if s.sessions != nil {
		sessions = s.sessions
	}

	healthRegistry, err := s.buildHealthRegistry(log)
	if err != nil {
		return types.WrapError(err, "failed to build health registry")
	}

	version := &types.VersionInfo{Name: cfg.Name, Version: cfg.Version}
	handlers := server.NewHandlers(log, s.gateway, sessions, healthRegistry, s.metricsMgr, version, cfg.Server.HTTP)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	return handlers.Register(httpServer, metricsPath)
}

// buildHealthRegistry wires the assembled components into the /healthz
// report. Optional components register only when they were built.
func (s *Service) buildHealthRegistry(log types.Logger) (*health.Registry, error) {
	registry := health.NewRegistry(log)

	if err := registry.Register("cache", func(ctx context.Context) error {
		if err := s.responseCache.Set(ctx, "health:probe", "ok", 5*time.Second); err != nil {
			return err
		}
		if _, hit := s.responseCache.Get(ctx, "health:probe"); !hit {
			return types.ErrCacheOperationFailed
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := registry.Register("http-server", func(context.Context) error {
		if !s.httpServer.IsRunning() {
			return types.ErrServerNotRunning
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		if err := registry.Register("scheduler", func(context.Context) error {
			if !s.scheduler.IsRunning() {
				return types.ErrServerNotRunning
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if ws, ok := s.publisher.(*events.WebSocketPublisher); ok && ws != nil {
		if err := registry.Register("event-publisher", func(context.Context) error {
			if !ws.Connected() {
				return types.ErrBrokerNotConnected
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func (s *Service) Start() error {
	if !s.state.CompareAndSwap(types.StateStopped, types.StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			s.state.Store(types.StateStopped)
			return err
		}
	}

	if err := s.httpServer.Start(); err != nil {
		s.state.Store(types.StateStopped)
		return err
	}

	s.state.Store(types.StateRunning)

	signalCtx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-signalCtx.Done()
	s.logger.Info("Shutdown requested")

	return s.shutdown()
}

func (s *Service) Stop() {
	s.cancel()
	<-s.done
}

func (s *Service) IsRunning() bool {
	return s.state.Load() == types.StateRunning
}

func (s *Service) shutdown() error {
	defer func() {
		s.state.Store(types.StateStopped)
		s.cancel()
		close(s.done)
	}()

	s.state.Store(types.StateStopping)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.httpServer.Stop()
	})

	if s.scheduler != nil {
		g.Go(func() error {
			return s.scheduler.Stop()
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Error during component shutdown", zap.Error(err))
	}

	if err := s.broker.Close(); err != nil {
		s.logger.Warn("Event broker close failed", zap.Error(err))
	}
	s.responseCache.Close()

	s.logger.Info("Service stopped gracefully")
	return nil
}
