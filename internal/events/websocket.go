package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultPingInterval   = 30 * time.Second
	defaultWriteWait      = 10 * time.Second
)

// WebSocketPublisher dials an external collector and streams events to
// it. A dropped connection triggers reconnects up to MaxRetries, after
// which the publisher shuts itself down.
type WebSocketPublisher struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger
	config *types.EventsConfig

	conn        *websocket.Conn
	connMu      sync.RWMutex
	send        chan types.Event
	reconnectCh chan struct{}

	pingInterval      time.Duration
	reconnectDelay    time.Duration
	reconnectAttempts int32
	closed            int32
	wg                sync.WaitGroup
}

func NewWebSocketPublisher(ctx context.Context, logger types.Logger, config *types.EventsConfig) (*WebSocketPublisher, error) {
	if config == nil || !config.Enabled || config.URL == "" {
		return nil, types.ErrBrokerNotConnected
	}

	pubCtx, cancel := context.WithCancel(ctx)

	p := &WebSocketPublisher{
		ctx:            pubCtx,
		cancel:         cancel,
		logger:         logger,
		config:         config,
		send:           make(chan types.Event, 256),
		reconnectCh:    make(chan struct{}, 1),
		pingInterval:   defaultPingInterval,
		reconnectDelay: defaultReconnectDelay,
	}

	if config.PingInterval > 0 {
		p.pingInterval = time.Duration(config.PingInterval) * time.Second
	}

	if err := p.connect(); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to establish initial connection")
	}

	p.wg.Add(2)
	go p.writePump()
	go p.reconnectLoop()

	logger.Info("WebSocket event publisher started",
		zap.String("url", config.URL),
		zap.Int("max_retries", config.MaxRetries))

	return p, nil
}

func (p *WebSocketPublisher) Publish(event types.Event) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return types.ErrBrokerNotConnected
	}

	select {
	case p.send <- event:
		return nil
	case <-p.ctx.Done():
		return types.ErrBrokerNotConnected
	default:
		p.logger.Warn("Event queue full, dropping event", zap.String("type", event.Type))
		return types.ErrBrokerPublishFailed
	}
}

func (p *WebSocketPublisher) Close() error {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}

	p.cancel()

	p.connMu.Lock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.connMu.Unlock()

	p.wg.Wait()
	return nil
}

// Connected reports whether the publisher currently holds a live
// collector connection.
func (p *WebSocketPublisher) Connected() bool {
	if atomic.LoadInt32(&p.closed) == 1 {
		return false
	}

	p.connMu.RLock()
	defer p.connMu.RUnlock()
	return p.conn != nil
}

func (p *WebSocketPublisher) connect() error {
	dialCtx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, p.config.URL, nil)
	if err != nil {
		return types.WrapError(err, "failed to dial event collector")
	}

	p.connMu.Lock()
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn
	p.connMu.Unlock()

	atomic.StoreInt32(&p.reconnectAttempts, 0)

	p.logger.Info("Connected to event collector", zap.String("url", p.config.URL))
	return nil
}

func (p *WebSocketPublisher) writePump() {
	ticker := time.NewTicker(p.pingInterval)
	defer func() {
		ticker.Stop()
		p.wg.Done()
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case event := <-p.send:
			if !p.withConnection(func(conn *websocket.Conn) error {
				_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))

				data, err := utils.Marshal(event)
				if err != nil {
					p.logger.Error("Failed to marshal event", zap.Error(err))
					return nil
				}
				return conn.WriteMessage(websocket.TextMessage, data)
			}) {
				p.triggerReconnect()
			}

		case <-ticker.C:
			if !p.withConnection(func(conn *websocket.Conn) error {
				_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
				return conn.WriteMessage(websocket.PingMessage, nil)
			}) {
				p.triggerReconnect()
			}
		}
	}
}

func (p *WebSocketPublisher) reconnectLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.reconnectCh:
			attempts := atomic.LoadInt32(&p.reconnectAttempts)
			if int(attempts) >= p.config.MaxRetries {
				p.logger.Error("Max reconnection attempts reached, closing publisher")
				atomic.StoreInt32(&p.closed, 1)
				p.cancel()
				return
			}

			select {
			case <-time.After(p.reconnectDelay):
			case <-p.ctx.Done():
				return
			}

			atomic.AddInt32(&p.reconnectAttempts, 1)

			if err := p.connect(); err != nil {
				p.logger.Error("Reconnection attempt failed",
					zap.Int32("attempt", atomic.LoadInt32(&p.reconnectAttempts)),
					zap.Error(err))
				p.triggerReconnect()
			}
		}
	}
}

func (p *WebSocketPublisher) triggerReconnect() {
	select {
	case p.reconnectCh <- struct{}{}:
	default:
	}
}

func (p *WebSocketPublisher) withConnection(fn func(*websocket.Conn) error) bool {
	p.connMu.RLock()
	defer p.connMu.RUnlock()

	if p.conn == nil {
		return false
	}

	if err := fn(p.conn); err != nil {
		p.logger.Error("WebSocket write failed", zap.Error(err))
		return false
	}

	return true
}
