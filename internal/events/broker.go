package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
)

const (
	EventMessageSent = "message.sent"
	EventDMCreated   = "dm.created"
	EventAuthedUser  = "user.authenticated"
)

// Broker fans events out to in-process subscribers and, when an
// outbound publisher is attached, forwards them to the external
// collector as well.
type Broker struct {
	logger      types.Logger
	publisher   Publisher
	subscribers map[string]map[string]types.EventHandler
	mu          sync.RWMutex
}

// Publisher pushes events out of the process.
type Publisher interface {
	Publish(event types.Event) error
	Close() error
}

func NewBroker(logger types.Logger, publisher Publisher) *Broker {
	return &Broker{
		logger:      logger,
		publisher:   publisher,
		subscribers: make(map[string]map[string]types.EventHandler),
	}
}

func (b *Broker) Publish(event types.Event) error {
	if event.Type == "" {
		return types.ErrInvalidParameter
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	b.mu.RLock()
	handlers := make([]types.EventHandler, 0, len(b.subscribers[event.Type]))
	for _, handler := range b.subscribers[event.Type] {
		handlers = append(handlers, handler)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.invoke(handler, event)
	}

	if b.publisher != nil {
		if err := b.publisher.Publish(event); err != nil {
			b.logger.Warn("Outbound event publish failed",
				zap.String("type", event.Type),
				zap.Error(err))
			return types.WrapError(err, "outbound publish failed")
		}
	}

	return nil
}

func (b *Broker) Subscribe(eventType string, handler types.EventHandler) (string, error) {
	if eventType == "" || handler == nil {
		return "", types.ErrInvalidParameter
	}

	id := uuid.New().String()

	b.mu.Lock()
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[string]types.EventHandler)
	}
	b.subscribers[eventType][id] = handler
	b.mu.Unlock()

	return id, nil
}

func (b *Broker) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, handlers := range b.subscribers {
		if _, exists := handlers[subscriptionID]; exists {
			delete(handlers, subscriptionID)
			if len(handlers) == 0 {
				delete(b.subscribers, eventType)
			}
			return nil
		}
	}

	return types.ErrInvalidParameter
}

func (b *Broker) Close() error {
	if b.publisher != nil {
		return b.publisher.Close()
	}
	return nil
}

func (b *Broker) invoke(handler types.EventHandler, event types.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("type", event.Type),
				zap.Any("panic", r))
		}
	}()
	handler(event)
}
