package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/T9Tuco/NexusBD/internal/discord"
	"github.com/T9Tuco/NexusBD/internal/types"
)

// Session ties an authenticated bot user to its token so a dashboard
// can resume without re-entering credentials.
type Session struct {
	ID        string        `json:"id"`
	User      *discord.User `json:"user"`
	Token     string        `json:"token"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

type Store interface {
	Save(ctx context.Context, user *discord.User, token string) (*Session, error)
	Load(ctx context.Context, id string) (*Session, error)
	Clear(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in-process. Expired sessions are rejected
// on Load and removed lazily.
type MemoryStore struct {
	ttl      time.Duration
	clock    types.Clock
	sessions map[string]*Session
	mu       sync.RWMutex
}

type StoreOption func(*MemoryStore)

func WithClock(clock types.Clock) StoreOption {
	return func(s *MemoryStore) {
		s.clock = clock
	}
}

func NewMemoryStore(config *types.SessionConfig, opts ...StoreOption) *MemoryStore {
	ttl := 24 * time.Hour
	if config != nil && config.TTL > 0 {
		ttl = config.TTL.Std()
	}

	s := &MemoryStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *MemoryStore) Save(_ context.Context, user *discord.User, token string) (*Session, error) {
	if user == nil || token == "" {
		return nil, types.ErrInvalidParameter
	}

	now := s.clock()
	session := &Session{
		ID:        uuid.New().String(),
		User:      user,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	session, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil, types.ErrSessionNotFound
	}

	if s.clock().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, types.ErrSessionExpired
	}

	return session, nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
