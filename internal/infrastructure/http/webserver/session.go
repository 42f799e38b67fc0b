// Package webserver provides session management for the web frontend.
// A session is the browser-scoped store for the bearer token and the
// per-session view state: the last search results and one-shot flash messages.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/enchantedleftovers/web/internal/infrastructure/config"
	"github.com/enchantedleftovers/web/internal/infrastructure/leftoverapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned when no session exists for a cookie value
var ErrSessionNotFound = errors.New("session not found")

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Type    string `json:"type"` // success, error, warning
	Content string `json:"content"`
}

// Session represents a browser session
type Session struct {
	ID        string                     `json:"id"`
	Token     string                     `json:"token"`
	Results   []leftoverapi.SearchRecipe `json:"results,omitempty"`
	Flashes   []Flash                    `json:"flashes,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

// Authenticated reports whether the session carries a token
func (s *Session) Authenticated() bool {
	return s.Token != ""
}

// Clear drops the token and all view state, ending the authenticated session
func (s *Session) Clear() {
	s.Token = ""
	s.Results = nil
	s.Flashes = nil
}

// AddFlash queues a one-shot message
func (s *Session) AddFlash(flashType, content string) {
	s.Flashes = append(s.Flashes, Flash{Type: flashType, Content: content})
}

// ConsumeFlashes returns the queued messages and empties the queue
func (s *Session) ConsumeFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// SessionStore persists sessions between requests
type SessionStore interface {
	// Get returns the session for an id, or ErrSessionNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// New creates and persists a fresh session
	New(ctx context.Context) (*Session, error)
	// Save persists the session's current state
	Save(ctx context.Context, session *Session) error
	// Delete removes a session
	Delete(ctx context.Context, id string) error
}

// NewSessionStore builds the store selected by configuration
func NewSessionStore(cfg *config.Config, logger *zap.Logger) (SessionStore, error) {
	switch cfg.Session.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
			PoolSize: cfg.Redis.PoolSize,
		})
		return NewRedisSessionStore(client, cfg.Session.MaxAge), nil
	case "memory":
		return NewMemorySessionStore(cfg.Session.MaxAge, logger), nil
	default:
		return nil, errors.New("unknown session store: " + cfg.Session.Store)
	}
}

// MemorySessionStore keeps sessions in process memory
type MemorySessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewMemorySessionStore creates an in-memory session store
func NewMemorySessionStore(maxAge time.Duration, logger *zap.Logger) *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: make(map[string]*Session),
		maxAge:   maxAge,
		logger:   logger,
	}

	go store.cleanupExpired()

	return store
}

// Get returns the session for an id
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	session, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// New creates and stores a fresh session
func (s *MemorySessionStore) New(ctx context.Context) (*Session, error) {
	session := newSession(s.maxAge)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Save persists the session's current state
func (s *MemorySessionStore) Save(ctx context.Context, session *Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

// Delete removes a session
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// cleanupExpired removes expired sessions periodically
func (s *MemorySessionStore) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, session := range s.sessions {
			if now.After(session.ExpiresAt) {
				delete(s.sessions, id)
				s.logger.Debug("Cleaned up expired session", zap.String("session_id", id))
			}
		}
		s.mu.Unlock()
	}
}

// RedisSessionStore keeps sessions in Redis so they survive restarts
type RedisSessionStore struct {
	rdb    *redis.Client
	maxAge time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(rdb *redis.Client, maxAge time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, maxAge: maxAge}
}

// Client exposes the underlying Redis client for health checks
func (s *RedisSessionStore) Client() *redis.Client {
	return s.rdb
}

// Get returns the session for an id
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// New creates and stores a fresh session
func (s *RedisSessionStore) New(ctx context.Context) (*Session, error) {
	session := newSession(s.maxAge)
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Save persists the session's current state
func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKeyPrefix+session.ID, data, time.Until(session.ExpiresAt)).Err()
}

// Delete removes a session
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

const sessionKeyPrefix = "session:"

func newSession(maxAge time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(maxAge),
	}
}

// writeSessionCookie sets the browser cookie referencing a session
func writeSessionCookie(w http.ResponseWriter, cfg *config.Config, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Session.CookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
}
