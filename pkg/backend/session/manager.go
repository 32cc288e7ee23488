package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/pkg/backend/transport"
)

// Event names a session transition delivered to subscribers.
type Event string

const (
	SignedIn       Event = "SIGNED_IN"
	SignedOut      Event = "SIGNED_OUT"
	TokenRefreshed Event = "TOKEN_REFRESHED"
	UserUpdated    Event = "USER_UPDATED"
)

// Listener receives session transitions. The session is nil on SignedOut.
type Listener func(Event, *domain.Session)

type Config struct {
	Store     Store
	Transport *transport.Client
	Logger    *zap.Logger
	Now       func() time.Time
}

// Manager owns the current session: it keeps it in memory, mirrors it to the
// store, and exchanges the refresh token when the access token expires.
type Manager struct {
	store     Store
	transport *transport.Client
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current *domain.Session

	refreshes singleflight.Group

	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]Listener
}

func New(cfg Config) *Manager {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:       cfg.Store,
		transport:   cfg.Transport,
		logger:      cfg.Logger,
		now:         cfg.Now,
		subscribers: make(map[int]Listener),
	}
}

// Transport returns the client the manager refreshes through.
func (m *Manager) Transport() *transport.Client { return m.transport }

// Store returns the backing credential store.
func (m *Manager) Store() Store { return m.store }

// Load restores the persisted session. An expired session is refreshed; a
// missing or unreadable one yields nil.
func (m *Manager) Load(ctx context.Context) *domain.Session {
	raw, err := m.store.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.logger.Debug("no stored session")
		} else {
			m.logger.Warn("failed to read stored session", zap.Error(err))
		}
		return nil
	}

	var stored domain.Session
	if err := json.Unmarshal(raw, &stored); err != nil {
		m.logger.Warn("stored session is unreadable", zap.Error(err))
		return nil
	}

	if !stored.IsExpired(m.now()) {
		m.mu.Lock()
		m.current = stored.Clone()
		m.mu.Unlock()
		return &stored
	}
	if stored.RefreshToken == "" {
		m.logger.Info("stored session expired and has no refresh token")
		return nil
	}
	return m.Refresh(ctx, stored.RefreshToken)
}

// Refresh exchanges refreshToken for a new session. Any failure clears the
// session in memory and in the store. Concurrent calls for the same token
// share one request.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) *domain.Session {
	v, _, _ := m.refreshes.Do(refreshToken, func() (any, error) {
		return m.refresh(ctx, refreshToken), nil
	})
	s, _ := v.(*domain.Session)
	return s.Clone()
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) *domain.Session {
	if m.transport == nil {
		m.logger.Warn("session refresh skipped: no transport configured")
		m.save(ctx, nil, SignedOut)
		return nil
	}

	var next domain.Session
	err := m.transport.JSON(ctx, transport.Request{
		Service:         transport.ServiceAuth,
		Method:          "POST",
		Path:            "/auth/v1/token",
		RawQuery:        "grant_type=refresh_token",
		NoAuthorization: true,
	}, map[string]string{"refresh_token": refreshToken}, &next)
	if err == nil && next.AccessToken == "" {
		err = errors.New("token response without access_token")
	}
	if err != nil {
		m.logger.Warn("session refresh failed, clearing session", zap.Error(err))
		m.save(ctx, nil, SignedOut)
		return nil
	}

	Normalize(&next, m.now())
	m.logger.Info("session refreshed", zap.String("user_id", next.UserID()), zap.Time("expires_at", next.Expiry()))
	m.save(ctx, &next, TokenRefreshed)
	return &next
}

// Save replaces the current session and mirrors it to the store; nil signs
// out. Store failures are logged, the in-memory state is updated regardless.
func (m *Manager) Save(ctx context.Context, s *domain.Session) {
	m.mu.RLock()
	prev := m.current
	m.mu.RUnlock()
	m.save(ctx, s, inferEvent(prev, s))
}

func (m *Manager) save(ctx context.Context, s *domain.Session, event Event) {
	s = s.Clone()
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	if s == nil {
		if err := m.store.Delete(ctx, StorageKey); err != nil {
			m.logger.Warn("failed to delete stored session", zap.Error(err))
		}
	} else {
		payload, err := json.Marshal(s)
		if err == nil {
			err = m.store.Set(ctx, StorageKey, payload)
		}
		if err != nil {
			m.logger.Warn("failed to persist session", zap.Error(err))
		}
	}
	m.notify(event, s)
}

func inferEvent(prev, next *domain.Session) Event {
	switch {
	case next == nil:
		return SignedOut
	case prev == nil || prev.UserID() != next.UserID():
		return SignedIn
	case prev.AccessToken != next.AccessToken:
		return TokenRefreshed
	default:
		return UserUpdated
	}
}

// Current returns the in-memory session, loading it from the store when
// none is held. A held session past its expiry is refreshed first.
func (m *Manager) Current(ctx context.Context) *domain.Session {
	m.mu.RLock()
	s := m.current.Clone()
	m.mu.RUnlock()

	if s == nil {
		return m.Load(ctx)
	}
	if s.IsExpired(m.now()) && s.RefreshToken != "" {
		return m.Refresh(ctx, s.RefreshToken)
	}
	return s
}

// Peek returns the in-memory session without touching the store or network.
func (m *Manager) Peek() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// AccessToken returns the bearer token of the current session, or "" to
// fall back to the anon key.
func (m *Manager) AccessToken(ctx context.Context) string {
	if s := m.Current(ctx); s != nil {
		return s.AccessToken
	}
	return ""
}

// Clear drops the session in memory and in the store.
func (m *Manager) Clear(ctx context.Context) {
	m.save(ctx, nil, SignedOut)
}

// Subscribe registers fn for every subsequent transition and returns a
// function that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) notify(event Event, s *domain.Session) {
	m.subMu.Lock()
	listeners := make([]Listener, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		listeners = append(listeners, fn)
	}
	m.subMu.Unlock()

	for _, fn := range listeners {
		fn(event, s.Clone())
	}
}
