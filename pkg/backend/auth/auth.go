// Package auth implements account operations against the backend auth API
// and keeps the session manager in sync with their outcome.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/pkg/backend/session"
	"github.com/fastygo/places/pkg/backend/transport"
)

const (
	msgUnknown      = "unknown error"
	msgSignUpFailed = "registration failed"
	msgSignInFailed = "login failed"
	msgOffline      = "check your internet connection"
	msgBadFormat    = "invalid server response format"
	msgMissingToken = "invalid server response"
	msgResetFailed  = "password reset failed"
	msgUpdateFailed = "user update failed"
	msgEncodeFailed = "invalid request data"

	defaultProbeTimeout = 5 * time.Second
)

// Error is the only failure shape auth operations return.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Credentials identify an account for password sign-in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Prober checks general connectivity before sign-in.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// URLProbe probes a fixed URL through the backend transport.
type URLProbe struct {
	Transport *transport.Client
	URL       string
	Timeout   time.Duration
}

func (p URLProbe) Probe(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return p.Transport.Probe(ctx, p.URL, timeout)
}

type Config struct {
	Sessions *session.Manager
	// Prober runs before sign-in; nil disables the check.
	Prober Prober
	Logger *zap.Logger
}

// Service performs auth operations.
type Service struct {
	sessions  *session.Manager
	transport *transport.Client
	prober    Prober
	logger    *zap.Logger
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		sessions:  cfg.Sessions,
		transport: cfg.Sessions.Transport(),
		prober:    cfg.Prober,
		logger:    cfg.Logger,
	}
}

// SignUp registers an account and signs it in. The username defaults to the
// local part of the email. A failed automatic sign-in is logged, not returned.
func (s *Service) SignUp(ctx context.Context, email, password string, meta map[string]any) error {
	data := make(map[string]any, len(meta)+3)
	for k, v := range meta {
		data[k] = v
	}
	data["email_confirm"] = true
	if username, _ := meta["username"].(string); username == "" {
		data["username"] = localPart(email)
	}
	if avatar, _ := meta["avatar_url"].(string); avatar == "" {
		data["avatar_url"] = nil
	}

	resp, err := s.post(ctx, "/auth/v1/signup", map[string]any{
		"email":    email,
		"password": password,
		"data":     data,
	})
	if err != nil {
		return networkFailure(err)
	}
	if !resp.OK() {
		return responseFailure(resp, msgSignUpFailed)
	}
	s.logger.Info("account registered", zap.String("email", email))

	next, err := s.passwordGrant(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		s.logger.Warn("sign-in after registration failed", zap.String("email", email), zap.Error(err))
		return nil
	}
	s.sessions.Save(ctx, next)
	return nil
}

// SignInWithPassword checks connectivity, exchanges the credentials for a
// session and stores it. The current session is untouched on failure.
func (s *Service) SignInWithPassword(ctx context.Context, creds Credentials) error {
	if s.prober != nil {
		if err := s.prober.Probe(ctx); err != nil {
			s.logger.Warn("connectivity check failed", zap.Error(err))
			return &Error{Message: msgOffline, Err: err}
		}
	}
	next, err := s.passwordGrant(ctx, creds)
	if err != nil {
		return err
	}
	s.sessions.Save(ctx, next)
	s.logger.Info("signed in", zap.String("user_id", next.UserID()))
	return nil
}

func (s *Service) passwordGrant(ctx context.Context, creds Credentials) (*domain.Session, error) {
	body, _ := json.Marshal(creds)
	resp, err := s.transport.Do(ctx, transport.Request{
		Service:         transport.ServiceAuth,
		Method:          "POST",
		Path:            "/auth/v1/token",
		RawQuery:        "grant_type=password",
		Body:            body,
		NoAuthorization: true,
	})
	if err != nil {
		return nil, networkFailure(err)
	}

	var fields map[string]any
	if err := json.Unmarshal(resp.Body, &fields); err != nil {
		return nil, &Error{Message: msgBadFormat, Err: err}
	}
	if !resp.OK() {
		return nil, responseFailure(resp, msgSignInFailed)
	}

	var next domain.Session
	if err := json.Unmarshal(resp.Body, &next); err != nil || next.AccessToken == "" {
		return nil, &Error{Message: msgMissingToken, Err: err}
	}
	session.Normalize(&next, time.Now())
	return &next, nil
}

// SignOut tells the backend to revoke the session and clears it locally
// whatever the outcome of the remote call.
func (s *Service) SignOut(ctx context.Context) error {
	current := s.sessions.Current(ctx)
	if current != nil {
		resp, err := s.transport.Do(ctx, transport.Request{
			Service: transport.ServiceAuth,
			Method:  "POST",
			Path:    "/auth/v1/logout",
			Bearer:  current.AccessToken,
		})
		switch {
		case err != nil:
			s.logger.Warn("remote sign-out failed", zap.Error(err))
		case !resp.OK():
			s.logger.Warn("remote sign-out rejected", zap.Int("status", resp.Status))
		}
	}
	s.sessions.Clear(ctx)
	return nil
}

// ResetPasswordForEmail asks the backend to send a recovery email.
func (s *Service) ResetPasswordForEmail(ctx context.Context, email string) error {
	resp, err := s.post(ctx, "/auth/v1/recover", map[string]string{"email": email})
	if err != nil {
		return networkFailure(err)
	}
	if !resp.OK() {
		return responseFailure(resp, msgResetFailed)
	}
	return nil
}

// UpdateUser merges data into the user's metadata, then refetches the user
// and stores it on the current session.
func (s *Service) UpdateUser(ctx context.Context, data map[string]any) error {
	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return &Error{Message: msgEncodeFailed, Err: err}
	}
	bearer := s.sessions.AccessToken(ctx)
	resp, err := s.transport.Do(ctx, transport.Request{
		Service: transport.ServiceAuth,
		Method:  "PUT",
		Path:    "/auth/v1/user",
		Bearer:  bearer,
		Body:    body,
	})
	if err != nil {
		return networkFailure(err)
	}
	if !resp.OK() {
		return responseFailure(resp, msgUpdateFailed)
	}

	var user domain.User
	if err := s.transport.JSON(ctx, transport.Request{
		Service: transport.ServiceAuth,
		Path:    "/auth/v1/user",
		Bearer:  bearer,
	}, nil, &user); err != nil {
		s.logger.Warn("failed to reload user after update", zap.Error(err))
		return nil
	}
	if current := s.sessions.Peek(); current != nil {
		current.User = &user
		s.sessions.Save(ctx, current)
	}
	return nil
}

// GetSession returns the current session or nil.
func (s *Service) GetSession(ctx context.Context) *domain.Session {
	return s.sessions.Current(ctx)
}

// GetUser returns the current user or nil.
func (s *Service) GetUser(ctx context.Context) *domain.User {
	if current := s.sessions.Current(ctx); current != nil {
		return current.User
	}
	return nil
}

// OnAuthStateChange reports the current state to cb once, asynchronously,
// and then every subsequent transition until the returned func is called.
// Calls to cb are serialized on one goroutine. The initial report is
// dropped when a transition arrives while the current state is being read,
// so cb never sees a state older than one it was already given.
func (s *Service) OnAuthStateChange(ctx context.Context, cb session.Listener) func() {
	if cb == nil {
		return func() {}
	}
	feed := newStateFeed()
	unsubscribe := s.sessions.Subscribe(feed.push)
	ctx = context.WithoutCancel(ctx)
	go feed.run(cb, func() stateChange {
		if current := s.sessions.Current(ctx); current != nil {
			return stateChange{event: session.SignedIn, session: current}
		}
		return stateChange{event: session.SignedOut}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			feed.close()
		})
	}
}

type stateChange struct {
	event   session.Event
	session *domain.Session
}

// stateFeed queues transitions for one listener and delivers them in order.
type stateFeed struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []stateChange
	closed bool
}

func newStateFeed() *stateFeed {
	f := &stateFeed{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *stateFeed) push(event session.Event, s *domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.queue = append(f.queue, stateChange{event: event, session: s})
	f.cond.Signal()
}

func (f *stateFeed) close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *stateFeed) run(cb session.Listener, initial func() stateChange) {
	first := initial()

	f.mu.Lock()
	superseded := len(f.queue) > 0
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}
	if !superseded {
		cb(first.event, first.session)
	}

	for {
		next, ok := f.next()
		if !ok {
			return
		}
		cb(next.event, next.session)
	}
}

func (f *stateFeed) next() (stateChange, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.queue) == 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed {
		return stateChange{}, false
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, true
}

// post sends payload with only the apikey header.
func (s *Service) post(ctx context.Context, path string, payload any) (*transport.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Message: msgEncodeFailed, Err: err}
	}
	return s.transport.Do(ctx, transport.Request{
		Service:         transport.ServiceAuth,
		Method:          "POST",
		Path:            path,
		Body:            body,
		NoAuthorization: true,
	})
}

func networkFailure(err error) *Error {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}
	msg := msgUnknown
	var terr *transport.Error
	if errors.As(err, &terr) && terr.Message != "" {
		msg = terr.Message
	}
	return &Error{Message: msg, Err: err}
}

func responseFailure(resp *transport.Response, fallback string) *Error {
	var fields map[string]any
	msg := ""
	if err := json.Unmarshal(resp.Body, &fields); err == nil {
		msg = transport.MessageFrom(fields)
	}
	if msg == "" {
		msg = fallback
	}
	return &Error{Message: msg, Err: resp.Err()}
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
