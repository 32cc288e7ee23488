// Package fbtest starts a fake backend with a client wired to it for tests.
package fbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/pkg/backend"
	"github.com/fastygo/places/pkg/backend/session"
)

type Env struct {
	Server *fakebackend.Server
	Client *backend.Client
	Store  *session.MemoryStore
}

// Start serves a fresh fake backend for the test and returns a client for it.
func Start(t testing.TB) *Env {
	t.Helper()
	fb := fakebackend.New(fakebackend.Config{})
	require.NoError(t, fb.Start())
	t.Cleanup(func() { _ = fb.Close() })

	store := session.NewMemoryStore()
	client, err := backend.New(backend.Config{
		URL:        fb.BaseURL(),
		AnonKey:    fb.AnonKey(),
		Store:      store,
		ProbeURL:   backend.HealthURL(fb.BaseURL()),
		HTTPClient: fb.Client(),
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return &Env{Server: fb, Client: client, Store: store}
}

// SignIn creates an account and adopts a session for it without going
// through the auth endpoints.
func (e *Env) SignIn(t testing.TB, email string) *domain.User {
	t.Helper()
	user, err := e.Server.CreateUser(email, "secret1", map[string]any{"username": "tester"})
	require.NoError(t, err)
	s, err := e.Server.MintSession(email, time.Now().Add(time.Hour))
	require.NoError(t, err)
	e.Client.Sessions.Save(context.Background(), s)
	return user
}
