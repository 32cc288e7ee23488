package monitor_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/internal/infrastructure/credstore"
	"github.com/fastygo/places/internal/infrastructure/monitor"
	"github.com/fastygo/places/pkg/backend"
	"github.com/fastygo/places/pkg/backend/auth"
)

func TestRefreshAgainstFakeBackend(t *testing.T) {
	fb := fakebackend.New(fakebackend.Config{})
	require.NoError(t, fb.Start())
	t.Cleanup(func() { _ = fb.Close() })

	client, err := backend.New(backend.Config{URL: fb.BaseURL(), AnonKey: fb.AnonKey(), HTTPClient: fb.Client()})
	require.NoError(t, err)

	store, err := credstore.Open(filepath.Join(t.TempDir(), "creds.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Set(context.Background(), "themeMode", []byte("dark")))

	m := monitor.New(monitor.Config{
		Backend:     auth.URLProbe{Transport: client.Transport, URL: backend.HealthURL(fb.BaseURL())},
		Credentials: store,
	})
	assert.False(t, m.IsOnline())

	status := m.Refresh(context.Background())
	assert.True(t, status.Backend)
	assert.True(t, status.CredentialStore)
	assert.Equal(t, 1, status.StoredKeys)
	assert.False(t, status.PostgreSQL)
	assert.True(t, m.IsOnline())

	require.NoError(t, fb.Close())
	m.Refresh(context.Background())
	assert.False(t, m.IsOnline())
}

func TestLoopUpdatesStatus(t *testing.T) {
	var calls atomic.Int32
	m := monitor.New(monitor.Config{
		Backend: auth.ProbeFunc(func(context.Context) error {
			if calls.Add(1) > 1 {
				return errors.New("down")
			}
			return nil
		}),
		Interval: 20 * time.Millisecond,
	})
	m.Start()
	t.Cleanup(m.Stop)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !m.IsOnline() }, time.Second, 5*time.Millisecond)
	assert.False(t, m.GetStatus().LastCheck.IsZero())
	m.Stop()
}
