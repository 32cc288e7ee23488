package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/pkg/backend"
	"github.com/fastygo/places/pkg/backend/auth"
	"github.com/fastygo/places/pkg/backend/session"
	"github.com/fastygo/places/pkg/backend/storage"
)

func TestClientCarriesSessionTokenEverywhere(t *testing.T) {
	fb := fakebackend.New(fakebackend.Config{})
	require.NoError(t, fb.Start())
	t.Cleanup(func() { _ = fb.Close() })

	store := session.NewMemoryStore()
	c, err := backend.New(backend.Config{
		URL:        fb.BaseURL(),
		AnonKey:    fb.AnonKey(),
		Store:      store,
		ProbeURL:   backend.HealthURL(fb.BaseURL()),
		HTTPClient: fb.Client(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Auth.SignUp(ctx, "a@b.com", "secret1", nil))
	require.NoError(t, c.Auth.SignOut(ctx))
	require.NoError(t, c.Auth.SignInWithPassword(ctx, auth.Credentials{Email: "a@b.com", Password: "secret1"}))
	token := c.Auth.GetSession(ctx).AccessToken

	_, err = c.From("places").Insert(ctx, map[string]any{"name": "Museum", "address": "x", "category": "Museums"})
	require.NoError(t, err)
	_, err = c.Storage.Upload(ctx, storage.PlaceImages, "p.png", "image/png", []byte("png"))
	require.NoError(t, err)

	var restAuth, storageAuth string
	for _, r := range fb.Requests() {
		switch r.Path {
		case "/rest/v1/places":
			restAuth = r.Header["Authorization"]
		case "/storage/v1/object/attraction-images/p.png":
			storageAuth = r.Header["Authorization"]
		}
	}
	assert.Equal(t, "Bearer "+token, restAuth)
	assert.Equal(t, "Bearer "+token, storageAuth)
	assert.Equal(t, 1, fb.RequestCount("/auth/v1/health"))

	restored := session.New(session.Config{Store: store})
	require.NotNil(t, restored.Load(ctx))
}

func TestNewRejectsMissingKey(t *testing.T) {
	_, err := backend.New(backend.Config{URL: "http://x"})
	assert.Error(t, err)
}
