package place_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/internal/fakebackend/fbtest"
	"github.com/fastygo/places/pkg/backend/storage"
	"github.com/fastygo/places/repository/rest"
	"github.com/fastygo/places/usecase/place"
)

func newUseCase(env *fbtest.Env) *place.UseCase {
	return place.New(place.Config{
		Places: rest.NewPlaceRepository(env.Client),
		Auth:   env.Client.Auth,
		Images: env.Client.Storage,
		Now:    func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
}

func TestAddPlaceWithPhoto(t *testing.T) {
	env := fbtest.Start(t)
	user := env.SignIn(t, "author@example.com")
	uc := newUseCase(env)
	ctx := context.Background()

	photo := filepath.Join(t.TempDir(), "wawel.jpeg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o600))

	p, err := uc.Add(ctx, place.AddInput{
		Name:        " Wawel Castle ",
		Description: "Royal residence",
		Address:     "Wawel 5, Krakow",
		Category:    "Monuments",
		ImagePath:   photo,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Wawel Castle", p.Name)
	assert.Equal(t, user.ID, p.CreatedBy)
	assert.Zero(t, p.Rating)
	assert.Zero(t, p.RatingsCount)

	object := "place_images/" + user.ID + "_1700000000000.jpeg"
	require.NotNil(t, p.ImageURL)
	assert.Equal(t, env.Client.Storage.PublicURL(storage.PlaceImages, object), *p.ImageURL)
	obj, ok := env.Server.Object(storage.PlaceImages, object)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	got, err := uc.Get(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Monuments", got.Category)
}

func TestAddPlaceValidation(t *testing.T) {
	env := fbtest.Start(t)
	uc := newUseCase(env)
	ctx := context.Background()

	_, err := uc.Add(ctx, place.AddInput{Name: "x", Address: "y", Category: "z"})
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	env.SignIn(t, "author@example.com")
	_, err = uc.Add(ctx, place.AddInput{Name: "x"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Zero(t, env.Server.RequestCount("/rest/v1/places"))
}

func TestAddPlaceFailsWhenPhotoUploadFails(t *testing.T) {
	env := fbtest.Start(t)
	env.SignIn(t, "author@example.com")
	env.Server.InjectFault(fakebackend.Fault{Method: "POST", PathPrefix: "/storage/v1/object/", Status: 500, Body: `{"message":"disk full"}`})
	uc := newUseCase(env)

	photo := filepath.Join(t.TempDir(), "p.png")
	require.NoError(t, os.WriteFile(photo, []byte("png"), 0o600))
	_, err := uc.Add(context.Background(), place.AddInput{Name: "x", Address: "y", Category: "z", ImagePath: photo})
	require.Error(t, err)
	assert.Empty(t, env.Server.Rows("places"))
}

func TestSearch(t *testing.T) {
	env := fbtest.Start(t)
	env.Server.Seed("places",
		map[string]any{"name": "National Museum", "description": "Art", "address": "Main 1", "category": "Museums"},
		map[string]any{"name": "Old Bridge", "description": "Stone bridge", "address": "River 2", "category": "Monuments"},
		map[string]any{"name": "Cafe", "description": "Coffee near the MUSEUM", "address": "Main 3", "category": "Food"},
	)
	uc := newUseCase(env)
	ctx := context.Background()

	found, err := uc.Search(ctx, "  museum ")
	require.NoError(t, err)
	names := make([]string, 0, len(found))
	for _, p := range found {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"National Museum", "Cafe"}, names)

	found, err = uc.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = uc.Search(ctx, "river")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Old Bridge", found[0].Name)

	all, err := uc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
