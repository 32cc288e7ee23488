package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/internal/fakebackend/fbtest"
	"github.com/fastygo/places/repository/rest"
	"github.com/fastygo/places/usecase/review"
)

func newUseCase(env *fbtest.Env) *review.UseCase {
	return review.New(review.Config{
		Reviews:  rest.NewReviewRepository(env.Client),
		Places:   rest.NewPlaceRepository(env.Client),
		Profiles: rest.NewProfileRepository(env.Client),
		Auth:     env.Client.Auth,
	})
}

func TestListWithUserData(t *testing.T) {
	env := fbtest.Start(t)
	avatar := "https://cdn/a.png"
	env.Server.Seed("profiles", map[string]any{"id": "u-known", "username": "Known", "avatar_url": avatar})
	env.Server.Seed("reviews",
		map[string]any{"place_id": "p1", "user_id": "u-known", "rating": 4, "review": "older", "created_at": "2024-01-01T10:00:00Z"},
		map[string]any{"place_id": "p1", "user_id": "u-ghost", "rating": 2, "review": "newest", "created_at": "2024-03-01T10:00:00Z"},
		map[string]any{"place_id": "p1", "user_id": "u-known", "rating": 5, "review": "middle", "created_at": "2024-02-01T10:00:00Z"},
		map[string]any{"place_id": "p2", "user_id": "u-known", "rating": 1, "review": "other place"},
	)

	reviews, err := newUseCase(env).ListWithUserData(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, reviews, 3)

	assert.Equal(t, "newest", reviews[0].Review)
	assert.Equal(t, "middle", reviews[1].Review)
	assert.Equal(t, "older", reviews[2].Review)

	require.NotNil(t, reviews[0].User)
	assert.Equal(t, domain.DefaultReviewerName, reviews[0].User.UserMetadata.Username)
	assert.Nil(t, reviews[0].User.UserMetadata.AvatarURL)

	require.NotNil(t, reviews[1].User)
	assert.Equal(t, "Known", reviews[1].User.UserMetadata.Username)
	require.NotNil(t, reviews[1].User.UserMetadata.AvatarURL)
	assert.Equal(t, avatar, *reviews[1].User.UserMetadata.AvatarURL)
	assert.Equal(t, "user", reviews[1].User.Email)

	assert.Equal(t, 2, env.Server.RequestCount("/rest/v1/profiles"))
}

func TestListWithUserDataEmpty(t *testing.T) {
	env := fbtest.Start(t)
	reviews, err := newUseCase(env).ListWithUserData(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, reviews)
	assert.Empty(t, reviews)
}

func TestListWithUserDataProfileFailureUsesDefaults(t *testing.T) {
	env := fbtest.Start(t)
	env.Server.Seed("reviews", map[string]any{"place_id": "p1", "user_id": "u1", "rating": 3})
	env.Server.InjectFault(fakebackend.Fault{PathPrefix: "/rest/v1/profiles", Status: 503, Body: "unavailable"})

	reviews, err := newUseCase(env).ListWithUserData(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, domain.DefaultReviewerName, reviews[0].User.UserMetadata.Username)
}

func TestAddAndUpdateRating(t *testing.T) {
	env := fbtest.Start(t)
	user := env.SignIn(t, "critic@example.com")
	env.Server.Seed("places", map[string]any{"id": "p1", "name": "Museum", "address": "x", "category": "Museums", "rating": 0, "ratings_count": 0})
	env.Server.Seed("reviews",
		map[string]any{"place_id": "p1", "user_id": "u2", "rating": 5},
		map[string]any{"place_id": "p1", "user_id": "u3", "rating": 4},
	)
	env.Server.Seed("profiles", map[string]any{"id": user.ID, "username": "Critic", "avatar_url": nil})

	uc := review.New(review.Config{
		Reviews:  rest.NewReviewRepository(env.Client),
		Places:   rest.NewPlaceRepository(env.Client),
		Profiles: rest.NewProfileRepository(env.Client),
		Auth:     env.Client.Auth,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) },
	})

	added, err := uc.AddAndUpdateRating(context.Background(), "p1", 4, " Nice ")
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "Nice", added.Review)
	assert.Equal(t, user.ID, added.UserID)
	assert.Equal(t, "2024-05-01T08:00:00Z", added.CreatedAt)
	require.NotNil(t, added.User)
	assert.Equal(t, "Critic", added.User.UserMetadata.Username)

	places := env.Server.Rows("places")
	require.Len(t, places, 1)
	assert.Equal(t, 4.3, places[0]["rating"])
	assert.EqualValues(t, 3, places[0]["ratings_count"])

	var prefer string
	for _, r := range env.Server.Requests() {
		if r.Method == "PATCH" && r.Path == "/rest/v1/places" {
			prefer = r.Header["Prefer"]
			assert.Equal(t, "id=eq.p1", r.RawQuery)
		}
	}
	assert.Equal(t, "return=minimal", prefer)
}

func TestAddAndUpdateRatingRejects(t *testing.T) {
	env := fbtest.Start(t)
	uc := newUseCase(env)
	ctx := context.Background()

	_, err := uc.AddAndUpdateRating(ctx, "p1", 5, "")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	env.SignIn(t, "critic@example.com")
	_, err = uc.AddAndUpdateRating(ctx, "p1", 6, "")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	env.Server.InjectFault(fakebackend.Fault{Method: "PATCH", PathPrefix: "/rest/v1/places", Status: 403, Body: `{"message":"permission denied"}`})
	_, err = uc.AddAndUpdateRating(ctx, "p1", 3, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
