package rest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/pkg/backend/rest"
	"github.com/fastygo/places/pkg/backend/transport"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) string { return string(s) }

func setup(t *testing.T, tokens rest.TokenSource) (*fakebackend.Server, *rest.Client) {
	t.Helper()
	fb := fakebackend.New(fakebackend.Config{})
	require.NoError(t, fb.Start())
	t.Cleanup(func() { _ = fb.Close() })

	tc, err := transport.New(transport.Config{BaseURL: fb.BaseURL(), AnonKey: fb.AnonKey(), HTTPClient: fb.Client()})
	require.NoError(t, err)
	return fb, rest.New(tc, tokens, nil)
}

func TestFilterURLShape(t *testing.T) {
	_, c := setup(t, nil)

	q := c.From("places").Eq("category", "Museums").Select("*")
	u := q.URL()
	assert.Contains(t, u, "/rest/v1/places?")
	assert.Contains(t, u, "category=eq.Museums")
	assert.Contains(t, u, "select=*")
	assert.Equal(t, "http://fake.backend/rest/v1/places?category=eq.Museums&select=*", u)

	escaped := c.From("places").Eq("name", "Old Town & Co").Select("id,name,attractions(*)").URL()
	assert.Contains(t, escaped, "name=eq.Old+Town+%26+Co")
	assert.Contains(t, escaped, "select=id,name,attractions(*)")
}

func TestQueriesAreImmutable(t *testing.T) {
	_, c := setup(t, nil)
	base := c.From("reviews")
	a := base.Eq("place_id", "1")
	b := base.Eq("place_id", "2")

	assert.NotContains(t, base.URL(), "place_id")
	assert.Contains(t, a.URL(), "place_id=eq.1")
	assert.Contains(t, b.URL(), "place_id=eq.2")
	assert.NotContains(t, b.URL(), "eq.1")
}

func TestInsertThenSelect(t *testing.T) {
	fb, c := setup(t, nil)
	ctx := context.Background()

	inserted, err := c.From("places").Insert(ctx, map[string]any{
		"name":          "National Museum",
		"address":       "Main St 1",
		"category":      "Museums",
		"rating":        0,
		"ratings_count": 0,
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.NotEmpty(t, inserted[0]["id"])

	rows, err := c.From("places").Eq("category", "Museums").Select("*").Get(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "National Museum", rows[0].String("name"))

	reqs := fb.Requests()
	assert.Equal(t, "return=representation", reqs[0].Header["Prefer"])
	assert.Equal(t, "category=eq.Museums&select=*", reqs[1].RawQuery)
}

func TestGetOne(t *testing.T) {
	fb, c := setup(t, nil)
	fb.Seed("profiles", fakebackend.Row{"id": "u1", "username": "alice"}, fakebackend.Row{"id": "u2", "username": "bob"})
	ctx := context.Background()

	row, err := c.From("profiles").Eq("id", "u2").GetOne(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", row.String("username"))
	assert.Contains(t, fb.Requests()[0].RawQuery, "limit=1")

	missing, err := c.From("profiles").Eq("id", "nope").GetOne(ctx)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateAndRemove(t *testing.T) {
	fb, c := setup(t, nil)
	fb.Seed("user_favorites",
		fakebackend.Row{"user_id": "u1", "attraction_id": "a1"},
		fakebackend.Row{"user_id": "u1", "attraction_id": "a2"},
	)
	fb.Seed("places", fakebackend.Row{"id": "p1", "rating": 0.0})
	ctx := context.Background()

	updated, err := c.From("places").Eq("id", "p1").Update(ctx, map[string]any{"name": "X"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "X", updated[0]["name"])

	require.NoError(t, c.From("places").Eq("id", "p1").UpdateMinimal(ctx, map[string]any{"rating": 4.5, "ratings_count": 2}))
	assert.Equal(t, 4.5, fb.Rows("places")[0]["rating"])

	require.NoError(t, c.From("user_favorites").Eq("user_id", "u1").Eq("attraction_id", "a1").Remove(ctx))
	left := fb.Rows("user_favorites")
	require.Len(t, left, 1)
	assert.Equal(t, "a2", left[0]["attraction_id"])
}

func TestUnfilteredWritesAreRejected(t *testing.T) {
	fb, c := setup(t, nil)
	fb.Seed("places",
		fakebackend.Row{"id": "p1", "name": "A"},
		fakebackend.Row{"id": "p2", "name": "B"},
	)
	ctx := context.Background()
	before := len(fb.Requests())

	rows, err := c.From("places").Update(ctx, map[string]any{"name": "X"})
	assert.Nil(t, rows)
	require.ErrorIs(t, err, rest.ErrMissingFilter)
	var dErr *domain.Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, domain.ErrCodeInvalid, dErr.Code)

	require.ErrorIs(t, c.From("places").Select("id").UpdateMinimal(ctx, map[string]any{"rating": 1.0}), rest.ErrMissingFilter)
	require.ErrorIs(t, c.From("places").Remove(ctx), rest.ErrMissingFilter)

	assert.Len(t, fb.Requests(), before)
	left := fb.Rows("places")
	require.Len(t, left, 2)
	assert.Equal(t, "A", left[0]["name"])
	assert.Equal(t, "B", left[1]["name"])
}

func TestBackendErrorsReturnNoData(t *testing.T) {
	fb, c := setup(t, nil)
	ctx := context.Background()

	for _, status := range []int{400, 401, 404, 500, 503} {
		fb.InjectFault(fakebackend.Fault{PathPrefix: "/rest/v1/places", Status: status, Body: `{"message":"nope","code":"X1"}`, Times: 1})
		rows, err := c.From("places").Get(ctx)
		assert.Nil(t, rows, "status %d", status)
		var terr *transport.Error
		require.ErrorAs(t, err, &terr, "status %d", status)
		assert.Equal(t, status, terr.Status)
		assert.Equal(t, "nope", terr.Message)
	}

	fb.InjectFault(fakebackend.Fault{PathPrefix: "/rest/v1/places", Status: 500, Body: "plain failure", ContentType: "text/plain", Times: 1})
	row, err := c.From("places").GetOne(ctx)
	assert.Nil(t, row)
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "plain failure", terr.Message)
}

func TestBearerComesFromTokenSource(t *testing.T) {
	fb, c := setup(t, staticToken(""))
	_, err := c.From("places").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+fb.AnonKey(), fb.Requests()[0].Header["Authorization"])

	_, err = fb.CreateUser("a@b.com", "secret1", nil)
	require.NoError(t, err)
	s, err := fb.MintSession("a@b.com", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, c2 := setupWith(t, fb, staticToken(s.AccessToken))
	_, err = c2.From("places").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+s.AccessToken, fb.Requests()[1].Header["Authorization"])
}

func setupWith(t *testing.T, fb *fakebackend.Server, tokens rest.TokenSource) (*fakebackend.Server, *rest.Client) {
	t.Helper()
	tc, err := transport.New(transport.Config{BaseURL: fb.BaseURL(), AnonKey: fb.AnonKey(), HTTPClient: fb.Client()})
	require.NoError(t, err)
	return fb, rest.New(tc, tokens, nil)
}
