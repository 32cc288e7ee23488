package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/config"
	"github.com/fastygo/places/internal/fakebackend"
	"github.com/fastygo/places/internal/infrastructure/monitor"
	"github.com/fastygo/places/internal/services"
	"github.com/fastygo/places/pkg/backend"
	"github.com/fastygo/places/pkg/backend/auth"
	"github.com/fastygo/places/pkg/backend/session"
	"github.com/fastygo/places/pkg/backend/storage"
	"github.com/fastygo/places/pkg/backend/transport"
)

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

type testEnv struct {
	fb    *fakebackend.Server
	cfg   *config.Config
	store *session.MemoryStore
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	fb := fakebackend.New(fakebackend.Config{})
	require.NoError(t, fb.Start())
	t.Cleanup(func() { _ = fb.Close() })

	cfg := &config.Config{
		Backend: config.BackendConfig{
			URL:            fb.BaseURL(),
			AnonKey:        fb.AnonKey(),
			RequestTimeout: 5 * time.Second,
			ProbeURL:       backend.HealthURL(fb.BaseURL()),
			ProbeTimeout:   time.Second,
		},
		Credentials: config.CredentialsConfig{Store: config.StoreMemory},
		Reconciler:  config.ReconcilerConfig{Interval: time.Minute},
		Context:     config.ContextConfig{ShutdownTimeout: time.Second},
		Logger:      config.LoggerConfig{Level: "error", Encoding: "console"},
	}
	return &testEnv{fb: fb, cfg: cfg, store: session.NewMemoryStore()}
}

// run executes args against a fresh command tree sharing the env's backend
// and credential store, like separate invocations of the binary.
func (e *testEnv) run(args ...string) (string, error) {
	root := NewRootCmd(Options{Config: e.cfg, HTTPClient: e.fb.Client(), Store: e.store})
	out, _, err := executeCommand(root, args...)
	return out, err
}

func (e *testEnv) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := e.run(append(args, "-o", "json")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func (e *testEnv) signup(t *testing.T, email, username string) {
	t.Helper()
	_, err := e.run("signup", "--email", email, "--password", "secret1", "--username", username)
	require.NoError(t, err)
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, code, exitErr.Code, exitErr.Message)
}

func TestSignupWhoamiLogout(t *testing.T) {
	env := setupEnv(t)

	var view sessionView
	env.runJSON(t, &view, "signup", "--email", "alice@example.com", "--password", "secret1", "--username", "alice")
	assert.Equal(t, "alice@example.com", view.Email)
	assert.Equal(t, "alice", view.Username)
	assert.NotEmpty(t, view.UserID)

	profiles := env.fb.Rows("profiles")
	require.Len(t, profiles, 1)
	assert.Equal(t, view.UserID, profiles[0]["id"])

	out, err := env.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "alice")

	out, err = env.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = env.run("whoami")
	requireExitCode(t, err, exitAuth)
}

func TestSignupWithAvatar(t *testing.T) {
	env := setupEnv(t)
	avatar := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(avatar, []byte("png"), 0o600))

	var view sessionView
	env.runJSON(t, &view, "signup", "--email", "ava@example.com", "--password", "secret1",
		"--username", "ava", "--avatar", avatar)
	assert.Contains(t, view.AvatarURL, "/storage/v1/object/public/"+storage.ProfileImages+"/profile_"+view.UserID)

	paths := env.fb.ObjectPaths(storage.ProfileImages)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], ".png"))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := setupEnv(t)
	_, err := env.fb.CreateUser("bob@example.com", "secret1", nil)
	require.NoError(t, err)

	_, err = env.run("login", "--email", "bob@example.com", "--password", "wrong")
	requireExitCode(t, err, exitAuth)

	out, err := env.run("login", "--email", "bob@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as bob@example.com")
}

func TestLoginReportsUnreachableBackend(t *testing.T) {
	env := setupEnv(t)
	_, err := env.fb.CreateUser("bob@example.com", "secret1", nil)
	require.NoError(t, err)
	env.cfg.Backend.ProbeTimeout = 100 * time.Millisecond
	env.fb.InjectFault(fakebackend.Fault{PathPrefix: "/auth/v1/health", Delay: 300 * time.Millisecond})

	_, err = env.run("login", "--email", "bob@example.com", "--password", "secret1")
	requireExitCode(t, err, exitUnavailable)
	assert.Contains(t, err.Error(), "check your internet connection")
	assert.Zero(t, env.fb.RequestCount("/auth/v1/token"))
}

func TestResetPassword(t *testing.T) {
	env := setupEnv(t)

	_, err := env.run("reset-password", "lost@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"lost@example.com"}, env.fb.Recoveries())
}

func TestPlacesLifecycle(t *testing.T) {
	env := setupEnv(t)
	env.signup(t, "carol@example.com", "carol")

	var added domain.Place
	env.runJSON(t, &added, "places", "add", "--name", "Tower", "--address", "Main 1", "--category", "landmark")
	require.NotEmpty(t, added.ID)
	assert.Zero(t, added.Rating)
	assert.NotEmpty(t, added.CreatedBy)

	var listed []domain.Place
	env.runJSON(t, &listed, "places", "list")
	require.Len(t, listed, 1)

	var found []domain.Place
	env.runJSON(t, &found, "places", "search", "TOW")
	require.Len(t, found, 1)
	assert.Equal(t, "Tower", found[0].Name)

	out, err := env.run("places", "show", added.ID.String(), "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Tower")

	_, err = env.run("places", "show", "missing")
	requireExitCode(t, err, exitNotFound)
}

func TestPlacesAddValidation(t *testing.T) {
	env := setupEnv(t)

	_, err := env.run("places", "add", "--name", "Nowhere")
	requireExitCode(t, err, exitAuth)

	env.signup(t, "dan@example.com", "dan")
	_, err = env.run("places", "add", "--name", "Nowhere")
	requireExitCode(t, err, exitUsage)
}

func TestPlacesListFiltersAndSorts(t *testing.T) {
	env := setupEnv(t)
	env.fb.Seed("places",
		fakebackend.Row{"name": "A", "address": "x", "category": "cafe", "rating": 3.0},
		fakebackend.Row{"name": "B", "address": "y", "category": "cafe", "rating": 4.5},
		fakebackend.Row{"name": "C", "address": "z", "category": "museum", "rating": 5.0},
	)

	var places []domain.Place
	env.runJSON(t, &places, "places", "list", "--category", "cafe", "--sort", "rating", "--desc")
	require.Len(t, places, 2)
	assert.Equal(t, "B", places[0].Name)
	assert.Equal(t, "A", places[1].Name)

	out, err := env.run("places", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "museum")
}

func TestReviewsUpdateRating(t *testing.T) {
	env := setupEnv(t)
	env.signup(t, "erin@example.com", "erin")
	env.fb.Seed("places", fakebackend.Row{"name": "Park", "address": "x", "category": "park", "rating": 0, "ratings_count": 0})
	placeID := env.fb.Rows("places")[0]["id"].(string)

	_, err := env.run("reviews", "add", placeID, "--rating", "5", "--text", "great")
	require.NoError(t, err)

	var review domain.Review
	env.runJSON(t, &review, "reviews", "add", placeID, "--rating", "4", "--text", "good")
	require.NotNil(t, review.User)
	assert.Equal(t, "erin", review.User.UserMetadata.Username)

	place := env.fb.Rows("places")[0]
	assert.EqualValues(t, 4.5, place["rating"])
	assert.EqualValues(t, 2, place["ratings_count"])

	var reviews []domain.Review
	env.runJSON(t, &reviews, "reviews", "list", placeID)
	require.Len(t, reviews, 2)
	for _, r := range reviews {
		require.NotNil(t, r.User)
		assert.Equal(t, "erin", r.User.UserMetadata.Username)
	}

	_, err = env.run("reviews", "add", placeID, "--rating", "9")
	requireExitCode(t, err, exitUsage)
}

func TestAttractionsAndFavorites(t *testing.T) {
	env := setupEnv(t)
	env.signup(t, "fay@example.com", "fay")

	var a domain.Attraction
	env.runJSON(t, &a, "attractions", "add", "--name", "Castle", "--location", "Hill")
	require.NotEmpty(t, a.ID)

	var updated domain.Attraction
	env.runJSON(t, &updated, "attractions", "update", a.ID.String(), `{"location":"Old town"}`)
	assert.Equal(t, "Old town", updated.Location)

	_, err := env.run("favorites", "add", a.ID.String())
	require.NoError(t, err)

	var favorites []domain.Favorite
	env.runJSON(t, &favorites, "favorites", "list")
	require.Len(t, favorites, 1)
	assert.Equal(t, a.ID.String(), favorites[0].AttractionID)
	assert.Contains(t, string(favorites[0].Attraction), "Castle")

	_, err = env.run("favorites", "remove", a.ID.String())
	require.NoError(t, err)
	env.runJSON(t, &favorites, "favorites", "list")
	assert.Empty(t, favorites)

	_, err = env.run("attractions", "update", a.ID.String(), "not json")
	requireExitCode(t, err, exitUsage)

	_, err = env.run("attractions", "delete", a.ID.String())
	require.NoError(t, err)
	_, err = env.run("attractions", "show", a.ID.String())
	requireExitCode(t, err, exitNotFound)
}

func TestUploadPicksBucketFromName(t *testing.T) {
	env := setupEnv(t)
	env.signup(t, "gus@example.com", "gus")
	file := filepath.Join(t.TempDir(), "photo.JPG")
	require.NoError(t, os.WriteFile(file, []byte("jpeg"), 0o600))

	var view uploadView
	env.runJSON(t, &view, "upload", file)
	assert.Equal(t, storage.PlaceImages, view.Bucket)
	assert.Equal(t, "photo.jpg", view.Name)

	env.runJSON(t, &view, "storage", "upload", file, "--name", "profile_gus")
	assert.Equal(t, storage.ProfileImages, view.Bucket)

	obj, ok := env.fb.Object(storage.ProfileImages, "profile_gus.jpg")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	_, err := env.run("storage", "remove", storage.PlaceImages, "photo.jpg")
	require.NoError(t, err)
	assert.Empty(t, env.fb.ObjectPaths(storage.PlaceImages))
}

func TestTheme(t *testing.T) {
	env := setupEnv(t)

	var view themeView
	env.runJSON(t, &view, "theme", "get", "--system-dark")
	assert.Equal(t, domain.ThemeSystem, view.Mode)
	assert.Equal(t, domain.ThemeDark, view.Theme)

	_, err := env.run("theme", "set", "dark")
	require.NoError(t, err)
	env.runJSON(t, &view, "theme", "get")
	assert.Equal(t, domain.ThemeDark, view.Mode)

	env.runJSON(t, &view, "theme", "toggle")
	assert.Equal(t, domain.ThemeLight, view.Mode)

	_, err = env.run("theme", "set", "purple")
	requireExitCode(t, err, exitUsage)
}

func TestStatus(t *testing.T) {
	env := setupEnv(t)

	var status monitor.Status
	env.runJSON(t, &status, "status")
	assert.True(t, status.Backend)
	assert.False(t, status.PostgreSQL)

	env.cfg.Backend.ProbeTimeout = 100 * time.Millisecond
	env.fb.InjectFault(fakebackend.Fault{PathPrefix: "/auth/v1/health", Delay: 300 * time.Millisecond})
	env.runJSON(t, &status, "status")
	assert.False(t, status.Backend)
}

func TestReconcileFixesDrift(t *testing.T) {
	env := setupEnv(t)
	env.fb.Seed("places", fakebackend.Row{"name": "Pier", "address": "x", "category": "sight", "rating": 1.0, "ratings_count": 0})
	placeID := env.fb.Rows("places")[0]["id"]
	env.fb.Seed("reviews",
		fakebackend.Row{"place_id": placeID, "user_id": "u1", "rating": 5},
		fakebackend.Row{"place_id": placeID, "user_id": "u2", "rating": 4},
	)

	var report services.Report
	env.runJSON(t, &report, "reconcile")
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Corrected)

	place := env.fb.Rows("places")[0]
	assert.EqualValues(t, 4.5, place["rating"])
	assert.EqualValues(t, 2, place["ratings_count"])
}

func TestBackendErrorsMapToExitCodes(t *testing.T) {
	env := setupEnv(t)
	env.fb.InjectFault(fakebackend.Fault{PathPrefix: "/rest/v1/places", Status: 503})

	_, err := env.run("places", "list")
	requireExitCode(t, err, exitUnavailable)
}

func TestConfigErrors(t *testing.T) {
	env := setupEnv(t)
	env.cfg.Backend.AnonKey = ""

	_, err := env.run("places", "list")
	requireExitCode(t, err, exitUsage)

	_, err = env.run("theme", "get", "-o", "xml")
	requireExitCode(t, err, exitUsage)

	_, err = env.run("migrate", "up")
	requireExitCode(t, err, exitUsage)

	_, err = env.run("migrate", "sideways")
	requireExitCode(t, err, exitUsage)
}

func TestRedisStoreFailures(t *testing.T) {
	env := setupEnv(t)
	env.cfg.Credentials.Store = config.StoreRedis

	run := func(url string) error {
		env.cfg.Redis.URL = url
		root := NewRootCmd(Options{Config: env.cfg, HTTPClient: env.fb.Client()})
		_, _, err := executeCommand(root, "whoami")
		return err
	}
	requireExitCode(t, run("redis://127.0.0.1:1/0"), exitUnavailable)
	requireExitCode(t, run("http://not-redis"), exitUsage)
}

func TestSeedDemo(t *testing.T) {
	fb := fakebackend.New(fakebackend.Config{})
	require.NoError(t, seedDemo(fb))

	assert.Len(t, fb.Rows("places"), 2)
	assert.Len(t, fb.Rows("reviews"), 3)
	assert.Len(t, fb.Rows("attractions"), 2)
	assert.Len(t, fb.Rows("profiles"), 1)

	require.Error(t, seedDemo(fb))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrPlaceNotFound, exitNotFound},
		{"wrapped unauthenticated", fmt.Errorf("load: %w", domain.ErrNotAuthenticated), exitAuth},
		{"invalid", domain.ErrInvalidPayload, exitUsage},
		{"network", transport.NetworkError(errors.New("dial")), exitUnavailable},
		{"server error", &transport.Error{Status: 500, Message: "boom"}, exitRuntime},
		{"forbidden", &transport.Error{Status: 403, Message: "no"}, exitAuth},
		{"auth failure", &auth.Error{Message: "invalid login credentials"}, exitAuth},
		{"auth offline", &auth.Error{Message: "offline", Err: transport.NetworkError(errors.New("dial"))}, exitUnavailable},
		{"config", config.ErrMissingAnonKey, exitUsage},
		{"other", errors.New("boom"), exitRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
