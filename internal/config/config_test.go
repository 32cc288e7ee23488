package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://demo.example.co/")
	t.Setenv("BACKEND_ANON_KEY", "anon")
	t.Setenv("PROBE_URL", "")

	cfg, err := Load(writeEnv(t, ""))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://demo.example.co", cfg.Backend.URL)
	assert.Equal(t, "https://demo.example.co/auth/v1/health", cfg.Backend.ProbeURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.ProbeTimeout)
	assert.Equal(t, "profile-images", cfg.Backend.ProfileBucket)
	assert.Equal(t, StoreBolt, cfg.Credentials.Store)

	cc := cfg.ClientConfig()
	assert.Equal(t, "anon", cc.AnonKey)
	assert.Equal(t, cfg.Backend.ProbeURL, cc.ProbeURL)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := writeEnv(t, "BACKEND_URL=http://localhost:9999\nBACKEND_ANON_KEY=from-file\nPROBE_URL=off\nREQUEST_TIMEOUT=3\nRECONCILE_INTERVAL=90s\nCREDENTIAL_STORE=Redis\n")
	for _, key := range []string{"BACKEND_URL", "BACKEND_ANON_KEY", "PROBE_URL", "REQUEST_TIMEOUT", "RECONCILE_INTERVAL", "CREDENTIAL_STORE"} {
		unsetForTest(t, key)
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Backend.AnonKey)
	assert.Empty(t, cfg.Backend.ProbeURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 90*time.Second, cfg.Reconciler.Interval)
	assert.Equal(t, StoreRedis, cfg.Credentials.Store)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("CREDENTIAL_STORE", "sqlite")
	_, err := Load(writeEnv(t, ""))
	assert.ErrorIs(t, err, ErrUnknownStore)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingBackendURL)
	cfg.Backend.URL = "http://x"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAnonKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// unsetForTest clears key for the test and restores it afterwards; godotenv
// never overrides variables that are already set.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
