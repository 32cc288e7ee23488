package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fastygo/places/pkg/backend"
)

// Credential store kinds.
const (
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

var (
	ErrMissingBackendURL = errors.New("config: BACKEND_URL is required")
	ErrMissingAnonKey    = errors.New("config: BACKEND_ANON_KEY is required")
	ErrUnknownStore      = errors.New("config: CREDENTIAL_STORE must be bolt, redis or memory")
)

// Config aggregates all runtime settings required by the client and CLI.
type Config struct {
	Backend     BackendConfig
	Credentials CredentialsConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Migrations  MigrationsConfig
	Reconciler  ReconcilerConfig
	Mock        MockConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type BackendConfig struct {
	URL            string
	AnonKey        string
	RequestTimeout time.Duration
	// ProbeURL is empty when the sign-in connectivity check is disabled.
	ProbeURL      string
	ProbeTimeout  time.Duration
	ProfileBucket string
	PlaceBucket   string
}

type CredentialsConfig struct {
	Store  string
	Path   string
	Bucket string
	Prefix string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type MigrationsConfig struct {
	Path string
}

type ReconcilerConfig struct {
	Interval time.Duration
}

type MockConfig struct {
	Addr    string
	AnonKey string
}

type ContextConfig struct {
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables, optionally seeded from
// env files (".env" when none are given), and applies defaults.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load(".env")
	} else if err := godotenv.Load(files...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Backend: BackendConfig{
			URL:            strings.TrimRight(getString("BACKEND_URL", "http://127.0.0.1:54321"), "/"),
			AnonKey:        os.Getenv("BACKEND_ANON_KEY"),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
			ProbeURL:       os.Getenv("PROBE_URL"),
			ProbeTimeout:   getDuration("PROBE_TIMEOUT", 5*time.Second),
			ProfileBucket:  getString("PROFILE_BUCKET", "profile-images"),
			PlaceBucket:    getString("PLACE_BUCKET", "attraction-images"),
		},
		Credentials: CredentialsConfig{
			Store:  strings.ToLower(getString("CREDENTIAL_STORE", StoreBolt)),
			Path:   getString("CREDENTIAL_PATH", defaultCredentialPath()),
			Bucket: getString("CREDENTIAL_BUCKET", "credentials"),
			Prefix: getString("CREDENTIAL_PREFIX", "places:"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: getInt("DB_MAX_CONNS", 5),
		},
		Migrations: MigrationsConfig{
			Path: getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
		Reconciler: ReconcilerConfig{
			Interval: getDuration("RECONCILE_INTERVAL", 5*time.Minute),
		},
		Mock: MockConfig{
			Addr:    getString("MOCK_ADDR", "127.0.0.1:54321"),
			AnonKey: getString("MOCK_ANON_KEY", "fake-anon-key"),
		},
		Context: ContextConfig{
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "warn"),
			Encoding: getString("LOG_ENCODING", "console"),
		},
	}

	cfg.Backend.ProbeURL = resolveProbeURL(cfg.Backend.ProbeURL, cfg.Backend.URL)

	switch cfg.Credentials.Store {
	case StoreBolt, StoreRedis, StoreMemory:
	default:
		return nil, ErrUnknownStore
	}

	return cfg, nil
}

// Validate checks the settings needed to talk to the backend.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return ErrMissingBackendURL
	}
	if c.Backend.AnonKey == "" {
		return ErrMissingAnonKey
	}
	return nil
}

// ClientConfig returns the backend client settings. Store, transport and
// telemetry are wired by the caller.
func (c *Config) ClientConfig() backend.Config {
	return backend.Config{
		URL:          c.Backend.URL,
		AnonKey:      c.Backend.AnonKey,
		Timeout:      c.Backend.RequestTimeout,
		ProbeURL:     c.Backend.ProbeURL,
		ProbeTimeout: c.Backend.ProbeTimeout,
	}
}

func resolveProbeURL(raw, baseURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return backend.HealthURL(baseURL)
	case "off", "none", "disabled", "false":
		return ""
	}
	return raw
}

func defaultCredentialPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data/credentials.db"
	}
	return dir + "/places/credentials.db"
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
