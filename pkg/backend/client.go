// Package backend wires the session-aware client for the hosted backend:
// auth, table queries and storage sharing one transport and one session.
package backend

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fastygo/places/pkg/backend/auth"
	"github.com/fastygo/places/pkg/backend/rest"
	"github.com/fastygo/places/pkg/backend/session"
	"github.com/fastygo/places/pkg/backend/storage"
	"github.com/fastygo/places/pkg/backend/transport"
)

type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration
	// Store persists the session; in-memory when nil.
	Store session.Store
	// ProbeURL is checked before sign-in; empty disables the check.
	ProbeURL     string
	ProbeTimeout time.Duration
	HTTPClient   *fasthttp.Client
	Meter        metric.Meter
	Logger       *zap.Logger
}

// Client bundles the backend services.
type Client struct {
	Transport *transport.Client
	Sessions  *session.Manager
	Auth      *auth.Service
	REST      *rest.Client
	Storage   *storage.Client
}

// HealthURL is the default connectivity probe target for a backend.
func HealthURL(baseURL string) string {
	return baseURL + "/auth/v1/health"
}

func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	tc, err := transport.New(transport.Config{
		BaseURL:    cfg.URL,
		AnonKey:    cfg.AnonKey,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
		Meter:      cfg.Meter,
		Logger:     cfg.Logger.Named("transport"),
	})
	if err != nil {
		return nil, err
	}

	sessions := session.New(session.Config{
		Store:     cfg.Store,
		Transport: tc,
		Logger:    cfg.Logger.Named("session"),
	})

	var prober auth.Prober
	if cfg.ProbeURL != "" {
		prober = auth.URLProbe{Transport: tc, URL: cfg.ProbeURL, Timeout: cfg.ProbeTimeout}
	}

	return &Client{
		Transport: tc,
		Sessions:  sessions,
		Auth:      auth.New(auth.Config{Sessions: sessions, Prober: prober, Logger: cfg.Logger.Named("auth")}),
		REST:      rest.New(tc, sessions, cfg.Logger.Named("rest")),
		Storage:   storage.New(tc, sessions, cfg.Logger.Named("storage")),
	}, nil
}

// From starts a query on table.
func (c *Client) From(table string) *rest.Query {
	return c.REST.From(table)
}
