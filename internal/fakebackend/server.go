// Package fakebackend is an in-process stand-in for the hosted backend. It
// serves the auth, REST and storage endpoints the client uses from memory.
package fakebackend

import (
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/fastygo/places/pkg/httpcontext"
)

const (
	DefaultAnonKey = "fake-anon-key"
	defaultSecret  = "fake-backend-signing-secret"
	inMemoryURL    = "http://fake.backend"
)

// DefaultTables are created on start.
var DefaultTables = []string{"profiles", "places", "reviews", "attractions", "user_favorites"}

// DefaultBuckets are created on start.
var DefaultBuckets = []string{"profile-images", "attraction-images"}

var errNotStarted = errors.New("fakebackend: server not started")

type Config struct {
	AnonKey   string
	JWTSecret string
	TokenTTL  time.Duration
	Tables    []string
	Buckets   []string
	Logger    *zap.Logger
	Now       func() time.Time
}

// Server holds the emulated backend state.
type Server struct {
	cfg     Config
	logger  *zap.Logger
	adapter *httpcontext.Adapter
	handler fasthttp.RequestHandler

	mu            sync.Mutex
	accounts      map[string]*account
	emails        map[string]string
	refreshTokens map[string]string
	recoveries    []string
	tables        map[string][]Row
	buckets       map[string]map[string]Object
	faults        []*Fault
	requests      []RecordedRequest

	srv *fasthttp.Server
	ln  *fasthttputil.InmemoryListener
}

// New builds a server with the default tables and buckets.
func New(cfg Config) *Server {
	if cfg.AnonKey == "" {
		cfg.AnonKey = DefaultAnonKey
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = defaultSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = DefaultTables
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultBuckets
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:           cfg,
		logger:        cfg.Logger,
		adapter:       httpcontext.NewAdapter(5 * time.Second),
		accounts:      make(map[string]*account),
		emails:        make(map[string]string),
		refreshTokens: make(map[string]string),
		tables:        make(map[string][]Row),
		buckets:       make(map[string]map[string]Object),
	}
	for _, t := range cfg.Tables {
		s.tables[t] = nil
	}
	for _, b := range cfg.Buckets {
		s.buckets[b] = make(map[string]Object)
	}
	s.handler = s.middleware(s.routes().Handler)
	return s
}

func (s *Server) routes() *router.Router {
	r := router.New()

	r.GET("/auth/v1/health", s.health)
	r.POST("/auth/v1/signup", s.signUp)
	r.POST("/auth/v1/token", s.token)
	r.POST("/auth/v1/logout", s.logout)
	r.POST("/auth/v1/recover", s.recover)
	r.GET("/auth/v1/user", s.getUser)
	r.PUT("/auth/v1/user", s.updateUser)

	r.GET("/rest/v1/{table}", s.selectRows)
	r.POST("/rest/v1/{table}", s.insertRows)
	r.PATCH("/rest/v1/{table}", s.updateRows)
	r.DELETE("/rest/v1/{table}", s.deleteRows)

	r.ANY("/storage/v1/object/{object:*}", s.storageObject)

	return r
}

// Handler exposes the request handler, e.g. for a real listener.
func (s *Server) Handler() fasthttp.RequestHandler { return s.handler }

// AnonKey returns the public key clients must send.
func (s *Server) AnonKey() string { return s.cfg.AnonKey }

// Start serves the backend on an in-memory listener.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	s.ln = fasthttputil.NewInmemoryListener()
	s.srv = &fasthttp.Server{Handler: s.handler, Name: "fakebackend"}
	srv, ln := s.srv, s.ln
	go func() {
		if err := srv.Serve(ln); err != nil {
			s.logger.Warn("fake backend stopped", zap.Error(err))
		}
	}()
	return nil
}

// BaseURL is the URL clients of Client() should use.
func (s *Server) BaseURL() string { return inMemoryURL }

// Client returns a fasthttp client that dials the in-memory listener.
func (s *Server) Client() *fasthttp.Client {
	return &fasthttp.Client{
		Dial: func(string) (net.Conn, error) {
			s.mu.Lock()
			ln := s.ln
			s.mu.Unlock()
			if ln == nil {
				return nil, errNotStarted
			}
			return ln.Dial()
		},
	}
}

// ListenAndServe serves the backend on a TCP address until Close is called.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.New("fakebackend: already serving")
	}
	s.srv = &fasthttp.Server{Handler: s.handler, Name: "fakebackend"}
	srv := s.srv
	s.mu.Unlock()
	return srv.ListenAndServe(addr)
}

// Close stops serving. Subsequent dials through Client fail.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown()
}

func (s *Server) now() time.Time { return s.cfg.Now() }

// TableNames lists the known tables in name order.
func (s *Server) TableNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Server) health(ctx *fasthttp.RequestCtx) {
	respondJSON(ctx, fasthttp.StatusOK, map[string]any{
		"name":        "fakebackend",
		"version":     "v1",
		"description": "in-memory backend emulation",
	})
}
