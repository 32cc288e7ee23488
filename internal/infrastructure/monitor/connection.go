package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/places/internal/infrastructure/credstore"
)

// Prober checks that the backend answers.
type Prober interface {
	Probe(ctx context.Context) error
}

type Config struct {
	Backend     Prober
	Postgres    *pgxpool.Pool
	Redis       *redislib.Client
	Credentials *credstore.Store
	Interval    time.Duration
	Logger      *zap.Logger
}

type Monitor struct {
	backend     Prober
	pg          *pgxpool.Pool
	redis       *redislib.Client
	credentials *credstore.Store

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Monitor{
		backend:     cfg.Backend,
		pg:          cfg.Postgres,
		redis:       cfg.Redis,
		credentials: cfg.Credentials,
		interval:    cfg.Interval,
		stopCh:      make(chan struct{}),
		logger:      cfg.Logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the backend answered the last check and, when a
// database is configured, whether it did too.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pg != nil && !m.status.PostgreSQL {
		return false
	}
	return m.status.Backend
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	credsOK, keys := m.checkCredentials()
	status := Status{
		Backend:         m.checkBackend(ctx),
		PostgreSQL:      m.checkPostgres(ctx),
		Redis:           m.checkRedis(ctx),
		CredentialStore: credsOK,
		StoredKeys:      keys,
		LastCheck:       time.Now(),
	}

	m.mu.Lock()
	if m.status.Backend != status.Backend && !m.status.LastCheck.IsZero() {
		m.logger.Info("backend reachability changed", zap.Bool("online", status.Backend))
	}
	m.status = status
	m.mu.Unlock()
	return status
}

func (m *Monitor) checkBackend(ctx context.Context) bool {
	if m.backend == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.backend.Probe(ctx); err != nil {
		m.logger.Debug("backend probe failed", zap.Error(err))
		return false
	}
	return true
}

func (m *Monitor) checkPostgres(ctx context.Context) bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis(ctx context.Context) bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) checkCredentials() (bool, int) {
	if m.credentials == nil {
		return false, 0
	}
	keys, err := m.credentials.Keys()
	if err != nil {
		m.logger.Warn("credential store check failed", zap.Error(err))
		return false, 0
	}
	return true, len(keys)
}
