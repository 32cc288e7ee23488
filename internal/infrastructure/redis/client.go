// Package redis connects to the Redis instance that can hold shared
// credentials for headless placesctl runs.
package redis

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/internal/config"
)

const (
	pingTimeout = 5 * time.Second
	clientName  = "placesctl"
)

// NewClient connects using cfg and pings once. A malformed URL is reported
// as invalid input, a failed ping as an unavailable dependency.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goRedis.Client, error) {
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "redis url", err)
	}
	// explicit settings win over the URL
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.ClientName = clientName

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "redis ping "+opts.Addr, err)
	}
	return client, nil
}
