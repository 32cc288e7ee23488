package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/places/pkg/backend/session"
)

// CredentialStore keeps the session blob and preferences in Redis so several
// headless clients can share one sign-in.
type CredentialStore struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

var _ session.Store = (*CredentialStore)(nil)

// NewCredentialStore creates a Redis-backed credential store. A zero ttl keeps
// keys until they are deleted.
func NewCredentialStore(client *redislib.Client, prefix string, ttl time.Duration) *CredentialStore {
	if prefix == "" {
		prefix = "places:"
	}
	return &CredentialStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *CredentialStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return result, nil
}

func (r *CredentialStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *CredentialStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *CredentialStore) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}
