package usecase

import (
	"context"
	"time"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/pkg/backend/auth"
)

// Authenticator is the slice of the auth service the use cases drive.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string, meta map[string]any) error
	SignInWithPassword(ctx context.Context, creds auth.Credentials) error
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdateUser(ctx context.Context, data map[string]any) error
	GetSession(ctx context.Context) *domain.Session
	GetUser(ctx context.Context) *domain.User
}

// ImageStore uploads images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, bucket, objectPath, contentType string, data []byte) (string, error)
	UploadImage(ctx context.Context, bucket, localPath, desiredName string) (string, error)
}

// KeyValueStore persists small preferences.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CurrentUserID returns the signed-in user id or domain.ErrNotAuthenticated.
func CurrentUserID(ctx context.Context, a Authenticator) (string, error) {
	if a == nil {
		return "", domain.ErrNotAuthenticated
	}
	if u := a.GetUser(ctx); u != nil && u.ID != "" {
		return u.ID, nil
	}
	return "", domain.ErrNotAuthenticated
}

// Timestamp formats t the way rows store created_at and updated_at.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
