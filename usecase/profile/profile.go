package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/pkg/backend/storage"
	"github.com/fastygo/places/repository"
	"github.com/fastygo/places/usecase"
)

type Config struct {
	Profiles repository.ProfileRepository
	Auth     usecase.Authenticator
	Images   usecase.ImageStore
	// Bucket receives avatars; defaults to storage.ProfileImages.
	Bucket string
	Now    func() time.Time
	Logger *zap.Logger
}

type UseCase struct {
	profiles repository.ProfileRepository
	auth     usecase.Authenticator
	images   usecase.ImageStore
	bucket   string
	now      func() time.Time
	logger   *zap.Logger
}

func New(cfg Config) *UseCase {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Bucket == "" {
		cfg.Bucket = storage.ProfileImages
	}
	return &UseCase{
		profiles: cfg.Profiles,
		auth:     cfg.Auth,
		images:   cfg.Images,
		bucket:   cfg.Bucket,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// AvatarName is the object name of a user's avatar uploaded at t.
func AvatarName(userID string, t time.Time) string {
	return fmt.Sprintf("profile_%s_%d", userID, t.UnixMilli())
}

// CompleteRegistration creates the profile row of the signed-in user. An
// avatar that fails to upload is skipped; the profile is created without it.
func (uc *UseCase) CompleteRegistration(ctx context.Context, username, avatarPath string) (*domain.Profile, error) {
	userID, err := usecase.CurrentUserID(ctx, uc.auth)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "username is required")
	}

	avatar := uc.uploadAvatar(ctx, userID, avatarPath)
	profile, err := uc.profiles.Create(ctx, &domain.Profile{
		ID:        userID,
		Username:  username,
		AvatarURL: avatar,
		UpdatedAt: usecase.Timestamp(uc.now()),
	})
	if err != nil {
		uc.logger.Error("failed to create profile", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	if avatar != nil {
		if err := uc.auth.UpdateUser(ctx, map[string]any{"avatar_url": *avatar, "username": username}); err != nil {
			uc.logger.Warn("failed to copy avatar to user metadata", zap.Error(err))
		}
	}
	return profile, nil
}

// UpdateProfile changes the username and optionally the avatar of the
// signed-in user, in both the profile row and the auth metadata.
func (uc *UseCase) UpdateProfile(ctx context.Context, username, avatarPath string) (*domain.Profile, error) {
	userID, err := usecase.CurrentUserID(ctx, uc.auth)
	if err != nil {
		return nil, err
	}

	profile, err := uc.profiles.GetByID(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		profile = &domain.Profile{ID: userID}
	case err != nil:
		return nil, err
	}

	data := map[string]any{}
	if username = strings.TrimSpace(username); username != "" {
		profile.Username = username
		data["username"] = username
	}
	if avatarPath != "" {
		avatar := uc.uploadAvatar(ctx, userID, avatarPath)
		if avatar == nil {
			return nil, domain.NewError(domain.ErrCodeUnavailable, "avatar upload failed")
		}
		profile.AvatarURL = avatar
		data["avatar_url"] = *avatar
	}
	if len(data) == 0 {
		return nil, domain.ErrInvalidPayload
	}
	if profile.Username == "" {
		profile.Username = uc.auth.GetUser(ctx).Username()
	}
	profile.UpdatedAt = usecase.Timestamp(uc.now())

	if err := uc.auth.UpdateUser(ctx, data); err != nil {
		return nil, err
	}
	if err := uc.profiles.Update(ctx, profile); err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			return nil, err
		}
		if profile, err = uc.profiles.Create(ctx, profile); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return uc.profiles.GetByID(ctx, userID)
}

func (uc *UseCase) uploadAvatar(ctx context.Context, userID, avatarPath string) *string {
	if avatarPath == "" || uc.images == nil {
		return nil
	}
	url, err := uc.images.UploadImage(ctx, uc.bucket, avatarPath, AvatarName(userID, uc.now()))
	if err != nil {
		uc.logger.Warn("avatar upload failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return &url
}
