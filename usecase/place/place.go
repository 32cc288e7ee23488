package place

import (
	"context"
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
	Places repository.PlaceRepository
	Auth   usecase.Authenticator
	Images usecase.ImageStore
	// Bucket receives place photos; defaults to storage.PlaceImages.
	Bucket string
	Now    func() time.Time
	Logger *zap.Logger
}

type UseCase struct {
	places repository.PlaceRepository
	auth   usecase.Authenticator
	images usecase.ImageStore
	bucket string
	now    func() time.Time
	logger *zap.Logger
}

func New(cfg Config) *UseCase {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Bucket == "" {
		cfg.Bucket = storage.PlaceImages
	}
	return &UseCase{
		places: cfg.Places,
		auth:   cfg.Auth,
		images: cfg.Images,
		bucket: cfg.Bucket,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// AddInput is a new place as entered by the user. ImagePath is an optional
// local photo.
type AddInput struct {
	Name        string
	Description string
	Address     string
	Category    string
	ImagePath   string
}

// ImageObjectName is the object name, without extension, of a place photo.
func ImageObjectName(userID string, t time.Time) string {
	return fmt.Sprintf("place_images/%s_%d", userID, t.UnixMilli())
}

func (uc *UseCase) List(ctx context.Context) ([]domain.Place, error) {
	return uc.places.List(ctx)
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.Place, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrPlaceNotFound
	}
	return uc.places.GetByID(ctx, id)
}

// Add publishes a place owned by the signed-in user, uploading its photo first.
func (uc *UseCase) Add(ctx context.Context, in AddInput) (*domain.Place, error) {
	userID, err := usecase.CurrentUserID(ctx, uc.auth)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	place := &domain.Place{
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Address:      strings.TrimSpace(in.Address),
		Category:     strings.TrimSpace(in.Category),
		CreatedBy:    userID,
		CreatedAt:    usecase.Timestamp(now),
		Rating:       0,
		RatingsCount: 0,
	}
	if err := place.Validate(); err != nil {
		return nil, err
	}

	if in.ImagePath != "" {
		if uc.images == nil {
			return nil, domain.NewError(domain.ErrCodeUnavailable, "image storage is not configured")
		}
		url, err := uc.images.UploadImage(ctx, uc.bucket, in.ImagePath, ImageObjectName(userID, now))
		if err != nil {
			uc.logger.Error("place photo upload failed", zap.String("path", in.ImagePath), zap.Error(err))
			return nil, err
		}
		place.ImageURL = &url
	}

	created, err := uc.places.Create(ctx, place)
	if err != nil {
		uc.logger.Error("failed to add place", zap.String("name", place.Name), zap.Error(err))
		return nil, err
	}
	uc.logger.Info("place added", zap.String("id", created.ID.String()), zap.String("user_id", userID))
	return created, nil
}

// Search returns places whose name, description, address or category
// contains query, ignoring case. A blank query matches nothing.
func (uc *UseCase) Search(ctx context.Context, query string) ([]domain.Place, error) {
	if strings.TrimSpace(query) == "" {
		return []domain.Place{}, nil
	}
	all, err := uc.places.List(ctx)
	if err != nil {
		return nil, err
	}
	matches := []domain.Place{}
	for i := range all {
		if all[i].Matches(query) {
			matches = append(matches, all[i])
		}
	}
	return matches, nil
}
