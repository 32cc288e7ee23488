package review

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
	"github.com/fastygo/places/usecase"
)

// profileLookups bounds concurrent profile reads while enriching a list.
const profileLookups = 4

type Config struct {
	Reviews  repository.ReviewRepository
	Places   repository.PlaceRepository
	Profiles repository.ProfileRepository
	Auth     usecase.Authenticator
	Now      func() time.Time
	Logger   *zap.Logger
}

type UseCase struct {
	reviews  repository.ReviewRepository
	places   repository.PlaceRepository
	profiles repository.ProfileRepository
	auth     usecase.Authenticator
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
	return &UseCase{
		reviews:  cfg.Reviews,
		places:   cfg.Places,
		profiles: cfg.Profiles,
		auth:     cfg.Auth,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// ListWithUserData returns a place's reviews newest first, each carrying its
// author's public profile. Missing or unreadable profiles fall back to
// defaults.
func (uc *UseCase) ListWithUserData(ctx context.Context, placeID string) ([]domain.Review, error) {
	reviews, err := uc.reviews.ListByPlace(ctx, placeID)
	if err != nil {
		uc.logger.Error("failed to list reviews", zap.String("place_id", placeID), zap.Error(err))
		return nil, err
	}
	if len(reviews) == 0 {
		return []domain.Review{}, nil
	}

	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].CreatedTime().After(reviews[j].CreatedTime())
	})

	var userIDs []string
	seen := make(map[string]bool, len(reviews))
	for _, r := range reviews {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			userIDs = append(userIDs, r.UserID)
		}
	}

	authors := make([]*domain.ReviewUser, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileLookups)
	for i, userID := range userIDs {
		g.Go(func() error {
			authors[i] = uc.author(gctx, userID)
			return nil
		})
	}
	_ = g.Wait()

	byUser := make(map[string]*domain.ReviewUser, len(userIDs))
	for i, userID := range userIDs {
		byUser[userID] = authors[i]
	}
	for i := range reviews {
		reviews[i].User = byUser[reviews[i].UserID]
	}
	return reviews, nil
}

// AddAndUpdateRating stores a review from the signed-in user, recomputes the
// place's average from all of its reviews and writes it back.
func (uc *UseCase) AddAndUpdateRating(ctx context.Context, placeID string, rating int, text string) (*domain.Review, error) {
	userID, err := usecase.CurrentUserID(ctx, uc.auth)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(placeID) == "" {
		return nil, domain.ErrPlaceNotFound
	}
	if rating < 1 || rating > 5 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "rating must be between 1 and 5")
	}

	review := &domain.Review{
		PlaceID:   placeID,
		UserID:    userID,
		Rating:    rating,
		Review:    strings.TrimSpace(text),
		CreatedAt: usecase.Timestamp(uc.now()),
	}
	created, err := uc.reviews.Create(ctx, review)
	if err != nil {
		uc.logger.Error("failed to add review", zap.String("place_id", placeID), zap.Error(err))
		return nil, err
	}

	ratings, err := uc.reviews.RatingsByPlace(ctx, placeID)
	if err != nil {
		return nil, err
	}
	update := domain.AverageRating(ratings)
	if err := uc.places.UpdateRating(ctx, placeID, update); err != nil {
		uc.logger.Error("failed to update place rating",
			zap.String("place_id", placeID),
			zap.Float64("rating", update.Rating),
			zap.Error(err))
		return nil, err
	}

	created.User = uc.author(ctx, userID)
	return created, nil
}

func (uc *UseCase) author(ctx context.Context, userID string) *domain.ReviewUser {
	profile, err := uc.profiles.GetByID(ctx, userID)
	if err != nil {
		if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
			uc.logger.Warn("failed to load reviewer profile", zap.String("user_id", userID), zap.Error(err))
		}
		profile = nil
	}
	return profile.ReviewUser()
}
