package attraction

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
	"github.com/fastygo/places/usecase"
)

type UseCase struct {
	attractions repository.AttractionRepository
	favorites   repository.FavoriteRepository
	auth        usecase.Authenticator
	logger      *zap.Logger
}

func New(attractions repository.AttractionRepository, favorites repository.FavoriteRepository, auth usecase.Authenticator, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		attractions: attractions,
		favorites:   favorites,
		auth:        auth,
		logger:      logger,
	}
}

func (uc *UseCase) List(ctx context.Context) ([]domain.Attraction, error) {
	return uc.attractions.List(ctx)
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.Attraction, error) {
	return uc.attractions.GetByID(ctx, id)
}

func (uc *UseCase) Add(ctx context.Context, attraction *domain.Attraction) (*domain.Attraction, error) {
	if attraction == nil || strings.TrimSpace(attraction.Name) == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "attraction name is required")
	}
	return uc.attractions.Create(ctx, attraction)
}

func (uc *UseCase) Update(ctx context.Context, id string, updates map[string]any) (*domain.Attraction, error) {
	delete(updates, "id")
	if len(updates) == 0 {
		return nil, domain.ErrInvalidPayload
	}
	return uc.attractions.Update(ctx, id, updates)
}

func (uc *UseCase) Delete(ctx context.Context, id string) error {
	if err := uc.attractions.Delete(ctx, id); err != nil {
		uc.logger.Error("failed to delete attraction", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// Favorites lists the signed-in user's favorites with their attractions.
func (uc *UseCase) Favorites(ctx context.Context) ([]domain.Favorite, error) {
	userID, err := usecase.CurrentUserID(ctx, uc.auth)
	if err != nil {
		return nil, err
	}
	return uc.favorites.ListByUser(ctx, userID)
}

func (uc *UseCase) AddFavorite(ctx context.Context, attractionID string) (*domain.Favorite, error) {
	userID, err := usecase.CurrentUserID(ctx, uc.auth)
	if err != nil {
		return nil, err
	}
	return uc.favorites.Add(ctx, userID, attractionID)
}

func (uc *UseCase) RemoveFavorite(ctx context.Context, attractionID string) error {
	userID, err := usecase.CurrentUserID(ctx, uc.auth)
	if err != nil {
		return err
	}
	return uc.favorites.Remove(ctx, userID, attractionID)
}
