package repository

import (
	"context"

	"github.com/fastygo/places/domain"
)

type AttractionRepository interface {
	List(ctx context.Context) ([]domain.Attraction, error)
	GetByID(ctx context.Context, id string) (*domain.Attraction, error)
	Create(ctx context.Context, attraction *domain.Attraction) (*domain.Attraction, error)
	Update(ctx context.Context, id string, updates map[string]any) (*domain.Attraction, error)
	Delete(ctx context.Context, id string) error
}

type FavoriteRepository interface {
	// ListByUser returns the user's favorites with the attraction row embedded.
	ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error)
	Add(ctx context.Context, userID, attractionID string) (*domain.Favorite, error)
	Remove(ctx context.Context, userID, attractionID string) error
}
