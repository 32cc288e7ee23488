package repository

import (
	"context"

	"github.com/fastygo/places/domain"
)

type ReviewRepository interface {
	ListByPlace(ctx context.Context, placeID string) ([]domain.Review, error)
	Create(ctx context.Context, review *domain.Review) (*domain.Review, error)
	// RatingsByPlace returns the star values of every review of a place.
	RatingsByPlace(ctx context.Context, placeID string) ([]int, error)
}
