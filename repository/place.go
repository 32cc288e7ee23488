package repository

import (
	"context"

	"github.com/fastygo/places/domain"
)

type PlaceRepository interface {
	List(ctx context.Context) ([]domain.Place, error)
	GetByID(ctx context.Context, id string) (*domain.Place, error)
	Create(ctx context.Context, place *domain.Place) (*domain.Place, error)
	UpdateRating(ctx context.Context, id string, update domain.RatingUpdate) error
}
