package repository

import (
	"context"

	"github.com/fastygo/places/domain"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Create(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
}
