package rest

import (
	"context"
	"fmt"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
)

type placeRepository struct {
	tables Tables
}

// NewPlaceRepository returns a PlaceRepository backed by the places table.
func NewPlaceRepository(tables Tables) repository.PlaceRepository {
	return &placeRepository{tables: tables}
}

func (r *placeRepository) List(ctx context.Context) ([]domain.Place, error) {
	rows, err := r.tables.From(TablePlaces).Select("*").Get(ctx)
	if err != nil {
		return nil, err
	}
	places := []domain.Place{}
	if err := rows.Decode(&places); err != nil {
		return nil, fmt.Errorf("decode places: %w", err)
	}
	return places, nil
}

func (r *placeRepository) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	row, err := r.tables.From(TablePlaces).Eq("id", id).GetOne(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrPlaceNotFound
	}
	var place domain.Place
	if err := row.Decode(&place); err != nil {
		return nil, fmt.Errorf("decode place: %w", err)
	}
	return &place, nil
}

func (r *placeRepository) Create(ctx context.Context, place *domain.Place) (*domain.Place, error) {
	if place == nil {
		return nil, domain.ErrInvalidPayload
	}
	rows, err := r.tables.From(TablePlaces).Insert(ctx, []*domain.Place{place})
	if err != nil {
		return nil, err
	}
	var created domain.Place
	ok, err := decodeFirst(rows, &created)
	if err != nil {
		return nil, err
	}
	if !ok {
		return place, nil
	}
	return &created, nil
}

// UpdateRating writes the aggregate without reading the row back.
func (r *placeRepository) UpdateRating(ctx context.Context, id string, update domain.RatingUpdate) error {
	return r.tables.From(TablePlaces).Eq("id", id).UpdateMinimal(ctx, update)
}
