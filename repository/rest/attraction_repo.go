package rest

import (
	"context"
	"fmt"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
)

type attractionRepository struct {
	tables Tables
}

// NewAttractionRepository returns an AttractionRepository backed by the attractions table.
func NewAttractionRepository(tables Tables) repository.AttractionRepository {
	return &attractionRepository{tables: tables}
}

func (r *attractionRepository) List(ctx context.Context) ([]domain.Attraction, error) {
	rows, err := r.tables.From(TableAttraction).Select("*").Get(ctx)
	if err != nil {
		return nil, err
	}
	attractions := []domain.Attraction{}
	if err := rows.Decode(&attractions); err != nil {
		return nil, fmt.Errorf("decode attractions: %w", err)
	}
	return attractions, nil
}

func (r *attractionRepository) GetByID(ctx context.Context, id string) (*domain.Attraction, error) {
	row, err := r.tables.From(TableAttraction).Eq("id", id).GetOne(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrAttractionNotFound
	}
	var attraction domain.Attraction
	if err := row.Decode(&attraction); err != nil {
		return nil, fmt.Errorf("decode attraction: %w", err)
	}
	return &attraction, nil
}

func (r *attractionRepository) Create(ctx context.Context, attraction *domain.Attraction) (*domain.Attraction, error) {
	if attraction == nil {
		return nil, domain.ErrInvalidPayload
	}
	rows, err := r.tables.From(TableAttraction).Insert(ctx, []*domain.Attraction{attraction})
	if err != nil {
		return nil, err
	}
	var created domain.Attraction
	ok, err := decodeFirst(rows, &created)
	if err != nil {
		return nil, err
	}
	if !ok {
		return attraction, nil
	}
	return &created, nil
}

func (r *attractionRepository) Update(ctx context.Context, id string, updates map[string]any) (*domain.Attraction, error) {
	if len(updates) == 0 {
		return nil, domain.ErrInvalidPayload
	}
	rows, err := r.tables.From(TableAttraction).Eq("id", id).Select("*").Update(ctx, updates)
	if err != nil {
		return nil, err
	}
	var updated domain.Attraction
	ok, err := decodeFirst(rows, &updated)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAttractionNotFound
	}
	return &updated, nil
}

func (r *attractionRepository) Delete(ctx context.Context, id string) error {
	return r.tables.From(TableAttraction).Eq("id", id).Remove(ctx)
}

type favoriteRepository struct {
	tables Tables
}

// NewFavoriteRepository returns a FavoriteRepository backed by the user_favorites table.
func NewFavoriteRepository(tables Tables) repository.FavoriteRepository {
	return &favoriteRepository{tables: tables}
}

func (r *favoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error) {
	rows, err := r.tables.From(TableFavorites).Eq("user_id", userID).Select("*, attractions(*)").Get(ctx)
	if err != nil {
		return nil, err
	}
	favorites := []domain.Favorite{}
	if err := rows.Decode(&favorites); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return favorites, nil
}

func (r *favoriteRepository) Add(ctx context.Context, userID, attractionID string) (*domain.Favorite, error) {
	if userID == "" || attractionID == "" {
		return nil, domain.ErrInvalidPayload
	}
	fav := domain.Favorite{UserID: userID, AttractionID: attractionID}
	rows, err := r.tables.From(TableFavorites).Insert(ctx, []domain.Favorite{fav})
	if err != nil {
		return nil, err
	}
	var created domain.Favorite
	ok, err := decodeFirst(rows, &created)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &fav, nil
	}
	return &created, nil
}

func (r *favoriteRepository) Remove(ctx context.Context, userID, attractionID string) error {
	return r.tables.From(TableFavorites).Eq("user_id", userID).Eq("attraction_id", attractionID).Remove(ctx)
}
