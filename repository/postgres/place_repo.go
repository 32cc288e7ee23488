package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
)

type placeRepository struct {
	pool *pgxpool.Pool
}

// NewPlaceRepository returns a Postgres-backed implementation of PlaceRepository.
func NewPlaceRepository(pool *pgxpool.Pool) repository.PlaceRepository {
	return &placeRepository{pool: pool}
}

func (r *placeRepository) List(ctx context.Context) ([]domain.Place, error) {
	const query = `
	SELECT id, name, description, address, category, rating, ratings_count, image_url, created_by, created_at
	FROM places
	ORDER BY created_at DESC
	LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, clampLimit(0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	places := []domain.Place{}
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, *place)
	}
	return places, rows.Err()
}

func (r *placeRepository) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	const query = `
	SELECT id, name, description, address, category, rating, ratings_count, image_url, created_by, created_at
	FROM places
	WHERE id = $1
	`
	return scanPlace(r.pool.QueryRow(ctx, query, id))
}

func (r *placeRepository) Create(ctx context.Context, place *domain.Place) (*domain.Place, error) {
	if place == nil {
		return nil, domain.ErrInvalidPayload
	}
	if place.ID == "" {
		place.ID = domain.ID(uuid.NewString())
	}

	const query = `
	INSERT INTO places (id, name, description, address, category, rating, ratings_count, image_url, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		place.ID.String(),
		place.Name,
		place.Description,
		place.Address,
		place.Category,
		place.Rating,
		place.RatingsCount,
		place.ImageURL,
		nullString(place.CreatedBy),
	).Scan(&createdAt); err != nil {
		return nil, err
	}
	place.CreatedAt = formatTime(createdAt)
	return place, nil
}

func (r *placeRepository) UpdateRating(ctx context.Context, id string, update domain.RatingUpdate) error {
	const query = `
	UPDATE places
	SET rating = $2, ratings_count = $3
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, update.Rating, update.RatingsCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlaceNotFound
	}
	return nil
}

func scanPlace(row pgx.Row) (*domain.Place, error) {
	var (
		place     domain.Place
		id        string
		createdBy *string
		createdAt time.Time
	)
	if err := row.Scan(
		&id,
		&place.Name,
		&place.Description,
		&place.Address,
		&place.Category,
		&place.Rating,
		&place.RatingsCount,
		&place.ImageURL,
		&createdBy,
		&createdAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlaceNotFound
		}
		return nil, err
	}
	place.ID = domain.ID(id)
	if createdBy != nil {
		place.CreatedBy = *createdBy
	}
	place.CreatedAt = formatTime(createdAt)
	return &place, nil
}
