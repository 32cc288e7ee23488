package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
)

type reviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a Postgres-backed implementation of ReviewRepository.
func NewReviewRepository(pool *pgxpool.Pool) repository.ReviewRepository {
	return &reviewRepository{pool: pool}
}

func (r *reviewRepository) ListByPlace(ctx context.Context, placeID string) ([]domain.Review, error) {
	const query = `
	SELECT id, place_id, user_id, rating, review, created_at
	FROM reviews
	WHERE place_id = $1
	ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, placeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, *review)
	}
	return reviews, rows.Err()
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	if review == nil {
		return nil, domain.ErrInvalidPayload
	}
	if review.ID == "" {
		review.ID = domain.ID(uuid.NewString())
	}

	const query = `
	INSERT INTO reviews (id, place_id, user_id, rating, review)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		review.ID.String(),
		review.PlaceID,
		review.UserID,
		review.Rating,
		review.Review,
	).Scan(&createdAt); err != nil {
		return nil, err
	}
	review.CreatedAt = formatTime(createdAt)
	return review, nil
}

func (r *reviewRepository) RatingsByPlace(ctx context.Context, placeID string) ([]int, error) {
	const query = `SELECT rating FROM reviews WHERE place_id = $1`
	rows, err := r.pool.Query(ctx, query, placeID)
	if err != nil {
		return nil, err
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	if ratings == nil {
		ratings = []int{}
	}
	return ratings, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var (
		review    domain.Review
		id        string
		createdAt time.Time
	)
	if err := row.Scan(
		&id,
		&review.PlaceID,
		&review.UserID,
		&review.Rating,
		&review.Review,
		&createdAt,
	); err != nil {
		return nil, err
	}
	review.ID = domain.ID(id)
	review.CreatedAt = formatTime(createdAt)
	return &review, nil
}
