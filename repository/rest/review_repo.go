package rest

import (
	"context"
	"fmt"

	"github.com/fastygo/places/domain"
	"github.com/fastygo/places/repository"
)

type reviewRepository struct {
	tables Tables
}

// NewReviewRepository returns a ReviewRepository backed by the reviews table.
func NewReviewRepository(tables Tables) repository.ReviewRepository {
	return &reviewRepository{tables: tables}
}

func (r *reviewRepository) ListByPlace(ctx context.Context, placeID string) ([]domain.Review, error) {
	rows, err := r.tables.From(TableReviews).Eq("place_id", placeID).Select("*").Get(ctx)
	if err != nil {
		return nil, err
	}
	reviews := []domain.Review{}
	if err := rows.Decode(&reviews); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return reviews, nil
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	if review == nil {
		return nil, domain.ErrInvalidPayload
	}
	rows, err := r.tables.From(TableReviews).Insert(ctx, []*domain.Review{review})
	if err != nil {
		return nil, err
	}
	var created domain.Review
	ok, err := decodeFirst(rows, &created)
	if err != nil {
		return nil, err
	}
	if !ok {
		return review, nil
	}
	return &created, nil
}

func (r *reviewRepository) RatingsByPlace(ctx context.Context, placeID string) ([]int, error) {
	rows, err := r.tables.From(TableReviews).Eq("place_id", placeID).Select("rating").Get(ctx)
	if err != nil {
		return nil, err
	}
	var scores []struct {
		Rating int `json:"rating"`
	}
	if err := rows.Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}
	ratings := make([]int, 0, len(scores))
	for _, s := range scores {
		ratings = append(ratings, s.Rating)
	}
	return ratings, nil
}
