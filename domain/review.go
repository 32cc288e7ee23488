package domain

import (
	"math"
	"time"
)

// DefaultReviewerName is shown when a reviewer has no profile.
const DefaultReviewerName = "User"

// Review is a user's rating of a place.
type Review struct {
	ID        ID          `json:"id,omitempty"`
	PlaceID   string      `json:"place_id"`
	UserID    string      `json:"user_id"`
	Rating    int         `json:"rating"`
	Review    string      `json:"review"`
	CreatedAt string      `json:"created_at,omitempty"`
	User      *ReviewUser `json:"user,omitempty"`
}

// ReviewUser is the public author data attached to a review.
type ReviewUser struct {
	Email        string             `json:"email"`
	UserMetadata ReviewUserMetadata `json:"user_metadata"`
}

type ReviewUserMetadata struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// CreatedTime parses CreatedAt, returning the zero time when it is missing or malformed.
func (r *Review) CreatedTime() time.Time {
	if r == nil || r.CreatedAt == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, r.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// AverageRating returns the mean of ratings rounded to one decimal place.
func AverageRating(ratings []int) RatingUpdate {
	if len(ratings) == 0 {
		return RatingUpdate{}
	}
	total := 0
	for _, r := range ratings {
		total += r
	}
	avg := math.Round(float64(total)/float64(len(ratings))*10) / 10
	return RatingUpdate{Rating: avg, RatingsCount: len(ratings)}
}
