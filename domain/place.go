package domain

import "strings"

// Place is a point of interest added by a user.
type Place struct {
	ID           ID      `json:"id,omitempty"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Address      string  `json:"address"`
	Category     string  `json:"category"`
	Rating       float64 `json:"rating"`
	RatingsCount int     `json:"ratings_count"`
	ImageURL     *string `json:"image_url,omitempty"`
	CreatedBy    string  `json:"created_by,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// Validate checks the fields required to publish a place.
func (p *Place) Validate() error {
	if p == nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Address) == "" || strings.TrimSpace(p.Category) == "" {
		return NewError(ErrCodeInvalid, "name, address and category are required")
	}
	return nil
}

// Matches reports whether the lower-cased query occurs in any searchable field.
func (p *Place) Matches(query string) bool {
	if p == nil {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	for _, field := range []string{p.Name, p.Description, p.Address, p.Category} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// RatingUpdate is the aggregate written back to a place after a new review.
type RatingUpdate struct {
	Rating       float64 `json:"rating"`
	RatingsCount int     `json:"ratings_count"`
}
