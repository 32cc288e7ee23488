package domain

import "encoding/json"

// Attraction is a curated point of interest.
type Attraction struct {
	ID          ID      `json:"id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// Favorite links a user to an attraction. Attraction is filled when the
// query embeds the related row.
type Favorite struct {
	ID           ID              `json:"id,omitempty"`
	UserID       string          `json:"user_id"`
	AttractionID string          `json:"attraction_id"`
	Attraction   json.RawMessage `json:"attractions,omitempty"`
	CreatedAt    string          `json:"created_at,omitempty"`
}
