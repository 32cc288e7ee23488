// Package rest implements the repositories over the backend table API.
package rest

import (
	"fmt"

	backendrest "github.com/fastygo/places/pkg/backend/rest"
)

// Table names used by the app.
const (
	TablePlaces     = "places"
	TableReviews    = "reviews"
	TableProfiles   = "profiles"
	TableAttraction = "attractions"
	TableFavorites  = "user_favorites"
)

// Tables opens table queries; *backend.Client and *rest.Client satisfy it.
type Tables interface {
	From(table string) *backendrest.Query
}

// decodeFirst decodes the first row into dst and reports whether there was one.
func decodeFirst(rows backendrest.Rows, dst any) (bool, error) {
	if len(rows) == 0 {
		return false, nil
	}
	if err := rows[0].Decode(dst); err != nil {
		return false, fmt.Errorf("decode row: %w", err)
	}
	return true, nil
}
