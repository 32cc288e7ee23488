package session

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/places/domain"
)

// Normalize fills ExpiresAt when the token response left it out, first from
// expires_in and then from the access token's exp claim.
func Normalize(s *domain.Session, now time.Time) {
	if s == nil || s.ExpiresAt > 0 {
		return
	}
	if s.ExpiresIn > 0 {
		s.ExpiresAt = now.Unix() + s.ExpiresIn
		return
	}
	if exp, ok := tokenExpiry(s.AccessToken); ok {
		s.ExpiresAt = exp
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend is the only party that can verify it.
func tokenExpiry(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	switch exp := claims["exp"].(type) {
	case float64:
		return int64(exp), true
	default:
		return 0, false
	}
}
