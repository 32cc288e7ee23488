package domain

import "time"

// Session is the authenticated state returned by the backend token endpoint.
// ExpiresAt is a unix timestamp in seconds.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

// IsExpired reports whether the access token is no longer valid at reference.
// A zero reference means now.
func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !(s.ExpiresAt*1000 > reference.UnixMilli())
}

// Expiry returns ExpiresAt as a time.Time.
func (s *Session) Expiry() time.Time {
	if s == nil {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// UserID returns the id of the session user, or an empty string.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Clone returns a deep enough copy for callers that mutate the user record.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.User != nil {
		out.User = s.User.Clone()
	}
	return &out
}
