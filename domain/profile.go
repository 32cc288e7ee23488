package domain

// Profile is the public row kept in the profiles table, keyed by auth user id.
type Profile struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// ReviewUser renders the profile the way reviews expose their author.
func (p *Profile) ReviewUser() *ReviewUser {
	ru := &ReviewUser{Email: "user", UserMetadata: ReviewUserMetadata{Username: DefaultReviewerName}}
	if p == nil {
		return ru
	}
	if p.Username != "" {
		ru.UserMetadata.Username = p.Username
	}
	ru.UserMetadata.AvatarURL = p.AvatarURL
	return ru
}
