package domain

// User is the backend auth user. UserMetadata holds free-form profile fields
// such as username and avatar_url.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
}

// Username returns user_metadata.username when it is a string.
func (u *User) Username() string {
	return u.metadataString("username")
}

// AvatarURL returns user_metadata.avatar_url when it is a string.
func (u *User) AvatarURL() string {
	return u.metadataString("avatar_url")
}

func (u *User) metadataString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	if v, ok := u.UserMetadata[key].(string); ok {
		return v
	}
	return ""
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.UserMetadata != nil {
		out.UserMetadata = make(map[string]any, len(u.UserMetadata))
		for k, v := range u.UserMetadata {
			out.UserMetadata[k] = v
		}
	}
	return &out
}
