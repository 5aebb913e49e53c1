package backend

import "time"

// User is the account a Session belongs to, as reported by the auth API.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Provider     string                 `json:"provider,omitempty"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// Session is a cached copy of a session issued by the auth API.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Valid returns true if both credentials are present and the access token has
// not expired. A nil Session is never valid.
func (s *Session) Valid() bool {
	return s != nil &&
		s.AccessToken != "" &&
		s.RefreshToken != "" &&
		time.Now().Before(s.ExpiresAt)
}

// Refreshable returns true if the session has expired but still carries a
// refresh credential.
func (s *Session) Refreshable() bool {
	return s != nil && s.RefreshToken != "" && !s.Valid()
}
