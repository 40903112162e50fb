package models

import "time"

// AuthSession is the signed-in account persisted on the device. Tokens are
// kept in plain form here; the repository seals them before storage.
type AuthSession struct {
	UserID          string    `json:"user_id"`
	Email           string    `json:"email"`
	AccessToken     string    `json:"-"`
	RefreshToken    string    `json:"-"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Expired reports whether the access token is past its expiry at now.
// A zero expiry never expires.
func (s *AuthSession) Expired(now time.Time) bool {
	if s.AccessExpiresAt.IsZero() {
		return false
	}
	return now.After(s.AccessExpiresAt)
}
