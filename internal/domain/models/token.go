package models

import "time"

// RefreshToken is the server-side record of an issued refresh token. The raw
// token is never stored, only its hash.
type RefreshToken struct {
	TokenHash string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
