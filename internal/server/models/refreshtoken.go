package models

import "time"

// RefreshToken is a row in the refresh_tokens table. TokenHash is the hex
// SHA-256 of the raw token; the raw token itself is never stored.
//
// A row is valid only while IsRevoked is false and ExpiresAt is in the
// future. IsRevoked flips false→true exactly once and never back.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}
