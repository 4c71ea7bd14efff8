// Package models contains the persistence-layer row types shared by
// repositories and services.
package models

import "time"

// User is a row in the users table. PasswordHash is empty for OAuth-only
// accounts; such accounts cannot log in with a password.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
