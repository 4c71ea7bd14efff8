// Package common defines the sentinel errors shared across the auth service.
// Callers match them with errors.Is; the HTTP layer maps each one to a status
// code exactly once, at the boundary.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrorAlreadyExists reports a uniqueness violation (username or email).
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrorConflict reports an operation on a token already in a terminal
	// state, e.g. logging out with an already-revoked refresh token.
	ErrorConflict = errors.New("conflict")

	// ErrorValidation reports malformed or out-of-bounds input, such as a
	// password exceeding the bcrypt 72-byte limit.
	ErrorValidation = errors.New("validation error")

	// Token lifecycle errors. Both read as unauthorized at the HTTP boundary;
	// they exist so codec callers can tell expiry apart from tampering in
	// logs and tests.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
