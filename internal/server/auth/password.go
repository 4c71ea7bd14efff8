// Package auth implements the cryptographic primitives of the service:
// bcrypt password hashing with the 72-byte input bound, the HS256 token
// codec, and SHA-256 hashing of refresh tokens for storage.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/common"
)

// MaxPasswordBytes is bcrypt's input limit. Longer passwords are rejected,
// never silently truncated.
const MaxPasswordBytes = 72

// HashPassword hashes a password with bcrypt at the default cost.
// Empty passwords and passwords longer than MaxPasswordBytes (in UTF-8
// bytes, not runes) fail with common.ErrorValidation.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password must not be empty", common.ErrorValidation)
	}
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", common.ErrorValidation, MaxPasswordBytes)
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
// The comparison is delegated to bcrypt, which is constant-time over the
// derived keys. An empty stored hash (OAuth-only account) never matches.
func CheckPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashToken returns the hex SHA-256 digest of a raw token. Refresh tokens are
// persisted only in this form, so a leaked refresh_tokens table cannot be
// replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
