// Package refreshtokens declares the repository contract for the
// refresh_tokens table, the only state the rotation protocol mutates.
package refreshtokens

import (
	"context"
	"time"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/models"
)

// Repository defines operations over stored refresh-token hashes.
type Repository interface {
	// Store upserts a token hash for userID. On a hash collision the row's
	// owner and expiry are overwritten and is_revoked resets to false
	// (idempotent reissue; a documented but rare path).
	Store(ctx context.Context, tokenHash string, userID string, expiresAt time.Time) error

	// GetValid returns the row for tokenHash only if it is not revoked and
	// not past expiry; otherwise common.ErrorNotFound. Unknown, expired, and
	// revoked hashes are indistinguishable to callers.
	GetValid(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Revoke atomically flips is_revoked to true only if it is currently
	// false and reports whether the flip happened. The returned bool — not
	// the call itself — is the single-use gate of the rotation protocol.
	Revoke(ctx context.Context, tokenHash string) (bool, error)

	// RevokeAllForUser revokes every live token of a user and returns the
	// number of rows flipped.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// PurgeExpired deletes rows past expiry and returns the number removed.
	// Expiry alone already invalidates a row; this is housekeeping.
	PurgeExpired(ctx context.Context) (int64, error)
}
