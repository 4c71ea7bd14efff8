// Package services contains the server-side business logic. This file
// implements TokenService: minting access/refresh pairs, the single-use
// refresh rotation protocol, and revocation.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/common"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/logging"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/auth"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/config"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/refreshtokens"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/users"
)

// TokenPair bundles a freshly minted access/refresh pair. ExpiresIn is the
// access token's lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenService mints, rotates, and revokes token pairs. It holds only
// immutable configuration and is safe for concurrent use.
type TokenService struct {
	users         users.Repository
	refreshTokens refreshtokens.Repository
	codec         *auth.Codec
	logger        logging.Logger
	accessTTL     time.Duration
	refreshTTL    time.Duration
	storeTimeout  time.Duration
}

// NewTokenService constructs a TokenService from repositories and config.
func NewTokenService(usersRepo users.Repository, refreshRepo refreshtokens.Repository, codec *auth.Codec, logger logging.Logger, cfg *config.Config) *TokenService {
	return &TokenService{
		users:         usersRepo,
		refreshTokens: refreshRepo,
		codec:         codec,
		logger:        logger.With("component", "tokens"),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		storeTimeout:  cfg.StoreTimeout,
	}
}

// storeCtx bounds a store call so an outage surfaces as an error, not a hang.
func (s *TokenService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// IssuePair mints an access/refresh pair for the named user and persists the
// refresh token's hash. If the store write fails the whole operation fails
// and no tokens are returned: a token without a revocable record must never
// reach a caller.
func (s *TokenService) IssuePair(ctx context.Context, username string) (*TokenPair, error) {
	sctx, cancel := s.storeCtx(ctx)
	user, err := s.users.GetByUsername(sctx, username)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	access, err := s.codec.Encode(user.Username, user.ID, auth.TokenKindAccess, s.accessTTL)
	if err != nil {
		s.logger.Error(ctx, "signing access token failed", "error", err)
		return nil, common.ErrorInternal
	}

	refresh, err := s.codec.Encode(user.Username, user.ID, auth.TokenKindRefresh, s.refreshTTL)
	if err != nil {
		s.logger.Error(ctx, "signing refresh token failed", "error", err)
		return nil, common.ErrorInternal
	}

	tokenHash := auth.HashToken(refresh)
	expiresAt := time.Now().Add(s.refreshTTL)

	sctx, cancel = s.storeCtx(ctx)
	err = s.refreshTokens.Store(sctx, tokenHash, user.ID, expiresAt)
	cancel()
	if err != nil {
		s.logger.Error(ctx, "storing refresh token failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// Refresh runs the rotation protocol. The step order is load-bearing:
// the stored record is revoked before the presented token is decoded, so a
// token that reached step 3 is dead even if it later turns out to be
// malformed. The atomic revoke's result — not its invocation — is what makes
// a refresh token single-use under concurrent replay.
func (s *TokenService) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if rawToken == "" {
		return nil, common.ErrorValidation
	}

	tokenHash := auth.HashToken(rawToken)

	sctx, cancel := s.storeCtx(ctx)
	record, err := s.refreshTokens.GetValid(sctx, tokenHash)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Unknown, expired, and already-consumed tokens are uniformly
			// unauthorized; callers cannot probe which one it was.
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "refresh token lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	sctx, cancel = s.storeCtx(ctx)
	revoked, err := s.refreshTokens.Revoke(sctx, tokenHash)
	cancel()
	if err != nil {
		s.logger.Error(ctx, "revoking refresh token failed", "error", err)
		return nil, common.ErrorInternal
	}
	if !revoked {
		// Lost the race to a concurrent refresh of the same token.
		s.logger.Warn(ctx, "refresh replay detected", "user_id", record.UserID)
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.codec.Decode(rawToken)
	if err != nil || claims.TokenType != string(auth.TokenKindRefresh) ||
		claims.Subject == "" || claims.UserID == "" {
		// The record is already burned at this point; that is intentional.
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.IssuePair(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// The account vanished between issuance and rotation.
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return pair, nil
}

// Logout revokes the presented refresh token. An already-revoked or unknown
// token is a conflict, not a silent success.
func (s *TokenService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return common.ErrorValidation
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	revoked, err := s.refreshTokens.Revoke(sctx, auth.HashToken(rawToken))
	if err != nil {
		s.logger.Error(ctx, "logout revoke failed", "error", err)
		return common.ErrorInternal
	}
	if !revoked {
		return common.ErrorConflict
	}
	return nil
}

// LogoutAll revokes every live refresh token of a user and returns how many
// were flipped.
func (s *TokenService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.refreshTokens.RevokeAllForUser(sctx, userID)
	if err != nil {
		s.logger.Error(ctx, "logout-all failed", "user_id", userID, "error", err)
		return 0, common.ErrorInternal
	}
	return n, nil
}

// PurgeExpired removes refresh-token rows past expiry. Called periodically by
// the app's janitor; validity never depends on it.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.refreshTokens.PurgeExpired(sctx)
	if err != nil {
		return 0, common.ErrorInternal
	}
	return n, nil
}
