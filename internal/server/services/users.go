package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/common"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/dbx"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/logging"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/auth"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/config"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/models"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/oauth"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/repomanager"
)

// RegisterInput is the payload for creating a password-based account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// UserService handles account registration, credential verification, and the
// per-request identity check behind the bearer guard.
type UserService struct {
	db           *sql.DB
	repos        repomanager.RepositoryManager
	tokens       *TokenService
	exchanger    oauth.Exchanger
	codec        *auth.Codec
	logger       logging.Logger
	storeTimeout time.Duration
}

// NewUserService constructs a UserService using the repository manager and
// server config.
func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, tokens *TokenService, exchanger oauth.Exchanger, codec *auth.Codec, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:           db,
		repos:        repos,
		tokens:       tokens,
		exchanger:    exchanger,
		codec:        codec,
		logger:       logger.With("component", "users"),
		storeTimeout: cfg.StoreTimeout,
	}
}

func (s *UserService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// Register creates a password-based account and mints its first token pair.
// Username and email collisions fail with common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, *TokenPair, error) {
	if in.Username == "" || in.Email == "" {
		return nil, nil, common.ErrorValidation
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	repo := s.repos.Users(s.db)

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		FullName:     in.FullName,
		IsActive:     true,
		IsVerified:   true,
	}

	sctx, cancel := s.storeCtx(ctx)
	user, err = repo.Create(sctx, user)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, nil, common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "creating user failed", "error", err)
		return nil, nil, common.ErrorInternal
	}

	pair, err := s.tokens.IssuePair(ctx, user.Username)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies a username/password pair and mints tokens. Unknown users,
// OAuth-only accounts, wrong passwords, and deactivated accounts all fail
// with the same common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	repo := s.repos.Users(s.db)

	sctx, cancel := s.storeCtx(ctx)
	user, err := repo.GetByUsername(sctx, username)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}
	if !user.IsActive {
		return nil, common.ErrorUnauthorized
	}

	return s.tokens.IssuePair(ctx, user.Username)
}

// GetByID returns a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repos.Users(s.db).GetByID(sctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

// Authenticate resolves a bearer access token to a live user. The decoded
// claims are never trusted alone: the account is re-checked against the user
// store on every request, so deactivated accounts lose access within one
// round trip.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}
	if claims.TokenType != string(auth.TokenKindAccess) {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repos.Users(s.db)
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var user *models.User
	if claims.UserID != "" {
		user, err = repo.GetByID(sctx, claims.UserID)
	} else if claims.Subject != "" {
		user, err = repo.GetByUsername(sctx, claims.Subject)
	} else {
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// LoginWithGoogle exchanges an OAuth authorization code for a verified
// profile, then finds or creates the matching account inside one transaction.
// It reports whether a new account was created.
func (s *UserService) LoginWithGoogle(ctx context.Context, code string) (*models.User, *TokenPair, bool, error) {
	if code == "" {
		return nil, nil, false, common.ErrorValidation
	}

	profile, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn(ctx, "oauth exchange failed", "error", err)
		return nil, nil, false, common.ErrorValidation
	}
	if profile.Email == "" {
		return nil, nil, false, common.ErrorValidation
	}

	var (
		user    *models.User
		created bool
	)

	sctx, cancel := s.storeCtx(ctx)
	err = dbx.WithTx(sctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)

		existing, err := repo.GetByEmail(ctx, profile.Email)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		user = &models.User{
			ID:         uuid.NewString(),
			Username:   usernameFromEmail(profile.Email),
			Email:      profile.Email,
			FullName:   profile.Name,
			IsActive:   true,
			IsVerified: true, // provider-verified email
		}
		user, err = repo.Create(ctx, user)
		created = err == nil
		return err
	})
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			// Username collision with an unrelated account.
			return nil, nil, false, common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "oauth get-or-create failed", "error", err)
		return nil, nil, false, common.ErrorInternal
	}

	pair, err := s.tokens.IssuePair(ctx, user.Username)
	if err != nil {
		return nil, nil, false, err
	}
	return user, pair, created, nil
}

// AuthURL returns the provider's authorization URL for the consent redirect.
func (s *UserService) AuthURL() string {
	return s.exchanger.AuthURL()
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return strings.ToLower(local)
}
