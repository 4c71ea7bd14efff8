package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/common"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/dbx"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/logging"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/auth"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/config"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/models"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/oauth"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/refreshtokens"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/users"
)

// fakeUserRepo is an in-memory users.Repository.
type fakeUserRepo struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	fail  error // when set, every call fails with it
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*models.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	for _, u := range f.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *user
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Username == username })
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	for _, u := range f.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

// fakeRefreshRepo is an in-memory refreshtokens.Repository whose Revoke has
// the same winner-takes-all semantics as the conditional UPDATE.
type fakeRefreshRepo struct {
	mu       sync.Mutex
	rows     map[string]*models.RefreshToken
	storeErr error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{rows: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Store(ctx context.Context, tokenHash string, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.rows[tokenHash] = &models.RefreshToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeRefreshRepo) GetValid(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[tokenHash]
	if !ok || row.IsRevoked || !row.ExpiresAt.After(time.Now()) {
		return nil, common.ErrorNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[tokenHash]
	if !ok || row.IsRevoked {
		return false, nil
	}
	row.IsRevoked = true
	return true, nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, row := range f.rows {
		if row.UserID == userID && !row.IsRevoked {
			row.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) PurgeExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for hash, row := range f.rows {
		if !row.ExpiresAt.After(time.Now()) {
			delete(f.rows, hash)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.rows {
		if !row.IsRevoked && row.ExpiresAt.After(time.Now()) {
			n++
		}
	}
	return n
}

// fakeRepoManager hands out the fakes regardless of the DBTX it is given.
type fakeRepoManager struct {
	users   users.Repository
	refresh refreshtokens.Repository
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(db dbx.DBTX) users.Repository                  { return f.users }
func (f *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository  { return f.refresh }

// fakeExchanger returns a canned profile or error.
type fakeExchanger struct {
	profile *oauth.Profile
	err     error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*oauth.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func (f *fakeExchanger) AuthURL() string { return "https://accounts.example.com/auth" }

// testEnv wires the services against in-memory fakes and a sqlmock DB that
// only has to satisfy transaction begin/commit calls.
type testEnv struct {
	cfg      *config.Config
	codec    *auth.Codec
	userRepo *fakeUserRepo
	refresh  *fakeRefreshRepo
	tokens   *TokenService
	usersSvc *UserService
	exchange *fakeExchanger
	mock     sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		JWTAlgorithm:    "HS256",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		StoreTimeout:    2 * time.Second,
	}

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	userRepo := newFakeUserRepo()
	refreshRepo := newFakeRefreshRepo()
	rm := &fakeRepoManager{users: userRepo, refresh: refreshRepo}
	exchange := &fakeExchanger{profile: &oauth.Profile{Email: "gina@example.com", Name: "Gina"}}

	tokens := NewTokenService(userRepo, refreshRepo, codec, logger, cfg)
	usersSvc := NewUserService(db, rm, tokens, exchange, codec, logger, cfg)

	return &testEnv{
		cfg:      cfg,
		codec:    codec,
		userRepo: userRepo,
		refresh:  refreshRepo,
		tokens:   tokens,
		usersSvc: usersSvc,
		exchange: exchange,
		mock:     mock,
	}
}

// seedUser inserts a user with the given password directly into the fake repo.
func (e *testEnv) seedUser(t *testing.T, username, email, password string) *models.User {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword error: %v", err)
		}
	}
	u := &models.User{
		ID:           "id-" + username,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
	}
	created, err := e.userRepo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return created
}
