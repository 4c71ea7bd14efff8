package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/services"
)

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*models.User{}}
}

func (m *memUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *user
	m.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memUserRepo) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

type memRefreshRepo struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshToken
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{rows: map[string]*models.RefreshToken{}}
}

func (m *memRefreshRepo) Store(ctx context.Context, tokenHash string, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[tokenHash] = &models.RefreshToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *memRefreshRepo) GetValid(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[tokenHash]
	if !ok || row.IsRevoked || !row.ExpiresAt.After(time.Now()) {
		return nil, common.ErrorNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memRefreshRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[tokenHash]
	if !ok || row.IsRevoked {
		return false, nil
	}
	row.IsRevoked = true
	return true, nil
}

func (m *memRefreshRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.rows {
		if row.UserID == userID && !row.IsRevoked {
			row.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (m *memRefreshRepo) PurgeExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, row := range m.rows {
		if !row.ExpiresAt.After(time.Now()) {
			delete(m.rows, hash)
			n++
		}
	}
	return n, nil
}

type memRepoManager struct {
	users   users.Repository
	refresh refreshtokens.Repository
}

func (m *memRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) users.Repository                  { return m.users }
func (m *memRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository  { return m.refresh }

type stubExchanger struct {
	profile *oauth.Profile
	err     error
}

func (s *stubExchanger) Exchange(ctx context.Context, code string) (*oauth.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func (s *stubExchanger) AuthURL() string { return "https://accounts.example.com/auth" }

// apiEnv boots the real services over in-memory stores and exposes the
// assembled router for httptest requests.
type apiEnv struct {
	router   http.Handler
	codec    *auth.Codec
	mock     sqlmock.Sqlmock
	exchange *stubExchanger
	users    *memUserRepo
}

func newAPIEnv(t *testing.T) *apiEnv {
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

	userRepo := newMemUserRepo()
	refreshRepo := newMemRefreshRepo()
	rm := &memRepoManager{users: userRepo, refresh: refreshRepo}
	exchange := &stubExchanger{profile: &oauth.Profile{Email: "gina@example.com", Name: "Gina"}}

	tokens := services.NewTokenService(userRepo, refreshRepo, codec, logger, cfg)
	usersSvc := services.NewUserService(db, rm, tokens, exchange, codec, logger, cfg)

	handler := NewHandler(usersSvc, tokens, logger)

	return &apiEnv{
		router:   handler.Router(),
		codec:    codec,
		mock:     mock,
		exchange: exchange,
		users:    userRepo,
	}
}

// do sends a JSON request through the router and returns the recorder.
func (e *apiEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON body into out.
func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// register creates an account through the API and returns its token pair.
func (e *apiEnv) register(t *testing.T, username, email, password string) *services.TokenPair {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}

	var pair services.TokenPair
	decode(t, rec, &pair)
	return &pair
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
