// Package server initializes and runs the auth service: it opens the
// database, applies migrations, wires the services, and starts the HTTP
// server with graceful shutdown and a background purge of expired
// refresh-token rows.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/logging"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/auth"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/config"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/httpapi"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/oauth"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/repositories/repomanager"
	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/services"
)

// purgeInterval controls how often expired refresh-token rows are removed.
// Token validity never depends on the purge; it only keeps the table small.
const purgeInterval = time.Hour

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	tokens     *services.TokenService
}

func NewApp(cfg *config.Config) (*App, error) {
	logger, err := newLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("token codec error: %w", err)
	}

	exchanger := oauth.NewGoogleExchanger(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)

	tokens := services.NewTokenService(rm.Users(db), rm.RefreshTokens(db), codec, logger, cfg)
	users := services.NewUserService(db, rm, tokens, exchanger, codec, logger, cfg)

	handler := httpapi.NewHandler(users, tokens, logger)
	httpServer := httpapi.NewServer(cfg, handler, logger)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		httpServer: httpServer,
		tokens:     tokens,
	}, nil
}

// newLogger picks zap for deployed environments and slog text for local runs.
func newLogger(env string) (logging.Logger, error) {
	if env == "local" {
		h := slog.NewTextHandler(os.Stdout, nil)
		return logging.NewSlogLogger(slog.New(h)), nil
	}
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logging.NewZapLogger(zl), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// runJanitor purges expired refresh-token rows until the context is cancelled.
func (app *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.tokens.PurgeExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "purging expired refresh tokens failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "purged expired refresh tokens", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "env", app.config.Env, "addr", app.config.Address)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runJanitor(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db failed", "error", err)
	}
}
