// Package server wires configuration, storage, code delivery and the HTTP
// API together and runs them until the process is signalled to stop.
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

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/dbx"
	"github.com/dmitrijs2005/voiceauth/internal/logging"
	"github.com/dmitrijs2005/voiceauth/internal/server/auth"
	"github.com/dmitrijs2005/voiceauth/internal/server/config"
	"github.com/dmitrijs2005/voiceauth/internal/server/email"
	"github.com/dmitrijs2005/voiceauth/internal/server/httpapi"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/inmemory"
	"github.com/dmitrijs2005/voiceauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/voiceauth/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.HTTPServer
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// storage opens PostgreSQL and applies migrations, or falls back to the
// in-memory store when no DSN is configured.
func storage(ctx context.Context, c *config.Config, l logging.Logger) (*sql.DB, dbx.Transactor, repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		l.Warn(ctx, "no database configured, using in-memory store")
		store := inmemory.NewStore()
		return nil, inmemory.NewTransactor(store), inmemory.NewManager(store), nil
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migration error: %w", err)
	}

	return db, dbx.NewSQLTransactor(db), repos, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(os.Stdout, lvl)

	db, tx, repos, err := storage(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	clock := clockx.Real()

	tokens, err := auth.NewTokenIssuer([]byte(c.SecretKey), c.TokenTTL, clock)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	sender := email.NewSender(c.EmailWebhookURL, c.EmailWebhookTimeout, logger)
	svc := services.NewAuthService(tx, repos, c, tokens, sender, clock, logger)

	srv, err := httpapi.NewHTTPServer(c.HTTPAddr, logger, svc, clock, c.TrustedProxies)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
