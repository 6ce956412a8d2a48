// Package server wires together configuration, storage, and the socket
// transport into a runnable KStor server process.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/kstor/internal/logging"
	"github.com/dmitrijs2005/kstor/internal/server/adminctl"
	"github.com/dmitrijs2005/kstor/internal/server/authctl"
	"github.com/dmitrijs2005/kstor/internal/server/config"
	"github.com/dmitrijs2005/kstor/internal/server/dispatch"
	"github.com/dmitrijs2005/kstor/internal/server/repocache"
	"github.com/dmitrijs2005/kstor/internal/server/repomanager"
	"github.com/dmitrijs2005/kstor/internal/server/secretctl"
	"github.com/dmitrijs2005/kstor/internal/server/sessionstore"
	"github.com/dmitrijs2005/kstor/internal/server/socketserver"
)

// App owns every long-lived collaborator for one running server process.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	socket *socketserver.Server
}

// NewApp takes an already loaded configuration, opens the database, runs
// pending migrations, and assembles the controller and transport stack.
func NewApp(cfg *config.Config) (*App, error) {
	level := parseLevel(cfg.LogLevel)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := logging.NewSlogLogger(slog.New(handler))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()

	ctx := context.Background()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	cache := repocache.New()
	sessions := sessionstore.New(cfg.SessionIdleTimeout, cfg.SessionLifeTimeout)

	auth := authctl.New(repos, cache, sessions)
	secret := secretctl.New(repos, cache)
	admin := adminctl.New(repos, cache)

	d := dispatch.New(db, auth, secret, admin, logger)

	socket := socketserver.New(cfg.SocketPath, cfg.NWorkers, d.Handle, logger)

	return &App{config: cfg, logger: logger, db: db, socket: socket}, nil
}

func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Run starts the socket server and blocks until a termination signal
// arrives or the socket listener fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "starting kstor server", "socket", app.config.SocketPath, "workers", app.config.NWorkers)

	app.initSignalHandler(cancel)

	err := app.socket.Run(ctx)

	if closeErr := app.db.Close(); closeErr != nil {
		app.logger.Warn(ctx, "error closing database", "error", closeErr.Error())
	}

	return err
}

func (app *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}
