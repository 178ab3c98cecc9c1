package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/config"
	"github.com/vovakirdan/shadowchat/internal/devserver"
	"github.com/vovakirdan/shadowchat/internal/store"
	"github.com/vovakirdan/shadowchat/internal/store/sqlite"
)

// App runs the local stand-in backend: SQLite store, room hub and HTTP server.
type App struct {
	server          *http.Server
	shutdownTimeout time.Duration
	hub             *devserver.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the dev backend with provided configuration.
func New(cfg config.DevServer, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DBPath).Msg("database initialized")

	if err := devserver.SeedGeneral(context.Background(), st); err != nil {
		st.Close()
		return nil, err
	}

	var hub *devserver.Hub
	metrics := devserver.NewMetrics(func() float64 { return float64(hub.Connected()) })
	hub = devserver.NewHub(st,
		devserver.WithHistoryLimit(cfg.HistoryLimit),
		devserver.WithMetrics(metrics),
		devserver.WithLogger(logger),
	)

	server, err := devserver.NewServer(cfg, hub, st, metrics, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("dev backend listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
