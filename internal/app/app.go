// Package app provides top-level lifecycle management for the market daemon.
// It wires the accounting core, stores, caches, blob archive, and
// notifications together, restores persisted state, and runs the HTTP server,
// WebSocket hub, and resolution scheduler until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openpredict/marketd/internal/config"
	"github.com/openpredict/marketd/internal/scheduler"
	"github.com/openpredict/marketd/internal/server"
	"github.com/openpredict/marketd/internal/server/handler"
	"github.com/openpredict/marketd/internal/server/ws"
	"github.com/openpredict/marketd/internal/service"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, restores ledger
// state from the database, starts the server goroutines, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting marketd",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := deps.Service.RestoreState(ctx); err != nil {
		return fmt.Errorf("app: restore state: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub bridging committed events to clients.
	hub := ws.NewHub(deps.SignalBus, service.EventChannel, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	// Background resolution sweep.
	if a.cfg.Resolver.Enabled {
		resolver, err := scheduler.New(deps.Service, deps.AdminKey, a.cfg.Resolver.Cron, a.logger)
		if err != nil {
			return fmt.Errorf("app: scheduler: %w", err)
		}
		resolver.Start()
		g.Go(func() error {
			<-ctx.Done()
			resolver.Stop()
			return nil
		})
	}

	// HTTP API.
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimiter: deps.RateLimiter,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Markets:  handler.NewMarketHandler(deps.Service, a.logger),
		Treasury: handler.NewTreasuryHandler(deps.Service, a.logger),
		Accounts: handler.NewAccountHandler(deps.Service, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down marketd")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
