// Package app initializes and orchestrates the main components of the
// scheduling service: the HTTP server, the task worker pool, and the sweeper.
package app

import (
	"context"
	"log/slog"

	"github.com/hireflow/interview-core/internal/broadcast"
	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/jobs"
	"github.com/hireflow/interview-core/internal/lifecycle"
	"github.com/hireflow/interview-core/internal/scheduler"
	"github.com/hireflow/interview-core/internal/server"
	"github.com/hireflow/interview-core/internal/storage"
)

// App holds the main application components. Store, Machine, Broadcaster,
// and Sweeper are exported for the CLI, which drives them directly instead
// of going through the HTTP API.
type App struct {
	Store       storage.Store
	Machine     *lifecycle.Machine
	Broadcaster *broadcast.Broadcaster
	Sweeper     *scheduler.Sweeper

	cfg    *config.Config
	server *server.Server
	pool   *jobs.Pool
	logger *slog.Logger
}

// NewApp assembles the application from its wired components.
func NewApp(cfg *config.Config, store storage.Store, machine *lifecycle.Machine, broadcaster *broadcast.Broadcaster, sweeper *scheduler.Sweeper, srv *server.Server, pool *jobs.Pool, logger *slog.Logger) *App {
	return &App{
		Store:       store,
		Machine:     machine,
		Broadcaster: broadcaster,
		Sweeper:     sweeper,
		cfg:         cfg,
		server:      srv,
		pool:        pool,
		logger:      logger,
	}
}

// Start launches the sweeper and the worker pool, then runs the HTTP server
// until shutdown.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting scheduling service",
		"server_port", a.cfg.Server.Port,
		"max_workers", a.cfg.Worker.MaxWorkers,
		"sweep_interval", a.cfg.Scheduler.SweepInterval,
	)

	a.Sweeper.Start(ctx)
	a.pool.Start(ctx)

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts the application down cleanly. The HTTP server stops first so no
// new work arrives while the pool drains.
func (a *App) Stop() error {
	a.logger.Info("shutting down scheduling service")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.Sweeper.Stop()
	a.pool.Stop()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("scheduling service stopped")
	return nil
}
