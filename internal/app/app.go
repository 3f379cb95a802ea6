// Package app provides the top-level application lifecycle for the battle
// service. It wires stores, caches, the settlement archive, services and
// notifications, and starts the goroutines the configured mode needs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Engineer-Box/gmdemo/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()

	deps     *Dependencies
	services *Services
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// wire connects every dependency once and builds the services.
func (a *App) wire(ctx context.Context) error {
	if a.deps != nil {
		return nil
	}
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.deps = deps
	a.services = NewServices(a.cfg, deps, a.logger)
	return nil
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode, starts the corresponding goroutines, and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "app: starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.Log.Level),
	)

	if err := a.wire(ctx); err != nil {
		return err
	}

	switch strings.ToLower(a.cfg.Mode) {
	case "server":
		return a.ServerMode(ctx)
	case "sweep":
		return a.SweepMode(ctx)
	case "full":
		return a.FullMode(ctx)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("app: shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.deps = nil
	a.services = nil
}
