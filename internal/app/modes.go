package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/server"
	"github.com/Engineer-Box/gmdemo/internal/server/handler"
	"github.com/Engineer-Box/gmdemo/internal/server/ws"
	"github.com/Engineer-Box/gmdemo/internal/service"
)

// ServerMode serves the HTTP API and the websocket hub.
func (a *App) ServerMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "app: starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g)
	return g.Wait()
}

// SweepMode runs the scheduled sweeps only.
func (a *App) SweepMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "app: starting sweep mode")
	return a.services.Sweeper.Run(ctx)
}

// FullMode serves the API and runs the sweeps in one process.
func (a *App) FullMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "app: starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.services.Sweeper.Run(ctx)
	})
	a.startHTTPServer(ctx, g)
	return g.Wait()
}

// startHTTPServer adds the hub, the HTTP server and its graceful shutdown to
// g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group) {
	deps, svc := a.deps, a.services

	hub := ws.NewHub(deps.EventBus, deps.EventBus, a.cfg.Server.EventReplay, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	var receipts handler.ReceiptSource
	if deps.Archive != nil {
		receipts = deps.Archive
	}

	srv := server.NewServer(
		server.Config{
			Port:         a.cfg.Server.Port,
			CORSOrigins:  a.cfg.Server.CORSOrigins,
			JWTSecret:    []byte(a.cfg.Auth.JWTSecret),
			AdminKeyHash: a.cfg.Auth.AdminKeyHash,
			RateLimit:    a.cfg.Server.RateLimit,
			RateWindow:   a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:        handler.NewHealthHandler(deps.Health, a.logger),
			Battles:       handler.NewBattleHandler(svc.Battles, svc.Scores, receipts, a.logger),
			Rankings:      handler.NewRankingHandler(deps.Rankings, a.logger),
			Notifications: handler.NewNotificationHandler(deps.Notifications, a.logger),
			Admin:         handler.NewAdminHandler(svc.Scores, deps.Fees, a.logger),
		},
		server.Deps{Profiles: deps.Roster, Limiter: deps.RateLimiter},
		hub,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

// Migrate applies the embedded schema migrations and returns.
func (a *App) Migrate(ctx context.Context) error {
	a.cfg.Postgres.RunMigrations = true
	return a.wire(ctx)
}

// SweepOnce runs a single sweep pass.
func (a *App) SweepOnce(ctx context.Context) (service.SweepStats, error) {
	if err := a.wire(ctx); err != nil {
		return service.SweepStats{}, err
	}
	return a.services.Sweeper.SweepOnce(ctx), nil
}

// RebuildStats summarises a ranking rebuild.
type RebuildStats struct {
	Projected  int
	ExportPath string
	Exported   int
}

// RebuildRankings clears every leaderboard and projects each settled match
// again from its stored outcome. With export set, the receipts are also
// written to the archive as one JSONL object.
func (a *App) RebuildRankings(ctx context.Context, export bool) (RebuildStats, error) {
	var stats RebuildStats
	if err := a.wire(ctx); err != nil {
		return stats, err
	}
	if export && a.deps.Archive == nil {
		return stats, fmt.Errorf("app: rebuild: export needs s3 enabled")
	}

	if err := a.deps.Rankings.Reset(ctx); err != nil {
		return stats, fmt.Errorf("app: rebuild: %w", err)
	}
	next := a.settledReceipts(ctx)
	for {
		receipt, ok, err := next()
		if err != nil {
			return stats, fmt.Errorf("app: rebuild: %w", err)
		}
		if !ok {
			break
		}
		if err := a.deps.Rankings.Project(ctx, service.ProjectionFor(receipt)); err != nil {
			return stats, fmt.Errorf("app: rebuild: project %s: %w", receipt.MatchID, err)
		}
		stats.Projected++
	}
	a.logger.InfoContext(ctx, "app: rankings rebuilt", slog.Int("matches", stats.Projected))

	if export {
		path, n, err := a.deps.Archive.Export(ctx, time.Now(), a.settledReceipts(ctx))
		if err != nil {
			return stats, fmt.Errorf("app: rebuild: %w", err)
		}
		stats.ExportPath, stats.Exported = path, n
		a.logger.InfoContext(ctx, "app: receipts exported",
			slog.String("path", path),
			slog.Int("receipts", n),
		)
	}
	return stats, nil
}

// settledReceipts pages through settled matches and yields the receipt
// rebuilt from each one.
func (a *App) settledReceipts(ctx context.Context) func() (domain.SettlementReceipt, bool, error) {
	batch := max(a.cfg.Battle.SweepBatch, 1)
	var (
		page   []domain.Match
		offset int
		done   bool
	)
	return func() (domain.SettlementReceipt, bool, error) {
		if len(page) == 0 && !done {
			matches, err := a.deps.Stores.Matches.ListSettled(ctx, domain.ListOpts{Limit: batch, Offset: offset})
			if err != nil {
				return domain.SettlementReceipt{}, false, err
			}
			offset += len(matches)
			done = len(matches) < batch
			page = matches
		}
		if len(page) == 0 {
			return domain.SettlementReceipt{}, false, nil
		}
		m := page[0]
		page = page[1:]
		receipt, err := service.ReceiptFor(ctx, a.deps.Stores, m)
		if err != nil {
			return domain.SettlementReceipt{}, false, fmt.Errorf("receipt for %s: %w", m.ID, err)
		}
		return receipt, true, nil
	}
}
