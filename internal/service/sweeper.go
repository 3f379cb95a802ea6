package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// SweepStats counts what one sweep pass did.
type SweepStats struct {
	Expired         int
	StaleSettled    int
	ResolvedSettled int
	InboxPruned     int64
	Failed          int
}

// Sweeper runs the periodic passes that move battles along without user
// action. It expires unjoined battles, settles stale votes, retries
// settlement of ruled disputes and clears old inbox rows.
type Sweeper struct {
	battles   domain.BattleStore
	matches   domain.MatchStore
	inbox     domain.NotificationStore
	lifecycle *BattleService
	scores    *ScoreService
	staleDur  time.Duration
	inboxTTL  time.Duration
	interval  time.Duration
	batch     int
	now       func() time.Time
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper. staleAfter is how long a lone vote waits for
// the other captain; inboxTTL is how long notifications are kept. A nil inbox
// skips the pruning pass.
func NewSweeper(
	battles domain.BattleStore,
	matches domain.MatchStore,
	inbox domain.NotificationStore,
	lifecycle *BattleService,
	scores *ScoreService,
	staleAfter, inboxTTL, interval time.Duration,
	batch int,
	logger *slog.Logger,
) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	if inboxTTL <= 0 {
		inboxTTL = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		battles:   battles,
		matches:   matches,
		inbox:     inbox,
		lifecycle: lifecycle,
		scores:    scores,
		staleDur:  staleAfter,
		inboxTTL:  inboxTTL,
		interval:  interval,
		batch:     batch,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With(slog.String("component", "sweeper")),
	}
}

// Run sweeps on every tick until ctx is done. Call in a goroutine.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs every pass once. Failures of single records are logged and
// skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) SweepStats {
	var st SweepStats
	now := s.now()

	open, err := s.battles.ListExpiredOpen(ctx, now, s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweeper: list expired battles failed", slog.String("error", err.Error()))
	}
	for _, b := range open {
		ok, err := s.lifecycle.ExpireBattle(ctx, b.ID)
		if err != nil {
			st.Failed++
			s.logger.WarnContext(ctx, "sweeper: expire battle failed",
				slog.String("battle_id", b.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			st.Expired++
		}
	}

	cutoff := now.Add(-s.staleDur)
	stale, err := s.matches.ListStaleVotes(ctx, cutoff, s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweeper: list stale votes failed", slog.String("error", err.Error()))
	}
	for _, m := range stale {
		ok, err := s.scores.SettleStale(ctx, m.ID, cutoff)
		if err != nil {
			st.Failed++
			s.logger.WarnContext(ctx, "sweeper: settle stale match failed",
				slog.String("match_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			st.StaleSettled++
		}
	}

	disputed, err := s.matches.ListDisputed(ctx, s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweeper: list disputed matches failed", slog.String("error", err.Error()))
	}
	for _, m := range disputed {
		ok, err := s.scores.SettleResolved(ctx, m)
		if err != nil {
			st.Failed++
			s.logger.WarnContext(ctx, "sweeper: settle resolved dispute failed",
				slog.String("match_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			st.ResolvedSettled++
		}
	}

	if s.inbox != nil {
		n, err := s.inbox.DeleteBefore(ctx, now.Add(-s.inboxTTL))
		if err != nil {
			st.Failed++
			s.logger.WarnContext(ctx, "sweeper: prune inbox failed", slog.String("error", err.Error()))
		}
		st.InboxPruned = n
	}

	if st != (SweepStats{}) {
		s.logger.InfoContext(ctx, "sweeper: pass complete",
			slog.Int("expired", st.Expired),
			slog.Int("stale_settled", st.StaleSettled),
			slog.Int("resolved_settled", st.ResolvedSettled),
			slog.Int64("inbox_pruned", st.InboxPruned),
			slog.Int("failed", st.Failed),
		)
	}
	return st
}
