package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/saga"
)

// ReportResult tells the caller what a vote led to.
type ReportResult struct {
	Match   domain.Match
	Outcome domain.VoteOutcome
	Dispute *domain.Dispute
	Receipt *domain.SettlementReceipt
}

// ScoreService records captains' votes and hands disagreements to disputes
// and agreements to settlement.
type ScoreService struct {
	stores     Stores
	settlement *SettlementService
	lease      *BattleLease
	fx         effects
	logger     *slog.Logger
}

// NewScoreService creates a ScoreService.
func NewScoreService(
	stores Stores,
	settlement *SettlementService,
	lease *BattleLease,
	notifier domain.Notifier,
	bus domain.EventBus,
	logger *slog.Logger,
) *ScoreService {
	logger = logger.With(slog.String("component", "score_service"))
	return &ScoreService{
		stores:     stores,
		settlement: settlement,
		lease:      lease,
		fx:         newEffects(notifier, bus, logger),
		logger:     logger,
	}
}

// ReportScore records side's claimed winner. The second vote either settles
// the battle or opens a dispute. A failed settlement leaves the agreed vote
// in place for the sweeper to retry.
func (s *ScoreService) ReportScore(ctx context.Context, caller domain.Profile, battleID string, side, claimedWinner domain.Side) (ReportResult, error) {
	if !side.Valid() || !claimedWinner.Valid() {
		return ReportResult{}, fmt.Errorf("%w: vote %q for %q", domain.ErrInvalidInput, side, claimedWinner)
	}

	var res ReportResult
	err := s.lease.With(ctx, battleID, func(ctx context.Context) error {
		battle, err := s.stores.Battles.GetByID(ctx, battleID)
		if err != nil {
			return fmt.Errorf("get battle: %w", err)
		}
		match, err := s.stores.Matches.GetByBattle(ctx, battleID)
		if err != nil {
			return fmt.Errorf("get match: %w", err)
		}
		captains, err := sideCaptains(ctx, s.stores.Selections, match)
		if err != nil {
			return err
		}
		if captains[side] == "" || captains[side] != caller.ID {
			return fmt.Errorf("%w: caller is not the %s captain", domain.ErrUnauthorized, side)
		}

		now := s.fx.now()
		switch {
		case match.Result() != domain.SideNone:
			return fmt.Errorf("%w: match already has a result", domain.ErrInvalidInput)
		case match.Vote(side) != domain.SideNone:
			return fmt.Errorf("%w: %s already reported", domain.ErrInvalidInput, side)
		case battle.Cancelled():
			return fmt.Errorf("%w: battle was cancelled", domain.ErrBattleUnavailable)
		case !battle.Started(now):
			return fmt.Errorf("%w: battle has not started", domain.ErrBattleUnavailable)
		}

		prev := match
		outcome, err := match.RecordVote(side, claimedWinner, now)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		match.UpdatedAt = now

		// A disagreeing vote only stands once its dispute exists. An agreed
		// vote stays even if settlement fails, for the sweeper to retry.
		err = saga.Run(ctx, "report score", s.logger, func(l *saga.Log) error {
			err := l.Do(ctx, "record vote",
				func(ctx context.Context) error { return s.stores.Matches.Update(ctx, match) },
				func(ctx context.Context) error { return s.stores.Matches.Update(ctx, prev) },
			)
			if err != nil || outcome != domain.VoteDisagreed {
				return err
			}
			d, err := s.openDisputeLocked(ctx, captains, match)
			if err != nil {
				return fmt.Errorf("open dispute: %w", err)
			}
			res.Dispute = &d
			return nil
		})
		if err != nil {
			return err
		}
		res.Match, res.Outcome = match, outcome
		if res.Dispute != nil {
			res.Match.Status.DisputeID = res.Dispute.ID
		}

		s.logger.InfoContext(ctx, "score_service: vote recorded",
			slog.String("battle_id", battleID),
			slog.String("side", string(side)),
			slog.String("winner", string(claimedWinner)),
		)
		s.fx.publish(ctx, "match.vote", battleID, match.ID, side)

		if outcome == domain.VoteAgreed {
			receipt, err := s.settlement.settleLocked(ctx, battle, match, claimedWinner)
			if err != nil {
				return fmt.Errorf("settle agreed vote: %w", err)
			}
			res.Receipt = &receipt
		}
		return nil
	})
	if err != nil {
		return ReportResult{}, fmt.Errorf("score_service: report score %s: %w", battleID, err)
	}
	return res, nil
}

// OpenDispute lets either captain escalate a match before it has a result.
// A match that already has a dispute returns it unchanged.
func (s *ScoreService) OpenDispute(ctx context.Context, caller domain.Profile, matchID string) (domain.Dispute, error) {
	match, err := s.stores.Matches.GetByID(ctx, matchID)
	if err != nil {
		return domain.Dispute{}, fmt.Errorf("score_service: get match %s: %w", matchID, err)
	}

	var d domain.Dispute
	err = s.lease.With(ctx, match.BattleID, func(ctx context.Context) error {
		match, err := s.stores.Matches.GetByID(ctx, matchID)
		if err != nil {
			return fmt.Errorf("get match: %w", err)
		}
		captains, err := sideCaptains(ctx, s.stores.Selections, match)
		if err != nil {
			return err
		}
		if callerSide(captains, caller.ID) == domain.SideNone {
			return fmt.Errorf("%w: caller is not a captain of match %s", domain.ErrUnauthorized, matchID)
		}
		d, err = s.openDisputeLocked(ctx, captains, match)
		return err
	})
	if err != nil {
		return domain.Dispute{}, fmt.Errorf("score_service: open dispute %s: %w", matchID, err)
	}
	return d, nil
}

// openDisputeLocked creates and links a dispute unless one exists. The caller
// holds the battle lease.
func (s *ScoreService) openDisputeLocked(ctx context.Context, captains map[domain.Side]string, match domain.Match) (domain.Dispute, error) {
	if match.Status.DisputeID != "" {
		return s.stores.Disputes.GetByID(ctx, match.Status.DisputeID)
	}
	if match.Result() != domain.SideNone {
		return domain.Dispute{}, fmt.Errorf("%w: match %s already has a result", domain.ErrInvalidInput, match.ID)
	}

	// A dispute row may exist without the match link if an earlier attempt
	// stopped between the two writes.
	d, err := s.stores.Disputes.GetByMatch(ctx, match.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		d = domain.Dispute{ID: s.fx.newID(), MatchID: match.ID, CreatedAt: s.fx.now()}
		if err := s.stores.Disputes.Create(ctx, d); err != nil {
			return domain.Dispute{}, fmt.Errorf("create dispute: %w", err)
		}
		d, err = s.stores.Disputes.GetByID(ctx, d.ID)
		if err != nil {
			return domain.Dispute{}, fmt.Errorf("reload dispute: %w", err)
		}
		if d.Resolved() {
			if err := s.stores.Matches.Delete(ctx, match.ID); err != nil {
				s.logger.ErrorContext(ctx, "score_service: delete match with pre-resolved dispute failed",
					slog.String("match_id", match.ID),
					slog.String("error", err.Error()),
				)
			}
			return domain.Dispute{}, fmt.Errorf("%w: dispute %s was created resolved", domain.ErrIllegalTransition, d.ID)
		}
	case err != nil:
		return domain.Dispute{}, fmt.Errorf("find dispute: %w", err)
	}

	if err := match.MarkDisputed(d.ID); err != nil {
		return domain.Dispute{}, err
	}
	match.UpdatedAt = s.fx.now()
	if err := s.stores.Matches.Update(ctx, match); err != nil {
		return domain.Dispute{}, fmt.Errorf("link dispute: %w", err)
	}

	s.logger.InfoContext(ctx, "score_service: dispute opened",
		slog.String("match_id", match.ID),
		slog.String("dispute_id", d.ID),
	)
	for _, side := range []domain.Side{domain.SideHome, domain.SideAway} {
		if captains[side] == "" {
			continue
		}
		s.fx.notify(ctx, domain.Notification{
			ProfileID: captains[side],
			Kind:      domain.NotifyDisputeOpened,
			Title:     "Match disputed",
			Message:   fmt.Sprintf("Match %s has been disputed", match.ID),
			BattleID:  match.BattleID,
		})
	}
	s.fx.publish(ctx, "match.disputed", match.BattleID, match.ID, domain.SideNone)
	return d, nil
}

// ResolveDispute records the arbiter's ruling once and settles the battle
// with it. If settlement fails the ruling stands and the sweeper retries.
func (s *ScoreService) ResolveDispute(ctx context.Context, disputeID string, winner domain.Side) (domain.SettlementReceipt, error) {
	if !winner.Valid() {
		return domain.SettlementReceipt{}, fmt.Errorf("score_service: resolve dispute: %w: winner %q", domain.ErrInvalidInput, winner)
	}
	d, err := s.stores.Disputes.GetByID(ctx, disputeID)
	if err != nil {
		return domain.SettlementReceipt{}, fmt.Errorf("score_service: get dispute %s: %w", disputeID, err)
	}
	if err := d.Resolve(winner, s.fx.now()); err != nil {
		return domain.SettlementReceipt{}, fmt.Errorf("score_service: resolve dispute %s: %w", disputeID, err)
	}
	if err := s.stores.Disputes.Resolve(ctx, d.ID, winner, *d.ResolvedAt); err != nil {
		return domain.SettlementReceipt{}, fmt.Errorf("score_service: resolve dispute %s: %w", disputeID, err)
	}
	s.logger.InfoContext(ctx, "score_service: dispute resolved",
		slog.String("dispute_id", d.ID),
		slog.String("winner", string(winner)),
	)

	match, err := s.stores.Matches.GetByID(ctx, d.MatchID)
	if err != nil {
		return domain.SettlementReceipt{}, fmt.Errorf("score_service: get match %s: %w", d.MatchID, err)
	}
	return s.settlement.Settle(ctx, match.BattleID, winner)
}

// staleVoteWinner returns the winner a stale match should settle with.
func staleVoteWinner(m domain.Match) (domain.Side, bool) {
	if m.Status.Kind == domain.MatchAgreed {
		return m.Status.HomeVote, true
	}
	return m.LoneVote()
}

// SettleStale settles a match whose votes have gone unanswered past the
// cutoff, using the lone or agreed vote. It reports whether it settled.
func (s *ScoreService) SettleStale(ctx context.Context, matchID string, cutoff time.Time) (bool, error) {
	match, err := s.stores.Matches.GetByID(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("score_service: get match %s: %w", matchID, err)
	}
	settled := false
	err = s.lease.With(ctx, match.BattleID, func(ctx context.Context) error {
		battle, err := s.stores.Battles.GetByID(ctx, match.BattleID)
		if err != nil {
			return fmt.Errorf("get battle: %w", err)
		}
		match, err := s.stores.Matches.GetByID(ctx, matchID)
		if err != nil {
			return fmt.Errorf("get match: %w", err)
		}
		if battle.Cancelled() || match.Status.DisputeID != "" || match.LastVoteAt == nil || !match.LastVoteAt.Before(cutoff) {
			return nil
		}
		winner, ok := staleVoteWinner(match)
		if !ok {
			return nil
		}
		if _, err := s.settlement.settleLocked(ctx, battle, match, winner); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("score_service: settle stale match %s: %w", matchID, err)
	}
	return settled, nil
}

// SettleResolved settles a disputed match whose dispute already has a
// ruling. It reports whether it settled.
func (s *ScoreService) SettleResolved(ctx context.Context, match domain.Match) (bool, error) {
	if match.Status.DisputeID == "" || match.Result() != domain.SideNone {
		return false, nil
	}
	battle, err := s.stores.Battles.GetByID(ctx, match.BattleID)
	if err != nil {
		return false, fmt.Errorf("score_service: get battle %s: %w", match.BattleID, err)
	}
	if battle.Cancelled() {
		return false, nil
	}
	d, err := s.stores.Disputes.GetByID(ctx, match.Status.DisputeID)
	if err != nil {
		return false, fmt.Errorf("score_service: get dispute %s: %w", match.Status.DisputeID, err)
	}
	if !d.Resolved() {
		return false, nil
	}
	if _, err := s.settlement.Settle(ctx, match.BattleID, d.ResolvedWinner); err != nil {
		return false, err
	}
	return true, nil
}
