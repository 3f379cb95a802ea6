package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/saga"
	"golang.org/x/sync/errgroup"
)

// SettlementService computes and writes the fee, ratings, earnings and
// payouts of a finished battle.
type SettlementService struct {
	stores    Stores
	ledger    domain.Ledger
	fees      domain.FeeCounter
	projector domain.RankingProjector
	archive   domain.SettlementArchive
	lease     *BattleLease
	fx        effects
	logger    *slog.Logger
}

// NewSettlementService creates a SettlementService. projector and archive may
// be nil.
func NewSettlementService(
	stores Stores,
	ledger domain.Ledger,
	fees domain.FeeCounter,
	projector domain.RankingProjector,
	archive domain.SettlementArchive,
	lease *BattleLease,
	notifier domain.Notifier,
	bus domain.EventBus,
	logger *slog.Logger,
) *SettlementService {
	logger = logger.With(slog.String("component", "settlement_service"))
	return &SettlementService{
		stores:    stores,
		ledger:    ledger,
		fees:      fees,
		projector: projector,
		archive:   archive,
		lease:     lease,
		fx:        newEffects(notifier, bus, logger),
		logger:    logger,
	}
}

// Settle settles a battle in favour of winner under the battle lease.
func (s *SettlementService) Settle(ctx context.Context, battleID string, winner domain.Side) (domain.SettlementReceipt, error) {
	var receipt domain.SettlementReceipt
	err := s.lease.With(ctx, battleID, func(ctx context.Context) error {
		battle, err := s.stores.Battles.GetByID(ctx, battleID)
		if err != nil {
			return fmt.Errorf("get battle: %w", err)
		}
		match, err := s.stores.Matches.GetByBattle(ctx, battleID)
		if err != nil {
			return fmt.Errorf("get match: %w", err)
		}
		receipt, err = s.settleLocked(ctx, battle, match, winner)
		return err
	})
	if err != nil {
		return domain.SettlementReceipt{}, fmt.Errorf("settlement_service: settle %s: %w", battleID, err)
	}
	return receipt, nil
}

type settlingSide struct {
	selection domain.TeamSelection
	members   []domain.TeamSelectionProfile
	ratings   []int64
}

func (s *SettlementService) checkSettleable(ctx context.Context, battle domain.Battle, match domain.Match, winner domain.Side) error {
	if !winner.Valid() {
		return fmt.Errorf("%w: winner %q", domain.ErrInvalidInput, winner)
	}
	if match.Result() != domain.SideNone {
		return fmt.Errorf("%w: match %s already settled", domain.ErrIllegalTransition, match.ID)
	}
	if battle.Cancelled() {
		return fmt.Errorf("%w: battle %s was cancelled", domain.ErrBattleUnavailable, battle.ID)
	}
	if !battle.Started(s.fx.now()) {
		return fmt.Errorf("%w: battle %s has not started", domain.ErrBattleUnavailable, battle.ID)
	}
	if match.HomeTeamID == "" || match.AwayTeamID == "" {
		return fmt.Errorf("%w: battle %s has no opponent", domain.ErrIllegalTransition, battle.ID)
	}
	if match.Status.Kind == domain.MatchDisputed {
		if match.Status.DisputeID == "" {
			return fmt.Errorf("%w: match %s awaits a dispute", domain.ErrIllegalTransition, match.ID)
		}
		d, err := s.stores.Disputes.GetByID(ctx, match.Status.DisputeID)
		if err != nil {
			return fmt.Errorf("get dispute: %w", err)
		}
		if !d.Resolved() {
			return fmt.Errorf("%w: dispute %s is unresolved", domain.ErrIllegalTransition, d.ID)
		}
	}
	return nil
}

// settleLocked runs the settlement steps. The caller holds the battle lease.
func (s *SettlementService) settleLocked(ctx context.Context, battle domain.Battle, match domain.Match, winner domain.Side) (domain.SettlementReceipt, error) {
	if err := s.checkSettleable(ctx, battle, match, winner); err != nil {
		return domain.SettlementReceipt{}, err
	}

	sides := make(map[domain.Side]*settlingSide, 2)
	for _, side := range []domain.Side{domain.SideHome, domain.SideAway} {
		sel, err := s.stores.Selections.GetByID(ctx, match.TeamID(side))
		if err != nil {
			return domain.SettlementReceipt{}, fmt.Errorf("get %s selection: %w", side, err)
		}
		members, err := loadMembers(ctx, s.stores.Selections, sel.ID)
		if err != nil {
			return domain.SettlementReceipt{}, err
		}
		if len(members) == 0 {
			return domain.SettlementReceipt{}, fmt.Errorf("%w: %s roster is empty", domain.ErrIllegalTransition, side)
		}
		sides[side] = &settlingSide{selection: sel, members: members}
	}
	win, lose := sides[winner], sides[winner.Opposite()]

	gameID := battle.Options.GameID
	pot := battle.PotAmount
	n := len(win.members)
	fee := HouseFee(pot, n)
	settledAt := s.fx.now()

	receipt := domain.SettlementReceipt{
		BattleID:  battle.ID,
		MatchID:   match.ID,
		GameID:    gameID,
		Winner:    winner,
		Pot:       pot,
		Fee:       fee,
		SettledAt: settledAt,
	}

	err := saga.Run(ctx, "settle battle", s.logger, func(l *saga.Log) error {
		if s.fees != nil && fee > 0 {
			err := l.Do(ctx, "collect fee",
				func(ctx context.Context) error { _, err := s.fees.Add(ctx, fee); return err },
				func(ctx context.Context) error { _, err := s.fees.Add(ctx, -fee); return err },
			)
			if err != nil {
				return err
			}
		}

		prevStatus := match.Status
		settled := match
		if err := settled.Settle(winner, settledAt); err != nil {
			return err
		}
		settled.UpdatedAt = settledAt
		err := l.Do(ctx, "record result",
			func(ctx context.Context) error { return s.stores.Matches.Update(ctx, settled) },
			func(ctx context.Context) error {
				restored := settled
				if err := restored.Unsettle(prevStatus); err != nil {
					return err
				}
				return s.stores.Matches.Update(ctx, restored)
			},
		)
		if err != nil {
			return err
		}

		if err := s.loadRatings(ctx, gameID, win, lose); err != nil {
			return err
		}
		winAvg, loseAvg := average(win.ratings), average(lose.ratings)

		for _, side := range []struct {
			s        *settlingSide
			won      bool
			oppAvg   float64
			earnings int64
		}{
			{win, true, loseAvg, (pot/2 - fee) / int64(n)},
			{lose, false, winAvg, -(pot / 2) / int64(len(lose.members))},
		} {
			for i, m := range side.s.members {
				delta := MemberDelta(side.won, float64(side.s.ratings[i]), side.oppAvg)
				out := domain.NewOutcome(side.earnings, delta, side.won)
				err := l.Do(ctx, "member outcome",
					func(ctx context.Context) error { return s.stores.Selections.SetMemberOutcome(ctx, m.ID, out) },
					func(ctx context.Context) error {
						return s.stores.Selections.SetMemberOutcome(ctx, m.ID, domain.Outcome{})
					},
				)
				if err != nil {
					return err
				}
				receipt.Members = append(receipt.Members, domain.MemberSettlement{
					MemberID:    m.ID,
					ProfileID:   m.ProfileID,
					Side:        side.s.selection.Side,
					Rating:      side.s.ratings[i],
					RatingDelta: delta,
					Earnings:    side.earnings,
					Won:         side.won,
				})
			}
		}

		for _, side := range []struct {
			s        *settlingSide
			won      bool
			earnings int64
		}{
			{win, true, pot/2 - fee},
			{lose, false, -(pot / 2)},
		} {
			sel := side.s.selection
			delta := TeamDelta(side.won, winAvg, loseAvg)
			out := domain.NewOutcome(side.earnings, delta, side.won)
			err := l.Do(ctx, "team outcome",
				func(ctx context.Context) error { return s.stores.Selections.SetOutcome(ctx, sel.ID, out) },
				func(ctx context.Context) error { return s.stores.Selections.SetOutcome(ctx, sel.ID, domain.Outcome{}) },
			)
			if err != nil {
				return err
			}
			receipt.Teams = append(receipt.Teams, domain.TeamSettlement{
				SelectionID: sel.ID,
				TeamID:      sel.TeamID,
				Side:        sel.Side,
				RatingDelta: delta,
				Earnings:    side.earnings,
				Won:         side.won,
			})
		}

		// Payout credits are not registered for compensation. A failure
		// here unwinds the result and outcomes but keeps credits already
		// written; reconciliation owns them.
		payouts, err := s.payout(ctx, l, battle, win.members, fee, n)
		receipt.Payouts = payouts
		return err
	})
	if err != nil {
		return domain.SettlementReceipt{}, err
	}

	s.logger.InfoContext(ctx, "settlement_service: battle settled",
		slog.String("battle_id", battle.ID),
		slog.String("match_id", match.ID),
		slog.String("winner", string(winner)),
		slog.Int64("pot", pot),
		slog.Int64("fee", fee),
		slog.Int("payouts", len(receipt.Payouts)),
	)
	s.afterSettle(ctx, battle, match, sides, receipt)
	return receipt, nil
}

func (s *SettlementService) loadRatings(ctx context.Context, gameID string, sides ...*settlingSide) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, side := range sides {
		side.ratings = make([]int64, len(side.members))
		for i, m := range side.members {
			g.Go(func() error {
				sum, err := s.stores.Selections.SumRatingDeltas(gctx, m.ProfileID, gameID)
				if err != nil {
					return fmt.Errorf("rating of %s: %w", m.ProfileID, err)
				}
				side.ratings[i] = ProfileRating(sum)
				return nil
			})
		}
	}
	return g.Wait()
}

func (s *SettlementService) payout(
	ctx context.Context,
	l *saga.Log,
	battle domain.Battle,
	winners []domain.TeamSelectionProfile,
	fee int64,
	n int,
) ([]domain.Transaction, error) {
	if battle.PotAmount <= 0 {
		return nil, nil
	}
	entries, err := s.ledger.ListForBattle(ctx, battle.ID)
	if err != nil {
		return nil, fmt.Errorf("list escrow: %w", err)
	}
	staked := make(map[string]bool, len(entries))
	for _, tx := range entries {
		if tx.Type == domain.TxOut {
			staked[tx.ProfileID] = true
		}
	}

	amount := battle.PotAmount - fee/int64(n)
	var credits []domain.Transaction
	for _, m := range winners {
		if !staked[m.ProfileID] {
			continue
		}
		err := l.Do(ctx, "credit payout", func(ctx context.Context) error {
			tx, err := s.ledger.Credit(ctx, m.ProfileID, battle.ID, amount)
			if err == nil {
				credits = append(credits, tx)
			}
			return err
		}, nil)
		if err != nil {
			return credits, err
		}
	}
	return credits, nil
}

// afterSettle runs the fire-and-forget effects of a settlement.
func (s *SettlementService) afterSettle(
	ctx context.Context,
	battle domain.Battle,
	match domain.Match,
	sides map[domain.Side]*settlingSide,
	receipt domain.SettlementReceipt,
) {
	for _, side := range sides {
		for _, m := range side.members {
			s.fx.notify(ctx, domain.Notification{
				ProfileID: m.ProfileID,
				Kind:      domain.NotifyBattleCompleted,
				Title:     "Battle completed",
				Message:   fmt.Sprintf("The %s team won the battle", receipt.Winner),
				BattleID:  battle.ID,
			})
		}
	}

	if s.projector != nil {
		if err := s.projector.Project(ctx, ProjectionFor(receipt)); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: ranking projection failed",
				slog.String("match_id", match.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.fx.publish(ctx, "battle.settled", battle.ID, match.ID, receipt.Winner)

	if s.archive != nil {
		if err := s.archive.Put(ctx, receipt); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: archive receipt failed",
				slog.String("battle_id", battle.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ProjectionFor expands a receipt into leaderboard entries for every subject
// and period the match counts towards.
func ProjectionFor(r domain.SettlementReceipt) domain.MatchProjection {
	p := domain.MatchProjection{MatchID: r.MatchID}
	for _, period := range domain.PeriodsFor(r.SettledAt) {
		for _, m := range r.Members {
			p.Entries = append(p.Entries,
				domain.RankingEntry{
					Subject:     domain.RankProfile,
					SubjectID:   m.ProfileID,
					Period:      period,
					RatingDelta: m.RatingDelta,
					Earnings:    m.Earnings,
					Won:         m.Won,
				},
				domain.RankingEntry{
					Subject:     domain.RankGameProfile,
					SubjectID:   m.ProfileID,
					GameID:      r.GameID,
					Period:      period,
					RatingDelta: m.RatingDelta,
					Earnings:    m.Earnings,
					Won:         m.Won,
				},
			)
		}
		for _, t := range r.Teams {
			p.Entries = append(p.Entries, domain.RankingEntry{
				Subject:     domain.RankGameTeam,
				SubjectID:   t.TeamID,
				GameID:      r.GameID,
				Period:      period,
				RatingDelta: t.RatingDelta,
				Earnings:    t.Earnings,
				Won:         t.Won,
			})
		}
	}
	return p
}

// ReceiptFor rebuilds the receipt of an already settled match from its
// stored outcomes. Used to replay leaderboards.
func ReceiptFor(ctx context.Context, stores Stores, match domain.Match) (domain.SettlementReceipt, error) {
	if match.Result() == domain.SideNone {
		return domain.SettlementReceipt{}, fmt.Errorf("%w: match %s is not settled", domain.ErrIllegalTransition, match.ID)
	}
	battle, err := stores.Battles.GetByID(ctx, match.BattleID)
	if err != nil {
		return domain.SettlementReceipt{}, fmt.Errorf("get battle: %w", err)
	}
	r := domain.SettlementReceipt{
		BattleID: battle.ID,
		MatchID:  match.ID,
		GameID:   battle.Options.GameID,
		Winner:   match.Result(),
		Pot:      battle.PotAmount,
	}
	if match.CompletedAt != nil {
		r.SettledAt = *match.CompletedAt
	}
	for _, side := range []domain.Side{domain.SideHome, domain.SideAway} {
		sel, err := stores.Selections.GetByID(ctx, match.TeamID(side))
		if err != nil {
			return r, fmt.Errorf("get %s selection: %w", side, err)
		}
		if !sel.Outcome.Settled() {
			return r, fmt.Errorf("%w: %s selection has no outcome", domain.ErrIllegalTransition, side)
		}
		r.Teams = append(r.Teams, domain.TeamSettlement{
			SelectionID: sel.ID,
			TeamID:      sel.TeamID,
			Side:        side,
			RatingDelta: *sel.Outcome.RatingDelta,
			Earnings:    *sel.Outcome.Earnings,
			Won:         *sel.Outcome.DidWin,
		})
		members, err := loadMembers(ctx, stores.Selections, sel.ID)
		if err != nil {
			return r, err
		}
		for _, m := range members {
			if !m.Outcome.Settled() {
				continue
			}
			r.Members = append(r.Members, domain.MemberSettlement{
				MemberID:    m.ID,
				ProfileID:   m.ProfileID,
				Side:        side,
				RatingDelta: *m.Outcome.RatingDelta,
				Earnings:    *m.Outcome.Earnings,
				Won:         *m.Outcome.DidWin,
			})
		}
	}
	return r, nil
}
