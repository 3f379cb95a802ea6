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

// CreateBattleInput is a captain's challenge.
type CreateBattleInput struct {
	WagerPerPerson   int64
	InvitedTeamID    string
	TeamProfileIDs   []string
	ScheduledAt      time.Time
	Series           int
	Region           domain.Region
	CustomAttributes []domain.AttributeSelection
}

// JoinBattleInput is the away captain's roster.
type JoinBattleInput struct {
	CaptainTeamProfileID string
	TeamProfileIDs       []string
}

// CancelOutcome reports what a cancel call did.
type CancelOutcome string

const (
	CancelExecuted         CancelOutcome = "cancelled"
	CancelRequested        CancelOutcome = "requested"
	CancelAlreadyRequested CancelOutcome = "already_requested"
	CancelAlreadyCancelled CancelOutcome = "already_cancelled"
)

// BattleDetails is a battle with its match and dispute, if any.
type BattleDetails struct {
	Battle  domain.Battle
	Match   domain.Match
	Dispute *domain.Dispute
}

// BattleService runs battle creation, joining and the cancellation
// handshake.
type BattleService struct {
	stores  Stores
	ledger  domain.Ledger
	rosters *RosterService
	lease   *BattleLease
	fx      effects
	pick    func(n int) int
	logger  *slog.Logger
}

// NewBattleService creates a BattleService.
func NewBattleService(
	stores Stores,
	ledger domain.Ledger,
	rosters *RosterService,
	lease *BattleLease,
	notifier domain.Notifier,
	bus domain.EventBus,
	logger *slog.Logger,
) *BattleService {
	logger = logger.With(slog.String("component", "battle_service"))
	return &BattleService{
		stores:  stores,
		ledger:  ledger,
		rosters: rosters,
		lease:   lease,
		fx:      newEffects(notifier, bus, logger),
		logger:  logger,
	}
}

// GetBattle returns a battle with its match and dispute.
func (s *BattleService) GetBattle(ctx context.Context, battleID string) (BattleDetails, error) {
	battle, err := s.stores.Battles.GetByID(ctx, battleID)
	if err != nil {
		return BattleDetails{}, fmt.Errorf("battle_service: get battle %s: %w", battleID, err)
	}
	match, err := s.stores.Matches.GetByBattle(ctx, battleID)
	if err != nil {
		return BattleDetails{}, fmt.Errorf("battle_service: get match of %s: %w", battleID, err)
	}
	details := BattleDetails{Battle: battle, Match: match}
	if match.Status.DisputeID != "" {
		d, err := s.stores.Disputes.GetByID(ctx, match.Status.DisputeID)
		if err != nil {
			return BattleDetails{}, fmt.Errorf("battle_service: get dispute %s: %w", match.Status.DisputeID, err)
		}
		details.Dispute = &d
	}
	return details, nil
}

// CreateBattle validates a challenge, creates the battle and its match and
// forms the home roster. A failure after the first write unwinds everything.
func (s *BattleService) CreateBattle(ctx context.Context, caller domain.Profile, captainTeamProfileID string, in CreateBattleInput) (domain.Battle, error) {
	captain, err := s.stores.Roster.GetTeamProfile(ctx, captainTeamProfileID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && captain.Deleted) {
		return domain.Battle{}, fmt.Errorf("%w: captain team profile %s", domain.ErrInvalidInput, captainTeamProfileID)
	}
	if err != nil {
		return domain.Battle{}, fmt.Errorf("battle_service: get captain: %w", err)
	}
	if captain.ProfileID != caller.ID {
		return domain.Battle{}, fmt.Errorf("%w: caller does not own team profile %s", domain.ErrUnauthorized, captain.ID)
	}

	team, err := s.stores.Roster.GetTeam(ctx, captain.TeamID)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("battle_service: get team %s: %w", captain.TeamID, err)
	}
	game, err := s.stores.Roster.GetGame(ctx, team.GameID)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("battle_service: get game %s: %w", team.GameID, err)
	}

	var invited domain.Team
	if in.InvitedTeamID != "" {
		invited, err = s.stores.Roster.GetTeam(ctx, in.InvitedTeamID)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && invited.Deleted) {
			return domain.Battle{}, fmt.Errorf("%w: invited team %s", domain.ErrInvalidInput, in.InvitedTeamID)
		}
		if err != nil {
			return domain.Battle{}, fmt.Errorf("battle_service: get invited team: %w", err)
		}
		if invited.GameID != game.ID || invited.ID == team.ID {
			return domain.Battle{}, fmt.Errorf("%w: invited team %s", domain.ErrInvalidInput, invited.ID)
		}
	}

	members, err := s.stores.Roster.ListTeamProfiles(ctx, team.ID)
	if err != nil {
		return domain.Battle{}, fmt.Errorf("battle_service: list team profiles: %w", err)
	}
	ids := rosterIDs(captain.ID, in.TeamProfileIDs)
	if !allInTeam(ids, members) {
		return domain.Battle{}, fmt.Errorf("%w: roster includes profiles outside team %s", domain.ErrInvalidInput, team.ID)
	}

	if err := s.validateCreate(in, game); err != nil {
		return domain.Battle{}, err
	}

	now := s.fx.now()
	battle := domain.Battle{
		ID:            s.fx.newID(),
		ScheduledAt:   in.ScheduledAt.UTC(),
		PotAmount:     domain.PotFor(in.WagerPerPerson, len(ids)),
		Lifecycle:     domain.LifecycleActive,
		Status:        domain.BattleStatus{Kind: domain.BattleAwaitingOpponent},
		InvitedTeamID: invited.ID,
		Options: domain.MatchOptions{
			GameID:           game.ID,
			TeamSize:         len(ids),
			Series:           in.Series,
			Region:           in.Region,
			CustomAttributes: in.CustomAttributes,
		},
		CreatedBy: caller.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	match := domain.Match{
		ID:        s.fx.newID(),
		BattleID:  battle.ID,
		Status:    domain.MatchStatus{Kind: domain.MatchAwaitingOpponent},
		Lifecycle: domain.LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var formed FormedRoster
	err = saga.Run(ctx, "create battle", s.logger, func(l *saga.Log) error {
		err := l.Do(ctx, "create battle",
			func(ctx context.Context) error { return s.stores.Battles.Create(ctx, battle) },
			func(ctx context.Context) error { return s.stores.Battles.Delete(ctx, battle.ID) },
		)
		if err != nil {
			return err
		}
		err = l.Do(ctx, "create match",
			func(ctx context.Context) error { return s.stores.Matches.Create(ctx, match) },
			func(ctx context.Context) error { return s.stores.Matches.Delete(ctx, match.ID) },
		)
		if err != nil {
			return err
		}

		formed, err = s.rosters.FormRoster(ctx, l, battle, match, RosterRequest{
			CaptainTeamProfileID: captain.ID,
			TeamProfileIDs:       in.TeamProfileIDs,
			Side:                 domain.SideHome,
		})
		if err != nil {
			return err
		}

		linked := match
		linked.HomeTeamID = formed.Selection.ID
		linked.UpdatedAt = s.fx.now()
		return l.Do(ctx, "link home roster",
			func(ctx context.Context) error { return s.stores.Matches.Update(ctx, linked) },
			nil,
		)
	})
	if err != nil {
		return domain.Battle{}, fmt.Errorf("battle_service: create battle: %w", err)
	}

	s.logger.InfoContext(ctx, "battle_service: battle created",
		slog.String("battle_id", battle.ID),
		slog.String("team_id", team.ID),
		slog.Int64("pot", battle.PotAmount),
		slog.Int("team_size", battle.Options.TeamSize),
	)

	for _, m := range formed.Members {
		s.fx.notify(ctx, domain.Notification{
			ProfileID: m.ProfileID,
			Kind:      domain.NotifyEnrolledInBattle,
			Title:     "Enrolled in battle",
			Message:   fmt.Sprintf("%s has entered you into a %s battle", team.Name, game.Title),
			BattleID:  battle.ID,
		})
	}
	if invited.ID != "" {
		s.notifyInvite(ctx, battle, team, invited)
	}
	s.fx.publish(ctx, "battle.created", battle.ID, match.ID, domain.SideHome)
	return battle, nil
}

func (s *BattleService) validateCreate(in CreateBattleInput, game domain.Game) error {
	switch {
	case in.WagerPerPerson < 0:
		return fmt.Errorf("%w: negative wager", domain.ErrInvalidInput)
	case !domain.ValidSeries[in.Series]:
		return fmt.Errorf("%w: series %d", domain.ErrInvalidInput, in.Series)
	case !in.ScheduledAt.After(s.fx.now()):
		return fmt.Errorf("%w: start time must be in the future", domain.ErrInvalidInput)
	case !in.Region.Valid():
		return fmt.Errorf("%w: region %q", domain.ErrInvalidInput, in.Region)
	case !validateAttributeInputs(game, in.CustomAttributes):
		return fmt.Errorf("%w: custom attribute inputs", domain.ErrInvalidInput)
	}
	return nil
}

func allInTeam(ids []string, members []domain.TeamProfile) bool {
	inTeam := make(map[string]bool, len(members))
	for _, m := range members {
		inTeam[m.ID] = true
	}
	for _, id := range ids {
		if !inTeam[id] {
			return false
		}
	}
	return true
}

func (s *BattleService) notifyInvite(ctx context.Context, battle domain.Battle, from, to domain.Team) {
	members, err := s.stores.Roster.ListTeamProfiles(ctx, to.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "battle_service: list invited team failed",
			slog.String("team_id", to.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, m := range members {
		if m.Deleted || m.Pending || !m.Role.CanCaptain() {
			continue
		}
		s.fx.notify(ctx, domain.Notification{
			ProfileID: m.ProfileID,
			Kind:      domain.NotifyBattleInviteReceived,
			Title:     "Battle invite",
			Message:   fmt.Sprintf("%s challenged %s to a battle", from.Name, to.Name),
			BattleID:  battle.ID,
		})
	}
}

// JoinBattle forms the away roster, fills the match and generates its
// display metadata. At most one join can succeed per battle.
func (s *BattleService) JoinBattle(ctx context.Context, caller domain.Profile, battleID string, in JoinBattleInput) (domain.Battle, error) {
	captain, err := s.stores.Roster.GetTeamProfile(ctx, in.CaptainTeamProfileID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && captain.Deleted) {
		return domain.Battle{}, fmt.Errorf("%w: captain team profile %s", domain.ErrUnauthorized, in.CaptainTeamProfileID)
	}
	if err != nil {
		return domain.Battle{}, fmt.Errorf("battle_service: get captain: %w", err)
	}
	if captain.ProfileID != caller.ID {
		return domain.Battle{}, fmt.Errorf("%w: caller does not own team profile %s", domain.ErrUnauthorized, captain.ID)
	}

	var (
		joined domain.Battle
		match  domain.Match
		formed FormedRoster
	)
	err = s.lease.With(ctx, battleID, func(ctx context.Context) error {
		battle, err := s.stores.Battles.GetByID(ctx, battleID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: battle %s not found", domain.ErrBattleUnavailable, battleID)
		}
		if err != nil {
			return fmt.Errorf("get battle: %w", err)
		}
		match, err = s.stores.Matches.GetByBattle(ctx, battleID)
		if err != nil {
			return fmt.Errorf("get match: %w", err)
		}
		game, err := s.stores.Roster.GetGame(ctx, battle.Options.GameID)
		if err != nil {
			return fmt.Errorf("get game: %w", err)
		}

		return saga.Run(ctx, "join battle", s.logger, func(l *saga.Log) error {
			formed, err = s.rosters.FormRoster(ctx, l, battle, match, RosterRequest{
				CaptainTeamProfileID: captain.ID,
				TeamProfileIDs:       in.TeamProfileIDs,
				Side:                 domain.SideAway,
			})
			if err != nil {
				return err
			}

			prevMatch := match
			if err := match.Fill(formed.Selection.ID); err != nil {
				return err
			}
			meta := GenerateMatchMeta(game, battle.Options, s.pick)
			match.Meta = &meta
			match.UpdatedAt = s.fx.now()
			err = l.Do(ctx, "fill match",
				func(ctx context.Context) error { return s.stores.Matches.Update(ctx, match) },
				func(ctx context.Context) error { return s.stores.Matches.Update(ctx, prevMatch) },
			)
			if err != nil {
				return err
			}

			prevBattle := battle
			if err := battle.Join(); err != nil {
				return err
			}
			battle.UpdatedAt = s.fx.now()
			err = l.Do(ctx, "mark battle ready",
				func(ctx context.Context) error { return s.stores.Battles.Update(ctx, battle) },
				func(ctx context.Context) error { return s.stores.Battles.Update(ctx, prevBattle) },
			)
			if err != nil {
				return err
			}
			joined = battle
			return nil
		})
	})
	if err != nil {
		return domain.Battle{}, fmt.Errorf("battle_service: join battle %s: %w", battleID, err)
	}

	s.logger.InfoContext(ctx, "battle_service: battle joined",
		slog.String("battle_id", battleID),
		slog.String("team_id", formed.Team.ID),
	)
	s.notifyConfirmed(ctx, joined, match, formed)
	s.fx.publish(ctx, "battle.joined", battleID, match.ID, domain.SideAway)
	return joined, nil
}

func (s *BattleService) notifyConfirmed(ctx context.Context, battle domain.Battle, match domain.Match, away FormedRoster) {
	homeSel, err := s.stores.Selections.GetByID(ctx, match.HomeTeamID)
	if err != nil {
		s.logger.WarnContext(ctx, "battle_service: load home roster failed", slog.String("error", err.Error()))
		return
	}
	homeTeam, err := s.stores.Roster.GetTeam(ctx, homeSel.TeamID)
	if err != nil {
		s.logger.WarnContext(ctx, "battle_service: load home team failed", slog.String("error", err.Error()))
		return
	}
	homeMembers, err := loadMembers(ctx, s.stores.Selections, homeSel.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "battle_service: load home members failed", slog.String("error", err.Error()))
		return
	}
	send := func(members []domain.TeamSelectionProfile, opponent string) {
		for _, m := range members {
			s.fx.notify(ctx, domain.Notification{
				ProfileID: m.ProfileID,
				Kind:      domain.NotifyBattleConfirmed,
				Title:     "Battle confirmed",
				Message:   fmt.Sprintf("Your battle against %s is confirmed", opponent),
				BattleID:  battle.ID,
			})
		}
	}
	send(homeMembers, away.Team.Name)
	send(away.Members, homeTeam.Name)
}

// CancelBattle runs the cancellation handshake. An unjoined battle is
// cancelled by its home captain alone; a joined battle needs both captains.
func (s *BattleService) CancelBattle(ctx context.Context, caller domain.Profile, battleID string) (CancelOutcome, error) {
	var outcome CancelOutcome
	err := s.lease.With(ctx, battleID, func(ctx context.Context) error {
		battle, match, err := s.loadPair(ctx, battleID)
		if err != nil {
			return err
		}
		if battle.Cancelled() {
			outcome = CancelAlreadyCancelled
			return nil
		}
		if match.Status.Kind == domain.MatchSettled {
			return fmt.Errorf("%w: battle %s is settled", domain.ErrBattleUnavailable, battleID)
		}
		captains, err := sideCaptains(ctx, s.stores.Selections, match)
		if err != nil {
			return err
		}

		if battle.Status.Kind == domain.BattleAwaitingOpponent {
			if captains[domain.SideHome] != caller.ID {
				return fmt.Errorf("%w: only the home captain may cancel", domain.ErrUnauthorized)
			}
			outcome = CancelExecuted
			return s.executeCancel(ctx, battle)
		}

		side := callerSide(captains, caller.ID)
		if side == domain.SideNone {
			return fmt.Errorf("%w: caller is not a captain of battle %s", domain.ErrUnauthorized, battleID)
		}
		if battle.Status.CancellationRequestedBy == side.Opposite() {
			if err := s.executeCancel(ctx, battle); err != nil {
				return err
			}
			outcome = CancelExecuted
			s.fx.notify(ctx, domain.Notification{
				ProfileID: captains[side.Opposite()],
				Kind:      domain.NotifyBattleCancelled,
				Title:     "Battle cancelled",
				Message:   "Your opponent accepted the cancellation request",
				BattleID:  battleID,
			})
			return nil
		}

		changed, err := battle.RequestCancellation(side)
		if err != nil {
			return err
		}
		if !changed {
			outcome = CancelAlreadyRequested
			return nil
		}
		battle.UpdatedAt = s.fx.now()
		if err := s.stores.Battles.Update(ctx, battle); err != nil {
			return fmt.Errorf("stamp cancellation request: %w", err)
		}
		outcome = CancelRequested
		s.fx.notify(ctx, domain.Notification{
			ProfileID: captains[side.Opposite()],
			Kind:      domain.NotifyCancellationRequested,
			Title:     "Cancellation requested",
			Message:   "Your opponent asked to cancel the battle",
			BattleID:  battleID,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("battle_service: cancel battle %s: %w", battleID, err)
	}
	return outcome, nil
}

// executeCancel marks the battle cancelled and then voids every escrow entry
// tied to it. If voiding fails the entries are restored and the battle is
// made active again.
func (s *BattleService) executeCancel(ctx context.Context, battle domain.Battle) error {
	err := saga.Run(ctx, "cancel battle", s.logger, func(l *saga.Log) error {
		prev := battle
		cancelled := battle
		if err := cancelled.Cancel(); err != nil {
			return err
		}
		cancelled.UpdatedAt = s.fx.now()
		err := l.Do(ctx, "mark cancelled",
			func(ctx context.Context) error { return s.stores.Battles.Update(ctx, cancelled) },
			func(ctx context.Context) error { return s.stores.Battles.Update(ctx, prev) },
		)
		if err != nil {
			return err
		}

		entries, err := s.ledger.ListForBattle(ctx, battle.ID)
		if err != nil {
			return fmt.Errorf("list escrow: %w", err)
		}
		for _, tx := range entries {
			err := l.Do(ctx, "void "+tx.ID,
				func(ctx context.Context) error { return s.ledger.Void(ctx, tx) },
				func(ctx context.Context) error { return s.ledger.Restore(ctx, tx) },
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "battle_service: battle cancelled", slog.String("battle_id", battle.ID))
	s.fx.publish(ctx, "battle.cancelled", battle.ID, "", domain.SideNone)
	return nil
}

// WithdrawCancellationRequest clears a pending request. Only the captain of
// the requesting side may withdraw it.
func (s *BattleService) WithdrawCancellationRequest(ctx context.Context, caller domain.Profile, battleID string) error {
	err := s.lease.With(ctx, battleID, func(ctx context.Context) error {
		battle, match, err := s.loadPair(ctx, battleID)
		if err != nil {
			return err
		}
		requester := battle.Status.CancellationRequestedBy
		if requester == domain.SideNone {
			return fmt.Errorf("%w: no cancellation request pending", domain.ErrInvalidInput)
		}
		captains, err := sideCaptains(ctx, s.stores.Selections, match)
		if err != nil {
			return err
		}
		if captains[requester] != caller.ID {
			return fmt.Errorf("%w: only the %s captain may withdraw", domain.ErrUnauthorized, requester)
		}
		if err := battle.WithdrawCancellation(requester); err != nil {
			return err
		}
		battle.UpdatedAt = s.fx.now()
		if err := s.stores.Battles.Update(ctx, battle); err != nil {
			return fmt.Errorf("clear cancellation request: %w", err)
		}
		s.fx.notify(ctx, domain.Notification{
			ProfileID: captains[requester.Opposite()],
			Kind:      domain.NotifyCancellationWithdrawn,
			Title:     "Cancellation withdrawn",
			Message:   "Your opponent withdrew their cancellation request",
			BattleID:  battleID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("battle_service: withdraw cancellation %s: %w", battleID, err)
	}
	return nil
}

// DeclineInvitation lets a founder or leader of the invited team turn a
// direct challenge down, which cancels the battle.
func (s *BattleService) DeclineInvitation(ctx context.Context, caller domain.Profile, battleID string) error {
	err := s.lease.With(ctx, battleID, func(ctx context.Context) error {
		battle, match, err := s.loadPair(ctx, battleID)
		if err != nil {
			return err
		}
		if battle.InvitedTeamID == "" {
			return fmt.Errorf("%w: battle %s has no invited team", domain.ErrInvalidInput, battleID)
		}
		members, err := s.stores.Roster.ListTeamProfiles(ctx, battle.InvitedTeamID)
		if err != nil {
			return fmt.Errorf("list invited team: %w", err)
		}
		if !canCaptain(members, caller.ID) {
			return fmt.Errorf("%w: caller does not lead team %s", domain.ErrUnauthorized, battle.InvitedTeamID)
		}
		if battle.Cancelled() || battle.Status.Kind != domain.BattleAwaitingOpponent {
			return fmt.Errorf("%w: battle %s is no longer open", domain.ErrBattleUnavailable, battleID)
		}
		if err := s.executeCancel(ctx, battle); err != nil {
			return err
		}

		invited, err := s.stores.Roster.GetTeam(ctx, battle.InvitedTeamID)
		if err != nil {
			s.logger.WarnContext(ctx, "battle_service: load invited team failed", slog.String("error", err.Error()))
		}
		captains, err := sideCaptains(ctx, s.stores.Selections, match)
		if err != nil {
			s.logger.WarnContext(ctx, "battle_service: load captains failed", slog.String("error", err.Error()))
			return nil
		}
		s.fx.notify(ctx, domain.Notification{
			ProfileID: captains[domain.SideHome],
			Kind:      domain.NotifyInviteDeclined,
			Title:     "Challenge declined",
			Message:   fmt.Sprintf("%s declined your challenge", invited.Name),
			BattleID:  battleID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("battle_service: decline invitation %s: %w", battleID, err)
	}
	return nil
}

func canCaptain(members []domain.TeamProfile, profileID string) bool {
	for _, m := range members {
		if m.ProfileID == profileID && !m.Deleted && !m.Pending && m.Role.CanCaptain() {
			return true
		}
	}
	return false
}

// ExpireBattle cancels a battle nobody joined before its start time. It
// reports whether the battle was cancelled.
func (s *BattleService) ExpireBattle(ctx context.Context, battleID string) (bool, error) {
	expired := false
	err := s.lease.With(ctx, battleID, func(ctx context.Context) error {
		battle, match, err := s.loadPair(ctx, battleID)
		if err != nil {
			return err
		}
		if battle.Cancelled() || battle.Status.Kind != domain.BattleAwaitingOpponent || !battle.Expired(s.fx.now()) {
			return nil
		}
		if err := s.executeCancel(ctx, battle); err != nil {
			return err
		}
		expired = true

		captains, err := sideCaptains(ctx, s.stores.Selections, match)
		if err != nil {
			s.logger.WarnContext(ctx, "battle_service: load captains failed", slog.String("error", err.Error()))
			return nil
		}
		title := "your battle"
		if game, err := s.stores.Roster.GetGame(ctx, battle.Options.GameID); err == nil {
			title = game.Title
		}
		s.fx.notify(ctx, domain.Notification{
			ProfileID: captains[domain.SideHome],
			Kind:      domain.NotifyBattleExpired,
			Title:     "Battle expired",
			Message:   fmt.Sprintf("The battle for %s has expired", title),
			BattleID:  battleID,
		})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("battle_service: expire battle %s: %w", battleID, err)
	}
	return expired, nil
}

func (s *BattleService) loadPair(ctx context.Context, battleID string) (domain.Battle, domain.Match, error) {
	battle, err := s.stores.Battles.GetByID(ctx, battleID)
	if err != nil {
		return domain.Battle{}, domain.Match{}, fmt.Errorf("get battle: %w", err)
	}
	match, err := s.stores.Matches.GetByBattle(ctx, battleID)
	if err != nil {
		return domain.Battle{}, domain.Match{}, fmt.Errorf("get match: %w", err)
	}
	return battle, match, nil
}
