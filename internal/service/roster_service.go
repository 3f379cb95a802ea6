package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/saga"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RosterRequest is one side's roster submission. TeamProfileIDs may omit the
// captain and may contain duplicates.
type RosterRequest struct {
	CaptainTeamProfileID string
	TeamProfileIDs       []string
	Side                 domain.Side
}

// FormedRoster is everything a successful formation wrote.
type FormedRoster struct {
	Team      domain.Team
	Selection domain.TeamSelection
	Members   []domain.TeamSelectionProfile
	Holds     []domain.Transaction
}

// RosterService validates one side of a battle and writes its roster and
// escrow holds.
type RosterService struct {
	stores Stores
	ledger domain.Ledger
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewRosterService creates a RosterService.
func NewRosterService(stores Stores, ledger domain.Ledger, logger *slog.Logger) *RosterService {
	return &RosterService{
		stores: stores,
		ledger: ledger,
		logger: logger.With(slog.String("component", "roster_service")),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

type candidate struct {
	teamProfile domain.TeamProfile
	profile     domain.Profile
	captain     bool
}

// FormRoster checks req against the battle and match snapshot and, when every
// check passes, writes the selection, its members and one escrow hold per
// member. Every write is registered on l; the caller owns compensation. The
// caller must hold the battle lease and must have re-read battle and match
// under it.
func (s *RosterService) FormRoster(ctx context.Context, l *saga.Log, battle domain.Battle, match domain.Match, req RosterRequest) (FormedRoster, error) {
	if !req.Side.Valid() {
		return FormedRoster{}, fmt.Errorf("%w: side %q", domain.ErrInvalidInput, req.Side)
	}
	if battle.Cancelled() || battle.Expired(s.now()) || match.TeamID(req.Side) != "" {
		return FormedRoster{}, fmt.Errorf("%w: battle %s cannot take a %s roster", domain.ErrBattleUnavailable, battle.ID, req.Side)
	}

	captainTP, team, err := s.captainTeam(ctx, req.CaptainTeamProfileID)
	if err != nil {
		return FormedRoster{}, err
	}
	if req.Side == domain.SideAway && battle.InvitedTeamID != "" && battle.InvitedTeamID != team.ID {
		return FormedRoster{}, fmt.Errorf("%w: battle %s is reserved for team %s", domain.ErrInvalidInput, battle.ID, battle.InvitedTeamID)
	}

	ids := rosterIDs(captainTP.ID, req.TeamProfileIDs)
	if len(ids) != battle.Options.TeamSize {
		return FormedRoster{}, fmt.Errorf("%w: roster has %d members, battle needs %d", domain.ErrInvalidInput, len(ids), battle.Options.TeamSize)
	}
	if team.GameID != battle.Options.GameID {
		return FormedRoster{}, fmt.Errorf("%w: team %s plays a different game", domain.ErrInvalidInput, team.ID)
	}
	if otherID := match.TeamID(req.Side.Opposite()); otherID != "" {
		other, err := s.stores.Selections.GetByID(ctx, otherID)
		if err != nil {
			return FormedRoster{}, fmt.Errorf("roster_service: get %s selection: %w", req.Side.Opposite(), err)
		}
		if other.TeamID == team.ID {
			return FormedRoster{}, fmt.Errorf("%w: team %s cannot play itself", domain.ErrInvalidInput, team.ID)
		}
	}

	wager := battle.WagerPerPerson()
	candidates, err := s.checkMembers(ctx, captainTP, ids, wager)
	if err != nil {
		return FormedRoster{}, err
	}

	return s.write(ctx, l, battle, match, req.Side, team, candidates, wager)
}

func (s *RosterService) captainTeam(ctx context.Context, teamProfileID string) (domain.TeamProfile, domain.Team, error) {
	tp, err := s.stores.Roster.GetTeamProfile(ctx, teamProfileID)
	if errors.Is(err, domain.ErrNotFound) {
		return tp, domain.Team{}, fmt.Errorf("%w: captain team profile %s not found", domain.ErrInvalidInput, teamProfileID)
	}
	if err != nil {
		return tp, domain.Team{}, fmt.Errorf("roster_service: get captain %s: %w", teamProfileID, err)
	}
	team, err := s.stores.Roster.GetTeam(ctx, tp.TeamID)
	if errors.Is(err, domain.ErrNotFound) {
		return tp, team, fmt.Errorf("%w: team %s not found", domain.ErrInvalidInput, tp.TeamID)
	}
	if err != nil {
		return tp, team, fmt.Errorf("roster_service: get team %s: %w", tp.TeamID, err)
	}
	if tp.Deleted || team.Deleted {
		return tp, team, fmt.Errorf("%w: captain %s or team %s removed", domain.ErrInvalidInput, tp.ID, team.ID)
	}
	if !tp.Role.CanCaptain() {
		return tp, team, fmt.Errorf("%w: role %s cannot captain", domain.ErrInvalidInput, tp.Role)
	}
	return tp, team, nil
}

// rosterIDs removes duplicates and appends the captain last.
func rosterIDs(captainID string, requested []string) []string {
	ids := make([]string, 0, len(requested)+1)
	for _, id := range dedupe(requested) {
		if id != captainID {
			ids = append(ids, id)
		}
	}
	return append(ids, captainID)
}

// checkMembers runs the membership and funding checks for every member
// concurrently. Any failing member rejects the whole squad.
func (s *RosterService) checkMembers(ctx context.Context, captain domain.TeamProfile, ids []string, wager int64) ([]candidate, error) {
	out := make([]candidate, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			c, err := s.checkMember(gctx, captain, id, wager)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RosterService) checkMember(ctx context.Context, captain domain.TeamProfile, teamProfileID string, wager int64) (candidate, error) {
	notEligible := func(reason string) (candidate, error) {
		return candidate{}, fmt.Errorf("%w: team profile %s %s", domain.ErrSquadNotEligible, teamProfileID, reason)
	}

	tp, err := s.stores.Roster.GetTeamProfile(ctx, teamProfileID)
	if errors.Is(err, domain.ErrNotFound) {
		return notEligible("not found")
	}
	if err != nil {
		return candidate{}, fmt.Errorf("roster_service: get team profile %s: %w", teamProfileID, err)
	}
	if tp.Deleted {
		return notEligible("was removed")
	}
	if tp.Pending {
		return notEligible("has a pending invite")
	}
	if tp.TeamID != captain.TeamID {
		return notEligible("is on another team")
	}

	profile, err := s.stores.Roster.GetProfile(ctx, tp.ProfileID)
	if errors.Is(err, domain.ErrNotFound) {
		return notEligible("has no profile")
	}
	if err != nil {
		return candidate{}, fmt.Errorf("roster_service: get profile %s: %w", tp.ProfileID, err)
	}
	if profile.Deleted {
		return notEligible("profile was deleted")
	}

	isCaptain := tp.ID == captain.ID
	if wager > 0 {
		if !profile.WagerMode {
			return notEligible("has wager mode off")
		}
		if !isCaptain && !profile.TrustMode {
			return notEligible("has trust mode off")
		}
		balance, err := s.ledger.Balance(ctx, profile.ID)
		if err != nil {
			return candidate{}, fmt.Errorf("roster_service: balance of %s: %w", profile.ID, err)
		}
		if balance < wager {
			return notEligible(fmt.Sprintf("balance %d below wager %d", balance, wager))
		}
	}
	return candidate{teamProfile: tp, profile: profile, captain: isCaptain}, nil
}

func (s *RosterService) write(
	ctx context.Context,
	l *saga.Log,
	battle domain.Battle,
	match domain.Match,
	side domain.Side,
	team domain.Team,
	candidates []candidate,
	wager int64,
) (FormedRoster, error) {
	now := s.now()
	formed := FormedRoster{
		Team: team,
		Selection: domain.TeamSelection{
			ID:        s.newID(),
			MatchID:   match.ID,
			TeamID:    team.ID,
			Side:      side,
			CreatedAt: now,
		},
	}

	sel := formed.Selection
	err := l.Do(ctx, "create selection",
		func(ctx context.Context) error { return s.stores.Selections.Create(ctx, sel) },
		func(ctx context.Context) error { return s.stores.Selections.Delete(ctx, sel.ID) },
	)
	if err != nil {
		return FormedRoster{}, fmt.Errorf("roster_service: %w", err)
	}

	for _, c := range candidates {
		member := domain.TeamSelectionProfile{
			ID:            s.newID(),
			SelectionID:   sel.ID,
			TeamProfileID: c.teamProfile.ID,
			ProfileID:     c.profile.ID,
			IsCaptain:     c.captain,
			CreatedAt:     now,
		}
		err := l.Do(ctx, "create member",
			func(ctx context.Context) error { return s.stores.Selections.CreateMember(ctx, member) },
			func(ctx context.Context) error { return s.stores.Selections.DeleteMember(ctx, member.ID) },
		)
		if err != nil {
			return FormedRoster{}, fmt.Errorf("roster_service: %w", err)
		}
		formed.Members = append(formed.Members, member)

		if wager <= 0 {
			continue
		}
		var held domain.Transaction
		err = l.Do(ctx, "hold escrow",
			func(ctx context.Context) error {
				tx, err := s.ledger.Hold(ctx, c.profile.ID, battle.ID, wager)
				held = tx
				return err
			},
			func(ctx context.Context) error {
				if held.ID == "" {
					return nil
				}
				return s.ledger.Void(ctx, held)
			},
		)
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return FormedRoster{}, fmt.Errorf("%w: %v", domain.ErrSquadNotEligible, err)
		}
		if err != nil {
			return FormedRoster{}, fmt.Errorf("roster_service: %w", err)
		}
		formed.Holds = append(formed.Holds, held)
	}

	s.logger.InfoContext(ctx, "roster_service: roster formed",
		slog.String("battle_id", battle.ID),
		slog.String("side", string(side)),
		slog.String("team_id", team.ID),
		slog.Int("members", len(formed.Members)),
		slog.Int64("wager", wager),
	)
	return formed, nil
}
