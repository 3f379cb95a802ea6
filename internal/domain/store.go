package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// BattleStore persists battles. Deleted battles are invisible to every read.
type BattleStore interface {
	Create(ctx context.Context, b Battle) error
	GetByID(ctx context.Context, id string) (Battle, error)
	Update(ctx context.Context, b Battle) error
	Delete(ctx context.Context, id string) error
	ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]Battle, error)
}

// MatchStore persists matches. Deleted matches are invisible to every read.
type MatchStore interface {
	Create(ctx context.Context, m Match) error
	GetByID(ctx context.Context, id string) (Match, error)
	GetByBattle(ctx context.Context, battleID string) (Match, error)
	Update(ctx context.Context, m Match) error
	Delete(ctx context.Context, id string) error
	// ListStaleVotes returns undisputed matches of active battles with one
	// vote, or two agreeing votes, whose last vote is older than before.
	ListStaleVotes(ctx context.Context, before time.Time, limit int) ([]Match, error)
	// ListDisputed returns unsettled matches of active battles whose linked
	// dispute already has a winner.
	ListDisputed(ctx context.Context, limit int) ([]Match, error)
	ListSettled(ctx context.Context, opts ListOpts) ([]Match, error)
}

// SelectionStore persists rosters and roster members.
type SelectionStore interface {
	Create(ctx context.Context, s TeamSelection) error
	GetByID(ctx context.Context, id string) (TeamSelection, error)
	SetOutcome(ctx context.Context, id string, o Outcome) error
	Delete(ctx context.Context, id string) error

	CreateMember(ctx context.Context, m TeamSelectionProfile) error
	ListMembers(ctx context.Context, selectionID string) ([]TeamSelectionProfile, error)
	SetMemberOutcome(ctx context.Context, id string, o Outcome) error
	DeleteMember(ctx context.Context, id string) error

	// SumRatingDeltas totals every settled per-match rating delta of a
	// profile in battles of the given game.
	SumRatingDeltas(ctx context.Context, profileID, gameID string) (int64, error)
}

// TransactionStore persists escrow ledger entries.
type TransactionStore interface {
	Create(ctx context.Context, tx Transaction) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	Delete(ctx context.Context, id string) error
	ListByBattle(ctx context.Context, battleID string) ([]Transaction, error)
	// Balance is confirmed credits minus every debit, pending or not.
	Balance(ctx context.Context, profileID string) (int64, error)
}

// DisputeStore persists disputes.
type DisputeStore interface {
	Create(ctx context.Context, d Dispute) error
	GetByID(ctx context.Context, id string) (Dispute, error)
	GetByMatch(ctx context.Context, matchID string) (Dispute, error)
	// Resolve sets the winner only if none is set yet, returning
	// ErrIllegalTransition otherwise.
	Resolve(ctx context.Context, id string, winner Side, at time.Time) error
}

// RosterStore reads the profile, team and game records battles reference.
type RosterStore interface {
	GetProfile(ctx context.Context, id string) (Profile, error)
	GetProfileByWallet(ctx context.Context, wallet string) (Profile, error)
	GetTeam(ctx context.Context, id string) (Team, error)
	GetTeamProfile(ctx context.Context, id string) (TeamProfile, error)
	ListTeamProfiles(ctx context.Context, teamID string) ([]TeamProfile, error)
	GetGame(ctx context.Context, id string) (Game, error)
}

// NotificationStore persists the in-app notification inbox.
type NotificationStore interface {
	Create(ctx context.Context, n Notification) error
	ListForProfile(ctx context.Context, profileID string, opts ListOpts) ([]Notification, error)
	// DeleteBefore removes notifications created before the cutoff and
	// reports how many went.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
