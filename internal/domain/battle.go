package domain

import (
	"fmt"
	"time"
)

// Side identifies one half of a battle.
type Side string

const (
	SideNone Side = ""
	SideHome Side = "home"
	SideAway Side = "away"
)

// Valid reports whether s names a concrete side.
func (s Side) Valid() bool {
	return s == SideHome || s == SideAway
}

// Opposite returns the other side. SideNone maps to itself.
func (s Side) Opposite() Side {
	switch s {
	case SideHome:
		return SideAway
	case SideAway:
		return SideHome
	}
	return SideNone
}

// ParseSide converts a wire value into a Side, rejecting anything other than
// "home" or "away".
func ParseSide(v string) (Side, error) {
	s := Side(v)
	if !s.Valid() {
		return SideNone, fmt.Errorf("%w: side %q", ErrInvalidInput, v)
	}
	return s, nil
}

// Lifecycle is the record-level existence state shared by battles and matches.
// Stores never return Deleted records.
type Lifecycle string

const (
	LifecycleActive    Lifecycle = "active"
	LifecycleCancelled Lifecycle = "cancelled"
	LifecycleDeleted   Lifecycle = "deleted"
)

// Region is the server region a battle is played in.
type Region string

const (
	RegionEurope       Region = "eu"
	RegionNorthAmerica Region = "na"
	RegionSouthAmerica Region = "sa"
	RegionOceania      Region = "oce"
	RegionAsia         Region = "asia"
	RegionMiddleEast   Region = "me"
	RegionAfrica       Region = "af"
)

var validRegions = map[Region]bool{
	RegionEurope:       true,
	RegionNorthAmerica: true,
	RegionSouthAmerica: true,
	RegionOceania:      true,
	RegionAsia:         true,
	RegionMiddleEast:   true,
	RegionAfrica:       true,
}

// Valid reports whether r is a known region.
func (r Region) Valid() bool { return validRegions[r] }

// ValidSeries enumerates the allowed best-of lengths.
var ValidSeries = map[int]bool{1: true, 3: true, 5: true}

// AttributeSelection is the captain's input for one custom game attribute.
// List is set when the input was given as a list, which multi-select
// attributes require.
type AttributeSelection struct {
	AttributeID string   `json:"attribute_id"`
	Values      []string `json:"values"`
	List        bool     `json:"list"`
}

// MatchOptions are the rules both teams agree to by joining.
type MatchOptions struct {
	GameID           string               `json:"game_id"`
	TeamSize         int                  `json:"team_size"`
	Series           int                  `json:"series"`
	Region           Region               `json:"region"`
	CustomAttributes []AttributeSelection `json:"custom_attributes"`
}

// BattleStatusKind is the discriminator of BattleStatus.
type BattleStatusKind string

const (
	BattleAwaitingOpponent BattleStatusKind = "awaiting_opponent"
	BattleReady            BattleStatusKind = "ready"
)

// BattleStatus is the roster and cancellation-handshake state of a battle.
// CancellationRequestedBy is only meaningful for BattleReady.
type BattleStatus struct {
	Kind                    BattleStatusKind
	CancellationRequestedBy Side
}

// Battle is a wagered challenge between two team rosters.
type Battle struct {
	ID            string
	ScheduledAt   time.Time
	PotAmount     int64
	Lifecycle     Lifecycle
	Status        BattleStatus
	InvitedTeamID string
	Options       MatchOptions
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PotFor computes the total escrow for a battle.
func PotFor(wagerPerPerson int64, teamSize int) int64 {
	return wagerPerPerson * int64(teamSize) * 2
}

// WagerPerPerson is the amount escrowed by each roster member.
func (b Battle) WagerPerPerson() int64 {
	if b.Options.TeamSize <= 0 {
		return 0
	}
	return b.PotAmount / 2 / int64(b.Options.TeamSize)
}

// Cancelled reports whether the battle has been called off.
func (b Battle) Cancelled() bool { return b.Lifecycle == LifecycleCancelled }

// Expired reports whether the scheduled start passed before an opponent joined.
func (b Battle) Expired(now time.Time) bool { return b.ScheduledAt.Before(now) }

// Started reports whether play may have begun.
func (b Battle) Started(now time.Time) bool { return !now.Before(b.ScheduledAt) }

// Join moves the battle from awaiting an opponent to ready.
func (b *Battle) Join() error {
	if b.Lifecycle != LifecycleActive || b.Status.Kind != BattleAwaitingOpponent {
		return fmt.Errorf("%w: join battle in %s/%s", ErrIllegalTransition, b.Lifecycle, b.Status.Kind)
	}
	b.Status = BattleStatus{Kind: BattleReady}
	return nil
}

// RequestCancellation stamps side as the requester. It reports false when the
// same side already has a pending request.
func (b *Battle) RequestCancellation(side Side) (bool, error) {
	if b.Lifecycle != LifecycleActive || b.Status.Kind != BattleReady || !side.Valid() {
		return false, fmt.Errorf("%w: request cancellation in %s/%s", ErrIllegalTransition, b.Lifecycle, b.Status.Kind)
	}
	if b.Status.CancellationRequestedBy == side {
		return false, nil
	}
	if b.Status.CancellationRequestedBy != SideNone {
		return false, fmt.Errorf("%w: cancellation already requested by %s", ErrIllegalTransition, b.Status.CancellationRequestedBy)
	}
	b.Status.CancellationRequestedBy = side
	return true, nil
}

// WithdrawCancellation clears a pending request made by side.
func (b *Battle) WithdrawCancellation(side Side) error {
	if b.Lifecycle != LifecycleActive || b.Status.Kind != BattleReady {
		return fmt.Errorf("%w: withdraw cancellation in %s/%s", ErrIllegalTransition, b.Lifecycle, b.Status.Kind)
	}
	if b.Status.CancellationRequestedBy != side {
		return fmt.Errorf("%w: no cancellation request from %s", ErrIllegalTransition, side)
	}
	b.Status.CancellationRequestedBy = SideNone
	return nil
}

// Cancel moves an active battle to the cancelled lifecycle. A settled match
// must be ruled out by the caller.
func (b *Battle) Cancel() error {
	if b.Lifecycle != LifecycleActive {
		return fmt.Errorf("%w: cancel battle in %s", ErrIllegalTransition, b.Lifecycle)
	}
	b.Lifecycle = LifecycleCancelled
	return nil
}

// Uncancel reverts Cancel during compensation.
func (b *Battle) Uncancel() error {
	if b.Lifecycle != LifecycleCancelled {
		return fmt.Errorf("%w: uncancel battle in %s", ErrIllegalTransition, b.Lifecycle)
	}
	b.Lifecycle = LifecycleActive
	return nil
}
