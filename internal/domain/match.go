package domain

import (
	"fmt"
	"time"
)

// MatchStatusKind is the discriminator of MatchStatus.
type MatchStatusKind string

const (
	MatchAwaitingOpponent MatchStatusKind = "awaiting_opponent"
	MatchUnreported       MatchStatusKind = "unreported"
	MatchHomeVoted        MatchStatusKind = "home_voted"
	MatchAwayVoted        MatchStatusKind = "away_voted"
	MatchAgreed           MatchStatusKind = "agreed"
	MatchDisputed         MatchStatusKind = "disputed"
	MatchSettled          MatchStatusKind = "settled"
)

// MatchStatus is the score-reporting state of a match. The payload fields
// carry the data each kind needs: votes for the voted kinds, DisputeID for
// MatchDisputed and Result for MatchSettled.
type MatchStatus struct {
	Kind      MatchStatusKind
	HomeVote  Side
	AwayVote  Side
	DisputeID string
	Result    Side
}

// VoteOutcome is what a recorded vote did to the match.
type VoteOutcome int

const (
	VotePending VoteOutcome = iota
	VoteAgreed
	VoteDisagreed
)

// MatchMeta is the generated display metadata for a match: one map for
// attributes that apply to the whole battle and one per series game.
type MatchMeta struct {
	Single map[string]string   `json:"single"`
	Series []map[string]string `json:"series"`
}

// Match tracks votes, result and dispute for a battle.
type Match struct {
	ID          string
	BattleID    string
	HomeTeamID  string
	AwayTeamID  string
	Status      MatchStatus
	LastVoteAt  *time.Time
	CompletedAt *time.Time
	Meta        *MatchMeta
	Lifecycle   Lifecycle
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Result returns the settled winner, or SideNone.
func (m Match) Result() Side { return m.Status.Result }

// Vote returns the vote recorded for side.
func (m Match) Vote(side Side) Side {
	if side == SideHome {
		return m.Status.HomeVote
	}
	return m.Status.AwayVote
}

// TeamID returns the TeamSelection id of side.
func (m Match) TeamID(side Side) string {
	if side == SideHome {
		return m.HomeTeamID
	}
	return m.AwayTeamID
}

// VoteCount is the number of sides that have reported.
func (m Match) VoteCount() int {
	n := 0
	if m.Status.HomeVote != SideNone {
		n++
	}
	if m.Status.AwayVote != SideNone {
		n++
	}
	return n
}

// LoneVote returns the single recorded vote when exactly one side reported.
func (m Match) LoneVote() (Side, bool) {
	if m.VoteCount() != 1 {
		return SideNone, false
	}
	if m.Status.HomeVote != SideNone {
		return m.Status.HomeVote, true
	}
	return m.Status.AwayVote, true
}

func (m *Match) transitionError(op string) error {
	return fmt.Errorf("%w: %s match in %s", ErrIllegalTransition, op, m.Status.Kind)
}

// Fill sets the away roster. The away team is write-once.
func (m *Match) Fill(awayTeamID string) error {
	if m.Status.Kind != MatchAwaitingOpponent || m.AwayTeamID != "" {
		return m.transitionError("fill")
	}
	m.AwayTeamID = awayTeamID
	m.Status.Kind = MatchUnreported
	return nil
}

// RecordVote stores side's claim of the winner.
func (m *Match) RecordVote(side, winner Side, at time.Time) (VoteOutcome, error) {
	if !side.Valid() || !winner.Valid() {
		return VotePending, fmt.Errorf("%w: vote %s for %s", ErrInvalidInput, side, winner)
	}
	switch m.Status.Kind {
	case MatchUnreported:
	case MatchHomeVoted:
		if side == SideHome {
			return VotePending, m.transitionError("re-vote")
		}
	case MatchAwayVoted:
		if side == SideAway {
			return VotePending, m.transitionError("re-vote")
		}
	default:
		return VotePending, m.transitionError("vote")
	}

	if side == SideHome {
		m.Status.HomeVote = winner
	} else {
		m.Status.AwayVote = winner
	}
	m.LastVoteAt = &at

	switch {
	case m.Status.HomeVote == SideNone:
		m.Status.Kind = MatchAwayVoted
		return VotePending, nil
	case m.Status.AwayVote == SideNone:
		m.Status.Kind = MatchHomeVoted
		return VotePending, nil
	case m.Status.HomeVote == m.Status.AwayVote:
		m.Status.Kind = MatchAgreed
		return VoteAgreed, nil
	default:
		m.Status.Kind = MatchDisputed
		return VoteDisagreed, nil
	}
}

// MarkDisputed links a dispute. Allowed from any state short of settlement,
// including a disagreement that has no dispute record yet.
func (m *Match) MarkDisputed(disputeID string) error {
	switch m.Status.Kind {
	case MatchUnreported, MatchHomeVoted, MatchAwayVoted, MatchAgreed:
	case MatchDisputed:
		if m.Status.DisputeID != "" {
			return m.transitionError("re-dispute")
		}
	default:
		return m.transitionError("dispute")
	}
	m.Status.Kind = MatchDisputed
	m.Status.DisputeID = disputeID
	return nil
}

// Settle records the terminal result. Dispute resolution is checked by the
// caller; this only guards the state graph.
func (m *Match) Settle(winner Side, at time.Time) error {
	if !winner.Valid() {
		return fmt.Errorf("%w: winner %q", ErrInvalidInput, winner)
	}
	switch m.Status.Kind {
	case MatchUnreported, MatchHomeVoted, MatchAwayVoted, MatchAgreed, MatchDisputed:
	default:
		return m.transitionError("settle")
	}
	m.Status.Kind = MatchSettled
	m.Status.Result = winner
	m.CompletedAt = &at
	return nil
}

// Unsettle restores the status held before Settle. Only used to compensate a
// failed settlement.
func (m *Match) Unsettle(prev MatchStatus) error {
	if m.Status.Kind != MatchSettled || prev.Kind == MatchSettled {
		return m.transitionError("unsettle")
	}
	m.Status = prev
	m.CompletedAt = nil
	return nil
}
