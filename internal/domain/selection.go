package domain

import "time"

// Outcome holds the settlement outputs written once per roster and member.
// All fields stay nil until the match settles.
type Outcome struct {
	Earnings    *int64
	RatingDelta *int64
	DidWin      *bool
}

// Settled reports whether settlement has written this outcome.
func (o Outcome) Settled() bool { return o.DidWin != nil }

// NewOutcome builds a populated Outcome.
func NewOutcome(earnings, ratingDelta int64, didWin bool) Outcome {
	return Outcome{Earnings: &earnings, RatingDelta: &ratingDelta, DidWin: &didWin}
}

// TeamSelection is one side's fielded roster for a match.
type TeamSelection struct {
	ID        string
	MatchID   string
	TeamID    string
	Side      Side
	Outcome   Outcome
	CreatedAt time.Time
}

// TeamSelectionProfile is one roster member's participation record.
type TeamSelectionProfile struct {
	ID            string
	SelectionID   string
	TeamProfileID string
	ProfileID     string
	IsCaptain     bool
	Outcome       Outcome
	CreatedAt     time.Time
}
