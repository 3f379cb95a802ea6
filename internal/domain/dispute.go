package domain

import (
	"fmt"
	"time"
)

// Dispute routes a disagreeing match to external arbitration.
type Dispute struct {
	ID             string
	MatchID        string
	ResolvedWinner Side
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// Resolved reports whether arbitration has picked a winner.
func (d Dispute) Resolved() bool { return d.ResolvedWinner != SideNone }

// Resolve writes the arbitrated winner. It is write-once.
func (d *Dispute) Resolve(winner Side, at time.Time) error {
	if !winner.Valid() {
		return fmt.Errorf("%w: winner %q", ErrInvalidInput, winner)
	}
	if d.Resolved() {
		return fmt.Errorf("%w: dispute %s already resolved to %s", ErrIllegalTransition, d.ID, d.ResolvedWinner)
	}
	d.ResolvedWinner = winner
	d.ResolvedAt = &at
	return nil
}
