package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/google/uuid"
)

// Stores groups the record stores the battle services share.
type Stores struct {
	Battles    domain.BattleStore
	Matches    domain.MatchStore
	Selections domain.SelectionStore
	Disputes   domain.DisputeStore
	Roster     domain.RosterStore
}

// effects delivers the fire-and-forget side effects of battle operations.
// Nothing here may fail the calling operation.
type effects struct {
	notifier domain.Notifier
	bus      domain.EventBus
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func newEffects(notifier domain.Notifier, bus domain.EventBus, logger *slog.Logger) effects {
	return effects{
		notifier: notifier,
		bus:      bus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (e effects) notify(ctx context.Context, ns ...domain.Notification) {
	if e.notifier == nil {
		return
	}
	for _, n := range ns {
		if n.ID == "" {
			n.ID = e.newID()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = e.now()
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.WarnContext(ctx, "notification failed",
				slog.String("kind", string(n.Kind)),
				slog.String("profile_id", n.ProfileID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e effects) publish(ctx context.Context, eventType, battleID, matchID string, side domain.Side) {
	if e.bus == nil {
		return
	}
	payload, _ := json.Marshal(domain.BattleEvent{
		Type:     eventType,
		BattleID: battleID,
		MatchID:  matchID,
		Side:     side,
		At:       e.now(),
	})
	if err := e.bus.Publish(ctx, domain.BattleEventsChannel, payload); err != nil {
		e.logger.WarnContext(ctx, "publish battle event failed",
			slog.String("event", eventType),
			slog.String("battle_id", battleID),
			slog.String("error", err.Error()),
		)
	}
}

// loadMembers lists the members of a side's selection.
func loadMembers(ctx context.Context, selections domain.SelectionStore, selectionID string) ([]domain.TeamSelectionProfile, error) {
	if selectionID == "" {
		return nil, nil
	}
	members, err := selections.ListMembers(ctx, selectionID)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", selectionID, err)
	}
	return members, nil
}

func captainOf(members []domain.TeamSelectionProfile) (domain.TeamSelectionProfile, bool) {
	for _, m := range members {
		if m.IsCaptain {
			return m, true
		}
	}
	return domain.TeamSelectionProfile{}, false
}

// sideCaptains returns the captain profile id of each formed side.
func sideCaptains(ctx context.Context, selections domain.SelectionStore, m domain.Match) (map[domain.Side]string, error) {
	out := make(map[domain.Side]string, 2)
	for _, side := range []domain.Side{domain.SideHome, domain.SideAway} {
		members, err := loadMembers(ctx, selections, m.TeamID(side))
		if err != nil {
			return nil, err
		}
		if c, ok := captainOf(members); ok {
			out[side] = c.ProfileID
		}
	}
	return out, nil
}

// callerSide returns the side whose captain is profileID.
func callerSide(captains map[domain.Side]string, profileID string) domain.Side {
	for side, id := range captains {
		if id == profileID {
			return side
		}
	}
	return domain.SideNone
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
