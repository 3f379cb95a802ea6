package domain

import "time"

// MemberSettlement is one roster member's settlement line.
type MemberSettlement struct {
	MemberID    string `json:"member_id"`
	ProfileID   string `json:"profile_id"`
	Side        Side   `json:"side"`
	Rating      int64  `json:"rating"`
	RatingDelta int64  `json:"rating_delta"`
	Earnings    int64  `json:"earnings"`
	Won         bool   `json:"won"`
}

// TeamSettlement is one roster's settlement line.
type TeamSettlement struct {
	SelectionID string `json:"selection_id"`
	TeamID      string `json:"team_id"`
	Side        Side   `json:"side"`
	RatingDelta int64  `json:"rating_delta"`
	Earnings    int64  `json:"earnings"`
	Won         bool   `json:"won"`
}

// SettlementReceipt records everything a settlement computed and wrote.
type SettlementReceipt struct {
	BattleID  string             `json:"battle_id"`
	MatchID   string             `json:"match_id"`
	GameID    string             `json:"game_id"`
	Winner    Side               `json:"winner"`
	Pot       int64              `json:"pot"`
	Fee       int64              `json:"fee"`
	Members   []MemberSettlement `json:"members"`
	Teams     []TeamSettlement   `json:"teams"`
	Payouts   []Transaction      `json:"payouts"`
	SettledAt time.Time          `json:"settled_at"`
}

// BattleEvent is published on the event bus when a battle changes.
type BattleEvent struct {
	Type     string    `json:"type"`
	BattleID string    `json:"battle_id"`
	MatchID  string    `json:"match_id,omitempty"`
	Side     Side      `json:"side,omitempty"`
	At       time.Time `json:"at"`
}

// BattleEventsChannel is the bus channel battle events are published on.
const BattleEventsChannel = "battle:events"
