package domain

import "time"

// NotificationKind tags an in-app notification.
type NotificationKind string

const (
	NotifyBattleInviteReceived  NotificationKind = "battle_invite_received"
	NotifyInviteDeclined        NotificationKind = "invite_declined"
	NotifyEnrolledInBattle      NotificationKind = "enrolled_in_battle"
	NotifyBattleConfirmed       NotificationKind = "battle_confirmed"
	NotifyCancellationRequested NotificationKind = "cancellation_requested"
	NotifyCancellationWithdrawn NotificationKind = "cancellation_withdrawn"
	NotifyBattleCancelled       NotificationKind = "battle_cancelled"
	NotifyBattleExpired         NotificationKind = "battle_expired"
	NotifyDisputeOpened         NotificationKind = "dispute_opened"
	NotifyBattleCompleted       NotificationKind = "battle_completed"
)

// Notification is a message addressed to one profile.
type Notification struct {
	ID        string
	ProfileID string
	Kind      NotificationKind
	Title     string
	Message   string
	BattleID  string
	Read      bool
	CreatedAt time.Time
}
