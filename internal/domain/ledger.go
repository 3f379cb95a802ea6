package domain

import "context"

// Ledger is the escrow collaborator. Entries it writes are picked up by the
// on-chain reconciliation pipeline; callers never wait for confirmation.
type Ledger interface {
	Balance(ctx context.Context, profileID string) (int64, error)
	// Hold escrows amount from profileID for a battle as a confirmed out entry.
	Hold(ctx context.Context, profileID, battleID string, amount int64) (Transaction, error)
	// Credit pays amount to profileID for a battle as a confirmed in entry.
	Credit(ctx context.Context, profileID, battleID string, amount int64) (Transaction, error)
	// Void removes a battle entry. Deposits and withdrawals cannot be voided.
	Void(ctx context.Context, tx Transaction) error
	// Restore re-creates a voided entry with its original id.
	Restore(ctx context.Context, tx Transaction) error
	ListForBattle(ctx context.Context, battleID string) ([]Transaction, error)
}

// Notifier delivers notifications. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SettlementArchive stores immutable settlement receipts.
type SettlementArchive interface {
	Put(ctx context.Context, r SettlementReceipt) error
}
