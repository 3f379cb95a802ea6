package domain

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxDeposit  TransactionType = "deposit"
	TxWithdraw TransactionType = "withdraw"
	TxIn       TransactionType = "in"
	TxOut      TransactionType = "out"
)

// Debit reports whether the entry reduces the holder's balance.
func (t TransactionType) Debit() bool { return t == TxWithdraw || t == TxOut }

// Transaction is an escrow ledger entry. BattleID is empty for deposits and
// withdrawals.
type Transaction struct {
	ID        string          `json:"id"`
	ProfileID string          `json:"profile_id"`
	BattleID  string          `json:"battle_id,omitempty"`
	Type      TransactionType `json:"type"`
	Amount    int64           `json:"amount"`
	Confirmed bool            `json:"confirmed"`
	CreatedAt time.Time       `json:"created_at"`
}
