// Package ledger implements battle escrow on top of the transaction store.
// Entries written here are reconciled against the escrow contract by a
// separate pipeline; nothing in this package waits for confirmation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/google/uuid"
)

// Compile-time interface check.
var _ domain.Ledger = (*EscrowLedger)(nil)

const (
	profileLockTTL  = 10 * time.Second
	profileLockWait = 2 * time.Second
)

// EscrowLedger holds and pays out battle stakes.
type EscrowLedger struct {
	txs    domain.TransactionStore
	locks  domain.LockManager
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewEscrowLedger creates an EscrowLedger. When locks is non-nil, holds for
// the same profile are serialised so two battles cannot spend one balance.
func NewEscrowLedger(txs domain.TransactionStore, locks domain.LockManager, logger *slog.Logger) *EscrowLedger {
	return &EscrowLedger{
		txs:    txs,
		locks:  locks,
		logger: logger.With(slog.String("component", "escrow_ledger")),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Balance is confirmed credits minus every debit, confirmed or not.
func (l *EscrowLedger) Balance(ctx context.Context, profileID string) (int64, error) {
	b, err := l.txs.Balance(ctx, profileID)
	if err != nil {
		return 0, fmt.Errorf("ledger: balance %s: %w", profileID, err)
	}
	return b, nil
}

// Hold escrows amount for a battle. It fails with ErrInsufficientFunds when
// the balance does not cover it.
func (l *EscrowLedger) Hold(ctx context.Context, profileID, battleID string, amount int64) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("ledger: hold: %w: amount %d", domain.ErrInvalidInput, amount)
	}
	unlock, err := l.lockProfile(ctx, profileID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("ledger: hold for %s: %w", profileID, err)
	}
	defer unlock()

	balance, err := l.Balance(ctx, profileID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if balance < amount {
		return domain.Transaction{}, fmt.Errorf("ledger: hold for %s: %w: balance %d, need %d",
			profileID, domain.ErrInsufficientFunds, balance, amount)
	}
	return l.write(ctx, profileID, battleID, domain.TxOut, amount)
}

// lockProfile waits briefly for the profile's balance lock.
func (l *EscrowLedger) lockProfile(ctx context.Context, profileID string) (func(), error) {
	if l.locks == nil {
		return func() {}, nil
	}
	deadline := time.Now().Add(profileLockWait)
	for {
		unlock, err := l.locks.Acquire(ctx, "ledger:profile:"+profileID, profileLockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) || time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Credit pays amount into a profile's balance for a battle.
func (l *EscrowLedger) Credit(ctx context.Context, profileID, battleID string, amount int64) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, fmt.Errorf("ledger: credit: %w: amount %d", domain.ErrInvalidInput, amount)
	}
	return l.write(ctx, profileID, battleID, domain.TxIn, amount)
}

func (l *EscrowLedger) write(ctx context.Context, profileID, battleID string, typ domain.TransactionType, amount int64) (domain.Transaction, error) {
	tx := domain.Transaction{
		ID:        l.newID(),
		ProfileID: profileID,
		BattleID:  battleID,
		Type:      typ,
		Amount:    amount,
		Confirmed: true,
		CreatedAt: l.now(),
	}
	if err := l.txs.Create(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("ledger: write %s for %s: %w", typ, profileID, err)
	}
	l.logger.DebugContext(ctx, "ledger: entry written",
		slog.String("tx_id", tx.ID),
		slog.String("type", string(typ)),
		slog.String("profile_id", profileID),
		slog.String("battle_id", battleID),
		slog.Int64("amount", amount),
	)
	return tx, nil
}

// Void removes a battle entry. Deposits and withdrawals are never voided.
// Voiding an entry that is already gone is not an error.
func (l *EscrowLedger) Void(ctx context.Context, tx domain.Transaction) error {
	if tx.Type == domain.TxDeposit || tx.Type == domain.TxWithdraw || tx.BattleID == "" {
		return fmt.Errorf("ledger: void %s: %w: %s entries are not battle escrow", tx.ID, domain.ErrInvalidInput, tx.Type)
	}
	err := l.txs.Delete(ctx, tx.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: void %s: %w", tx.ID, err)
	}
	return nil
}

// Restore re-creates a voided entry with its original id.
func (l *EscrowLedger) Restore(ctx context.Context, tx domain.Transaction) error {
	err := l.txs.Create(ctx, tx)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ledger: restore %s: %w", tx.ID, err)
	}
	return nil
}

// ListForBattle returns every entry tied to a battle.
func (l *EscrowLedger) ListForBattle(ctx context.Context, battleID string) ([]domain.Transaction, error) {
	txs, err := l.txs.ListByBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list for battle %s: %w", battleID, err)
	}
	return txs, nil
}
