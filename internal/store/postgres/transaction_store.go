package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

var _ domain.TransactionStore = (*TransactionStore)(nil)

// NewTransactionStore creates a new TransactionStore backed by the given connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const txSelectCols = `id, profile_id, battle_id, type, amount, confirmed, created_at`

// Create inserts a ledger entry. Re-inserting an existing id returns
// domain.ErrAlreadyExists.
func (s *TransactionStore) Create(ctx context.Context, tx domain.Transaction) error {
	const query = `
		INSERT INTO transactions (id, profile_id, battle_id, type, amount, confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		tx.ID, tx.ProfileID, nullable(tx.BattleID), string(tx.Type),
		tx.Amount, tx.Confirmed, tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create transaction %s: %w", tx.ID, err)
	}
	return nil
}

// GetByID retrieves a ledger entry.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txSelectCols+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return tx, nil
}

// Delete removes a ledger entry.
func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByBattle returns every entry tied to a battle, oldest first.
func (s *TransactionStore) ListByBattle(ctx context.Context, battleID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM transactions WHERE battle_id = $1 ORDER BY created_at, id`, battleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for battle %s: %w", battleID, err)
	}
	txs, err := scanAll(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions for battle %s: %w", battleID, err)
	}
	return txs, nil
}

// Balance is confirmed deposits and credits minus every withdrawal and
// escrow hold, confirmed or pending.
func (s *TransactionStore) Balance(ctx context.Context, profileID string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(
			CASE
				WHEN type IN ('deposit', 'in') AND confirmed THEN amount
				WHEN type IN ('withdraw', 'out') THEN -amount
				ELSE 0
			END
		), 0)
		FROM transactions
		WHERE profile_id = $1`

	var balance int64
	if err := s.pool.QueryRow(ctx, query, profileID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("postgres: balance %s: %w", profileID, err)
	}
	return balance, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx       domain.Transaction
		battleID *string
		typ      string
	)
	if err := row.Scan(&tx.ID, &tx.ProfileID, &battleID, &typ, &tx.Amount, &tx.Confirmed, &tx.CreatedAt); err != nil {
		return domain.Transaction{}, err
	}
	tx.BattleID = deref(battleID)
	tx.Type = domain.TransactionType(typ)
	return tx, nil
}
