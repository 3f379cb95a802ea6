package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// DisputeStore implements domain.DisputeStore using PostgreSQL.
type DisputeStore struct {
	pool *pgxpool.Pool
}

var _ domain.DisputeStore = (*DisputeStore)(nil)

// NewDisputeStore creates a new DisputeStore backed by the given connection pool.
func NewDisputeStore(pool *pgxpool.Pool) *DisputeStore {
	return &DisputeStore{pool: pool}
}

const disputeSelectCols = `id, match_id, resolved_winner, created_at, resolved_at`

// Create inserts a dispute. A match carries at most one.
func (s *DisputeStore) Create(ctx context.Context, d domain.Dispute) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO disputes (id, match_id, resolved_winner, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.MatchID, string(d.ResolvedWinner), d.CreatedAt, d.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create dispute %s: %w", d.ID, err)
	}
	return nil
}

// GetByID retrieves a dispute.
func (s *DisputeStore) GetByID(ctx context.Context, id string) (domain.Dispute, error) {
	return s.getOne(ctx, `id = $1`, id)
}

// GetByMatch retrieves the dispute raised on a match.
func (s *DisputeStore) GetByMatch(ctx context.Context, matchID string) (domain.Dispute, error) {
	return s.getOne(ctx, `match_id = $1`, matchID)
}

func (s *DisputeStore) getOne(ctx context.Context, where, arg string) (domain.Dispute, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+disputeSelectCols+` FROM disputes WHERE `+where, arg)

	var (
		d      domain.Dispute
		winner string
	)
	if err := row.Scan(&d.ID, &d.MatchID, &winner, &d.CreatedAt, &d.ResolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dispute{}, domain.ErrNotFound
		}
		return domain.Dispute{}, fmt.Errorf("postgres: get dispute %s: %w", arg, err)
	}
	d.ResolvedWinner = domain.Side(winner)
	return d, nil
}

// Resolve records the arbitrated winner once. Losing the race to another
// resolver yields domain.ErrIllegalTransition.
func (s *DisputeStore) Resolve(ctx context.Context, id string, winner domain.Side, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE disputes SET resolved_winner = $2, resolved_at = $3
		 WHERE id = $1 AND resolved_winner = ''`,
		id, string(winner), at,
	)
	if err != nil {
		return fmt.Errorf("postgres: resolve dispute %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: dispute %s already resolved", domain.ErrIllegalTransition, id)
}
