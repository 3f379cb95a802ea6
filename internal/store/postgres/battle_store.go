package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// BattleStore implements domain.BattleStore using PostgreSQL.
type BattleStore struct {
	pool *pgxpool.Pool
}

var _ domain.BattleStore = (*BattleStore)(nil)

// NewBattleStore creates a new BattleStore backed by the given connection pool.
func NewBattleStore(pool *pgxpool.Pool) *BattleStore {
	return &BattleStore{pool: pool}
}

const battleSelectCols = `id, scheduled_at, pot_amount, lifecycle, status_kind,
	cancellation_requested_by, invited_team_id, options, created_by,
	created_at, updated_at`

// Create inserts a new battle.
func (s *BattleStore) Create(ctx context.Context, b domain.Battle) error {
	opts, err := json.Marshal(b.Options)
	if err != nil {
		return fmt.Errorf("postgres: encode battle options %s: %w", b.ID, err)
	}

	const query = `
		INSERT INTO battles (
			id, scheduled_at, pot_amount, lifecycle, status_kind,
			cancellation_requested_by, invited_team_id, game_id, options,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	_, err = s.pool.Exec(ctx, query,
		b.ID, b.ScheduledAt, b.PotAmount, string(lifecycleOrActive(b.Lifecycle)),
		string(b.Status.Kind), string(b.Status.CancellationRequestedBy),
		b.InvitedTeamID, b.Options.GameID, opts, b.CreatedBy, b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create battle %s: %w", b.ID, err)
	}
	return nil
}

// GetByID returns a battle that has not been deleted.
func (s *BattleStore) GetByID(ctx context.Context, id string) (domain.Battle, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+battleSelectCols+` FROM battles WHERE id = $1 AND lifecycle <> 'deleted'`, id)

	b, err := scanBattle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Battle{}, domain.ErrNotFound
		}
		return domain.Battle{}, fmt.Errorf("postgres: get battle %s: %w", id, err)
	}
	return b, nil
}

// Update overwrites the mutable battle columns.
func (s *BattleStore) Update(ctx context.Context, b domain.Battle) error {
	opts, err := json.Marshal(b.Options)
	if err != nil {
		return fmt.Errorf("postgres: encode battle options %s: %w", b.ID, err)
	}

	const query = `
		UPDATE battles SET
			scheduled_at = $2, pot_amount = $3, lifecycle = $4, status_kind = $5,
			cancellation_requested_by = $6, invited_team_id = $7, options = $8,
			updated_at = NOW()
		WHERE id = $1 AND lifecycle <> 'deleted'`

	tag, err := s.pool.Exec(ctx, query,
		b.ID, b.ScheduledAt, b.PotAmount, string(lifecycleOrActive(b.Lifecycle)),
		string(b.Status.Kind), string(b.Status.CancellationRequestedBy),
		b.InvitedTeamID, opts,
	)
	if err != nil {
		return fmt.Errorf("postgres: update battle %s: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete soft-deletes a battle.
func (s *BattleStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE battles SET lifecycle = 'deleted', updated_at = NOW() WHERE id = $1 AND lifecycle <> 'deleted'`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete battle %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpiredOpen returns active battles still awaiting an opponent whose
// scheduled start is before now.
func (s *BattleStore) ListExpiredOpen(ctx context.Context, now time.Time, limit int) ([]domain.Battle, error) {
	q := psql.Select(battleSelectCols).
		From("battles").
		Where(sq.Eq{"lifecycle": string(domain.LifecycleActive), "status_kind": string(domain.BattleAwaitingOpponent)}).
		Where(sq.Lt{"scheduled_at": now}).
		OrderBy("scheduled_at ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired battles: %w", err)
	}
	battles, err := scanAll(rows, scanBattle)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expired battles: %w", err)
	}
	return battles, nil
}

func scanBattle(row rowScanner) (domain.Battle, error) {
	var (
		b                          domain.Battle
		lifecycle, kind, requester string
		opts                       []byte
	)
	err := row.Scan(
		&b.ID, &b.ScheduledAt, &b.PotAmount, &lifecycle, &kind,
		&requester, &b.InvitedTeamID, &opts, &b.CreatedBy,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Battle{}, err
	}
	if err := json.Unmarshal(opts, &b.Options); err != nil {
		return domain.Battle{}, fmt.Errorf("decode battle options %s: %w", b.ID, err)
	}
	b.Lifecycle = domain.Lifecycle(lifecycle)
	b.Status = domain.BattleStatus{
		Kind:                    domain.BattleStatusKind(kind),
		CancellationRequestedBy: domain.Side(requester),
	}
	return b, nil
}

func lifecycleOrActive(l domain.Lifecycle) domain.Lifecycle {
	if l == "" {
		return domain.LifecycleActive
	}
	return l
}
