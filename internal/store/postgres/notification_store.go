package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// NotificationStore implements domain.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *pgxpool.Pool
}

var _ domain.NotificationStore = (*NotificationStore)(nil)

// NewNotificationStore creates a new NotificationStore backed by the given connection pool.
func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Create appends a notification to a profile's inbox.
func (s *NotificationStore) Create(ctx context.Context, n domain.Notification) error {
	q := psql.Insert("notifications").
		Columns("id", "profile_id", "kind", "title", "message", "battle_id", "read", "created_at").
		Values(n.ID, n.ProfileID, string(n.Kind), n.Title, n.Message, n.BattleID, n.Read, n.CreatedAt)

	if _, err := qExec(ctx, s.pool, q); err != nil {
		return fmt.Errorf("postgres: create notification %s: %w", n.ID, err)
	}
	return nil
}

// ListForProfile returns a profile's inbox, newest first.
func (s *NotificationStore) ListForProfile(ctx context.Context, profileID string, opts domain.ListOpts) ([]domain.Notification, error) {
	q := psql.Select("id", "profile_id", "kind", "title", "message", "battle_id", "read", "created_at").
		From("notifications").
		Where("profile_id = ?", profileID).
		OrderBy("created_at DESC", "id DESC")
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}

	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list notifications %s: %w", profileID, err)
	}
	out, err := scanAll(rows, func(row rowScanner) (domain.Notification, error) {
		var (
			n    domain.Notification
			kind string
		)
		err := row.Scan(&n.ID, &n.ProfileID, &kind, &n.Title, &n.Message, &n.BattleID, &n.Read, &n.CreatedAt)
		n.Kind = domain.NotificationKind(kind)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan notifications %s: %w", profileID, err)
	}
	return out, nil
}

// DeleteBefore removes inbox rows older than the cutoff.
func (s *NotificationStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	q := psql.Delete("notifications").Where(sq.Lt{"created_at": before})
	tag, err := qExec(ctx, s.pool, q)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete notifications before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
