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

// MatchStore implements domain.MatchStore using PostgreSQL.
type MatchStore struct {
	pool *pgxpool.Pool
}

var _ domain.MatchStore = (*MatchStore)(nil)

// NewMatchStore creates a new MatchStore backed by the given connection pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchSelectCols = `id, battle_id, home_team_id, away_team_id, status_kind,
	home_vote, away_vote, dispute_id, result, last_vote_at, completed_at,
	meta, lifecycle, created_at, updated_at`

// visibleMatches filters out soft-deleted rows.
var visibleMatches = sq.NotEq{"lifecycle": string(domain.LifecycleDeleted)}

// liveBattle keeps matches whose battle is still active. Sweeps use it so
// cancelled battles never occupy a batch.
var liveBattle = sq.Expr("battle_id IN (SELECT id FROM battles WHERE lifecycle = ?)", string(domain.LifecycleActive))

// ruledDispute keeps matches whose dispute already has a winner.
var ruledDispute = sq.Expr("dispute_id IN (SELECT id FROM disputes WHERE resolved_winner <> '')")

// Create inserts a new match.
func (s *MatchStore) Create(ctx context.Context, m domain.Match) error {
	meta, err := encodeMeta(m.Meta)
	if err != nil {
		return fmt.Errorf("postgres: encode match meta %s: %w", m.ID, err)
	}

	q := psql.Insert("matches").
		Columns("id", "battle_id", "home_team_id", "away_team_id", "status_kind",
			"home_vote", "away_vote", "dispute_id", "result", "last_vote_at",
			"completed_at", "meta", "lifecycle", "created_at", "updated_at").
		Values(m.ID, m.BattleID, m.HomeTeamID, m.AwayTeamID, string(m.Status.Kind),
			string(m.Status.HomeVote), string(m.Status.AwayVote), m.Status.DisputeID,
			string(m.Status.Result), m.LastVoteAt, m.CompletedAt, meta,
			string(lifecycleOrActive(m.Lifecycle)), m.CreatedAt, m.CreatedAt)

	if _, err := qExec(ctx, s.pool, q); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create match %s: %w", m.ID, err)
	}
	return nil
}

// GetByID returns a match that has not been deleted.
func (s *MatchStore) GetByID(ctx context.Context, id string) (domain.Match, error) {
	return s.getOne(ctx, sq.Eq{"id": id}, "match "+id)
}

// GetByBattle returns the live match of a battle.
func (s *MatchStore) GetByBattle(ctx context.Context, battleID string) (domain.Match, error) {
	return s.getOne(ctx, sq.Eq{"battle_id": battleID}, "match for battle "+battleID)
}

func (s *MatchStore) getOne(ctx context.Context, where sq.Eq, what string) (domain.Match, error) {
	sql, args, err := psql.Select(matchSelectCols).From("matches").
		Where(where).Where(visibleMatches).ToSql()
	if err != nil {
		return domain.Match{}, fmt.Errorf("postgres: build get %s: %w", what, err)
	}
	m, err := scanMatch(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, fmt.Errorf("postgres: get %s: %w", what, err)
	}
	return m, nil
}

// Update overwrites the mutable match columns.
func (s *MatchStore) Update(ctx context.Context, m domain.Match) error {
	meta, err := encodeMeta(m.Meta)
	if err != nil {
		return fmt.Errorf("postgres: encode match meta %s: %w", m.ID, err)
	}

	q := psql.Update("matches").
		Set("home_team_id", m.HomeTeamID).
		Set("away_team_id", m.AwayTeamID).
		Set("status_kind", string(m.Status.Kind)).
		Set("home_vote", string(m.Status.HomeVote)).
		Set("away_vote", string(m.Status.AwayVote)).
		Set("dispute_id", m.Status.DisputeID).
		Set("result", string(m.Status.Result)).
		Set("last_vote_at", m.LastVoteAt).
		Set("completed_at", m.CompletedAt).
		Set("meta", meta).
		Set("lifecycle", string(lifecycleOrActive(m.Lifecycle))).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": m.ID}).
		Where(visibleMatches)

	tag, err := qExec(ctx, s.pool, q)
	if err != nil {
		return fmt.Errorf("postgres: update match %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete soft-deletes a match.
func (s *MatchStore) Delete(ctx context.Context, id string) error {
	q := psql.Update("matches").
		Set("lifecycle", string(domain.LifecycleDeleted)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Where(visibleMatches)

	tag, err := qExec(ctx, s.pool, q)
	if err != nil {
		return fmt.Errorf("postgres: delete match %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListStaleVotes returns undisputed matches of active battles with a lone or
// agreed vote last cast before the cutoff.
func (s *MatchStore) ListStaleVotes(ctx context.Context, before time.Time, limit int) ([]domain.Match, error) {
	q := psql.Select(matchSelectCols).From("matches").
		Where(visibleMatches).
		Where(liveBattle).
		Where(sq.Eq{
			"dispute_id": "",
			"status_kind": []string{
				string(domain.MatchHomeVoted),
				string(domain.MatchAwayVoted),
				string(domain.MatchAgreed),
			},
		}).
		Where(sq.Lt{"last_vote_at": before}).
		OrderBy("last_vote_at ASC")
	return s.list(ctx, q, limit, "stale votes")
}

// ListDisputed returns unsettled matches of active battles whose dispute has
// been ruled on.
func (s *MatchStore) ListDisputed(ctx context.Context, limit int) ([]domain.Match, error) {
	q := psql.Select(matchSelectCols).From("matches").
		Where(visibleMatches).
		Where(liveBattle).
		Where(sq.Eq{"status_kind": string(domain.MatchDisputed)}).
		Where(ruledDispute).
		OrderBy("updated_at ASC")
	return s.list(ctx, q, limit, "disputed matches")
}

// ListSettled pages through settled matches in completion order.
func (s *MatchStore) ListSettled(ctx context.Context, opts domain.ListOpts) ([]domain.Match, error) {
	q := psql.Select(matchSelectCols).From("matches").
		Where(visibleMatches).
		Where(sq.Eq{"status_kind": string(domain.MatchSettled)}).
		OrderBy("completed_at ASC", "id ASC")
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}
	return s.list(ctx, q, opts.Limit, "settled matches")
}

func (s *MatchStore) list(ctx context.Context, q sq.SelectBuilder, limit int, what string) ([]domain.Match, error) {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", what, err)
	}
	matches, err := scanAll(rows, scanMatch)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan %s: %w", what, err)
	}
	return matches, nil
}

func scanMatch(row rowScanner) (domain.Match, error) {
	var (
		m                                    domain.Match
		kind, homeVote, awayVote, result, lc string
		meta                                 []byte
	)
	err := row.Scan(
		&m.ID, &m.BattleID, &m.HomeTeamID, &m.AwayTeamID, &kind,
		&homeVote, &awayVote, &m.Status.DisputeID, &result,
		&m.LastVoteAt, &m.CompletedAt, &meta, &lc,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Match{}, err
	}
	m.Status.Kind = domain.MatchStatusKind(kind)
	m.Status.HomeVote = domain.Side(homeVote)
	m.Status.AwayVote = domain.Side(awayVote)
	m.Status.Result = domain.Side(result)
	m.Lifecycle = domain.Lifecycle(lc)
	if len(meta) > 0 {
		m.Meta = &domain.MatchMeta{}
		if err := json.Unmarshal(meta, m.Meta); err != nil {
			return domain.Match{}, fmt.Errorf("decode match meta %s: %w", m.ID, err)
		}
	}
	return m, nil
}

func encodeMeta(meta *domain.MatchMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}
