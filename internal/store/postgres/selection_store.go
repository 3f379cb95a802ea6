package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// SelectionStore implements domain.SelectionStore using PostgreSQL.
type SelectionStore struct {
	pool *pgxpool.Pool
}

var _ domain.SelectionStore = (*SelectionStore)(nil)

// NewSelectionStore creates a new SelectionStore backed by the given connection pool.
func NewSelectionStore(pool *pgxpool.Pool) *SelectionStore {
	return &SelectionStore{pool: pool}
}

const selectionSelectCols = `id, match_id, team_id, side, earnings, rating_delta, did_win, created_at`

const memberSelectCols = `id, selection_id, team_profile_id, profile_id, is_captain,
	earnings, rating_delta, did_win, created_at`

// Create inserts a roster.
func (s *SelectionStore) Create(ctx context.Context, sel domain.TeamSelection) error {
	const query = `
		INSERT INTO team_selections (id, match_id, team_id, side, earnings, rating_delta, did_win, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		sel.ID, sel.MatchID, sel.TeamID, string(sel.Side),
		sel.Outcome.Earnings, sel.Outcome.RatingDelta, sel.Outcome.DidWin, sel.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create selection %s: %w", sel.ID, err)
	}
	return nil
}

// GetByID retrieves a roster.
func (s *SelectionStore) GetByID(ctx context.Context, id string) (domain.TeamSelection, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectionSelectCols+` FROM team_selections WHERE id = $1`, id)

	sel, err := scanSelection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TeamSelection{}, domain.ErrNotFound
		}
		return domain.TeamSelection{}, fmt.Errorf("postgres: get selection %s: %w", id, err)
	}
	return sel, nil
}

// SetOutcome writes or clears the roster's settlement outcome.
func (s *SelectionStore) SetOutcome(ctx context.Context, id string, o domain.Outcome) error {
	return s.setOutcome(ctx, "team_selections", id, o)
}

// Delete removes a roster together with its members.
func (s *SelectionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM team_selections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete selection %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateMember inserts a roster member.
func (s *SelectionStore) CreateMember(ctx context.Context, m domain.TeamSelectionProfile) error {
	const query = `
		INSERT INTO team_selection_profiles (
			id, selection_id, team_profile_id, profile_id, is_captain,
			earnings, rating_delta, did_win, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.SelectionID, m.TeamProfileID, m.ProfileID, m.IsCaptain,
		m.Outcome.Earnings, m.Outcome.RatingDelta, m.Outcome.DidWin, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create selection member %s: %w", m.ID, err)
	}
	return nil
}

// ListMembers returns the members of a roster in enrolment order.
func (s *SelectionStore) ListMembers(ctx context.Context, selectionID string) ([]domain.TeamSelectionProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+memberSelectCols+` FROM team_selection_profiles
		 WHERE selection_id = $1 ORDER BY created_at, id`, selectionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list selection members %s: %w", selectionID, err)
	}
	members, err := scanAll(rows, scanMember)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan selection members %s: %w", selectionID, err)
	}
	return members, nil
}

// SetMemberOutcome writes or clears a member's settlement outcome.
func (s *SelectionStore) SetMemberOutcome(ctx context.Context, id string, o domain.Outcome) error {
	return s.setOutcome(ctx, "team_selection_profiles", id, o)
}

// DeleteMember removes one roster member.
func (s *SelectionStore) DeleteMember(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM team_selection_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete selection member %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SumRatingDeltas totals a profile's settled deltas for one game.
func (s *SelectionStore) SumRatingDeltas(ctx context.Context, profileID, gameID string) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(tsp.rating_delta), 0)
		FROM team_selection_profiles tsp
		JOIN team_selections ts ON ts.id = tsp.selection_id
		JOIN matches m ON m.id = ts.match_id
		JOIN battles b ON b.id = m.battle_id
		WHERE tsp.profile_id = $1
		  AND b.game_id = $2
		  AND tsp.rating_delta IS NOT NULL
		  AND m.lifecycle <> 'deleted'`

	var sum int64
	if err := s.pool.QueryRow(ctx, query, profileID, gameID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum rating deltas %s/%s: %w", profileID, gameID, err)
	}
	return sum, nil
}

// setOutcome is shared by rosters and members; table is never user input.
func (s *SelectionStore) setOutcome(ctx context.Context, table, id string, o domain.Outcome) error {
	query := `UPDATE ` + table + ` SET earnings = $2, rating_delta = $3, did_win = $4 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, o.Earnings, o.RatingDelta, o.DidWin)
	if err != nil {
		return fmt.Errorf("postgres: set outcome %s %s: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSelection(row rowScanner) (domain.TeamSelection, error) {
	var (
		sel  domain.TeamSelection
		side string
	)
	err := row.Scan(
		&sel.ID, &sel.MatchID, &sel.TeamID, &side,
		&sel.Outcome.Earnings, &sel.Outcome.RatingDelta, &sel.Outcome.DidWin,
		&sel.CreatedAt,
	)
	if err != nil {
		return domain.TeamSelection{}, err
	}
	sel.Side = domain.Side(side)
	return sel, nil
}

func scanMember(row rowScanner) (domain.TeamSelectionProfile, error) {
	var m domain.TeamSelectionProfile
	err := row.Scan(
		&m.ID, &m.SelectionID, &m.TeamProfileID, &m.ProfileID, &m.IsCaptain,
		&m.Outcome.Earnings, &m.Outcome.RatingDelta, &m.Outcome.DidWin,
		&m.CreatedAt,
	)
	return m, err
}
