package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// RosterStore implements domain.RosterStore over the profile, team and game
// tables. Rows are returned with their deleted and pending flags intact so
// callers can decide eligibility.
type RosterStore struct {
	pool *pgxpool.Pool
}

var _ domain.RosterStore = (*RosterStore)(nil)

// NewRosterStore creates a new RosterStore backed by the given connection pool.
func NewRosterStore(pool *pgxpool.Pool) *RosterStore {
	return &RosterStore{pool: pool}
}

const profileSelectCols = `id, username, wallet, suspended, wager_mode, trust_mode, deleted, created_at`

func scanProfile(row rowScanner) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Username, &p.Wallet, &p.Suspended, &p.WagerMode, &p.TrustMode, &p.Deleted, &p.CreatedAt)
	return p, err
}

// GetProfile retrieves a profile by id.
func (s *RosterStore) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileSelectCols+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile %s: %w", id, err)
	}
	return p, nil
}

// GetProfileByWallet resolves a checksummed wallet address to its profile.
func (s *RosterStore) GetProfileByWallet(ctx context.Context, wallet string) (domain.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileSelectCols+` FROM profiles WHERE wallet = $1 AND NOT deleted`, wallet))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile by wallet: %w", err)
	}
	return p, nil
}

// GetTeam retrieves a team by id.
func (s *RosterStore) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	var t domain.Team
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, game_id, deleted FROM teams WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.GameID, &t.Deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Team{}, domain.ErrNotFound
		}
		return domain.Team{}, fmt.Errorf("postgres: get team %s: %w", id, err)
	}
	return t, nil
}

const teamProfileSelectCols = `id, team_id, profile_id, role, pending, deleted`

func scanTeamProfile(row rowScanner) (domain.TeamProfile, error) {
	var (
		tp   domain.TeamProfile
		role string
	)
	if err := row.Scan(&tp.ID, &tp.TeamID, &tp.ProfileID, &role, &tp.Pending, &tp.Deleted); err != nil {
		return domain.TeamProfile{}, err
	}
	tp.Role = domain.TeamRole(role)
	return tp, nil
}

// GetTeamProfile retrieves one team membership.
func (s *RosterStore) GetTeamProfile(ctx context.Context, id string) (domain.TeamProfile, error) {
	tp, err := scanTeamProfile(s.pool.QueryRow(ctx,
		`SELECT `+teamProfileSelectCols+` FROM team_profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TeamProfile{}, domain.ErrNotFound
		}
		return domain.TeamProfile{}, fmt.Errorf("postgres: get team profile %s: %w", id, err)
	}
	return tp, nil
}

// ListTeamProfiles returns every membership row of a team.
func (s *RosterStore) ListTeamProfiles(ctx context.Context, teamID string) ([]domain.TeamProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+teamProfileSelectCols+` FROM team_profiles WHERE team_id = $1 ORDER BY id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list team profiles %s: %w", teamID, err)
	}
	tps, err := scanAll(rows, scanTeamProfile)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan team profiles %s: %w", teamID, err)
	}
	return tps, nil
}

// GetGame retrieves a game with its custom attribute definitions.
func (s *RosterStore) GetGame(ctx context.Context, id string) (domain.Game, error) {
	var (
		g     domain.Game
		attrs []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, custom_attributes FROM games WHERE id = $1`, id,
	).Scan(&g.ID, &g.Title, &attrs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Game{}, domain.ErrNotFound
		}
		return domain.Game{}, fmt.Errorf("postgres: get game %s: %w", id, err)
	}
	if err := json.Unmarshal(attrs, &g.CustomAttributes); err != nil {
		return domain.Game{}, fmt.Errorf("postgres: decode game attributes %s: %w", id, err)
	}
	return g, nil
}
