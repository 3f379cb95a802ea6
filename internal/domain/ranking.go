package domain

import (
	"context"
	"time"
)

// RankingSubject is the kind of entity a leaderboard ranks.
type RankingSubject string

const (
	RankProfile     RankingSubject = "profile"
	RankGameProfile RankingSubject = "game_profile"
	RankGameTeam    RankingSubject = "game_team"
)

// Valid reports whether s is a known subject kind.
func (s RankingSubject) Valid() bool {
	return s == RankProfile || s == RankGameProfile || s == RankGameTeam
}

// RankingPeriod selects a leaderboard window. The zero value is all-time;
// Month is only set together with Year.
type RankingPeriod struct {
	Year  int
	Month int
}

// PeriodsFor returns the all-time, yearly and monthly windows containing t.
func PeriodsFor(t time.Time) []RankingPeriod {
	t = t.UTC()
	return []RankingPeriod{
		{},
		{Year: t.Year()},
		{Year: t.Year(), Month: int(t.Month())},
	}
}

// RankingEntry is one subject's contribution from a settled match in one
// period.
type RankingEntry struct {
	Subject     RankingSubject
	SubjectID   string
	GameID      string
	Period      RankingPeriod
	RatingDelta int64
	Earnings    int64
	Won         bool
}

// MatchProjection carries every ranking entry produced by one match.
type MatchProjection struct {
	MatchID string
	Entries []RankingEntry
}

// Standing is a subject's aggregate position on a leaderboard.
type Standing struct {
	SubjectID string
	Rank      int // 1-based, 0 when unranked
	XP        int64
	Earnings  int64
	Won       int64
	Lost      int64
}

// RankingProjector maintains leaderboards from settled matches.
type RankingProjector interface {
	// Project applies a match at most once.
	Project(ctx context.Context, p MatchProjection) error
	Standing(ctx context.Context, subject RankingSubject, subjectID, gameID string, period RankingPeriod) (Standing, error)
	Reset(ctx context.Context) error
}
