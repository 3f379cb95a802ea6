package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// Leaderboards live under one prefix so Reset can sweep them:
//
//	ranking:{subject}[:{game}][:year:{y}[:month:{m}]]          zset  subject -> xp
//	ranking:{subject}[:{game}][:year:{y}[:month:{m}]]:{id}     hash  earnings, won, lost
//	ranking:matches                                            set   projected match ids
const (
	rankingPrefix     = "ranking:"
	projectedMatchKey = rankingPrefix + "matches"
	maxProjectRetries = 5
)

// RankingProjector implements domain.RankingProjector on sorted sets.
type RankingProjector struct {
	rdb *redis.Client
}

// NewRankingProjector creates a RankingProjector backed by the given Client.
func NewRankingProjector(c *Client) *RankingProjector {
	return &RankingProjector{rdb: c.Underlying()}
}

// boardKey names the leaderboard an entry belongs to. Profile boards span
// every game, so the game is left out of their key.
func boardKey(subject domain.RankingSubject, gameID string, period domain.RankingPeriod) string {
	var b strings.Builder
	b.WriteString(rankingPrefix)
	b.WriteString(string(subject))
	if subject != domain.RankProfile && gameID != "" {
		b.WriteString(":")
		b.WriteString(gameID)
	}
	if period.Year != 0 {
		b.WriteString(":year:")
		b.WriteString(strconv.Itoa(period.Year))
		if period.Month != 0 {
			b.WriteString(":month:")
			b.WriteString(strconv.Itoa(period.Month))
		}
	}
	return b.String()
}

func statsKey(board, subjectID string) string {
	return board + ":" + subjectID
}

// Project applies every entry of p unless the match was already projected.
// The marker and the increments commit in one MULTI under WATCH, so a
// concurrent replay of the same match cannot double count.
func (rp *RankingProjector) Project(ctx context.Context, p domain.MatchProjection) error {
	if p.MatchID == "" {
		return fmt.Errorf("redis: project ranking: %w: empty match id", domain.ErrInvalidInput)
	}

	apply := func(tx *redis.Tx) error {
		done, err := tx.SIsMember(ctx, projectedMatchKey, p.MatchID).Result()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, e := range p.Entries {
				board := boardKey(e.Subject, e.GameID, e.Period)
				stats := statsKey(board, e.SubjectID)
				pipe.ZIncrBy(ctx, board, float64(e.RatingDelta), e.SubjectID)
				pipe.HIncrBy(ctx, stats, "earnings", e.Earnings)
				if e.Won {
					pipe.HIncrBy(ctx, stats, "won", 1)
				} else {
					pipe.HIncrBy(ctx, stats, "lost", 1)
				}
			}
			pipe.SAdd(ctx, projectedMatchKey, p.MatchID)
			return nil
		})
		return err
	}

	for range maxProjectRetries {
		err := rp.rdb.Watch(ctx, apply, projectedMatchKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("redis: project match %s: %w", p.MatchID, err)
		}
	}
	return fmt.Errorf("redis: project match %s: too much contention", p.MatchID)
}

// Standing returns the subject's rank, xp, earnings and record on one
// leaderboard. A subject that never played is returned unranked.
func (rp *RankingProjector) Standing(ctx context.Context, subject domain.RankingSubject, subjectID, gameID string, period domain.RankingPeriod) (domain.Standing, error) {
	if !subject.Valid() {
		return domain.Standing{}, fmt.Errorf("redis: standing: %w: subject %q", domain.ErrInvalidInput, subject)
	}
	board := boardKey(subject, gameID, period)

	var (
		rank  *redis.IntCmd
		score *redis.FloatCmd
		stats *redis.MapStringStringCmd
	)
	_, err := rp.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		rank = p.ZRevRank(ctx, board, subjectID)
		score = p.ZScore(ctx, board, subjectID)
		stats = p.HGetAll(ctx, statsKey(board, subjectID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Standing{}, fmt.Errorf("redis: standing %s %s: %w", board, subjectID, err)
	}

	st := domain.Standing{SubjectID: subjectID}
	r, err := rank.Result()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return domain.Standing{}, fmt.Errorf("redis: standing rank %s: %w", subjectID, err)
	}
	st.Rank = int(r) + 1
	st.XP = int64(score.Val())

	fields := stats.Val()
	st.Earnings, _ = strconv.ParseInt(fields["earnings"], 10, 64)
	st.Won, _ = strconv.ParseInt(fields["won"], 10, 64)
	st.Lost, _ = strconv.ParseInt(fields["lost"], 10, 64)
	return st, nil
}

// Reset drops every leaderboard and the projected-match marker.
func (rp *RankingProjector) Reset(ctx context.Context) error {
	iter := rp.rdb.Scan(ctx, 0, rankingPrefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := rp.rdb.Unlink(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis: reset rankings: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: reset rankings scan: %w", err)
	}
	if len(batch) > 0 {
		if err := rp.rdb.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis: reset rankings: %w", err)
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.RankingProjector = (*RankingProjector)(nil)
