package service

import "math"

const (
	baseRating    = 10000
	minRating     = 10
	minDeltaBound = 50
	maxDeltaBound = 300
)

// HouseFee is the fee taken from the winners' half of the pot. Each winner
// gets floor(0.9 × half / n) and the house keeps the rest, so the fee is never
// below a tenth of the half, fractions included.
func HouseFee(pot int64, n int) int64 {
	if n <= 0 {
		return 0
	}
	half := pot / 2
	perWinner := (half * 9) / (10 * int64(n))
	return half - perWinner*int64(n)
}

// ProfileRating turns the sum of a profile's prior deltas in a game into its
// current rating.
func ProfileRating(sumOfDeltas int64) int64 {
	return max(minRating, baseRating+sumOfDeltas)
}

// BoundDelta clamps the magnitude of v into [50, 300], rounds it and keeps
// the sign of v.
func BoundDelta(v float64) int64 {
	mag := math.Round(math.Min(math.Max(math.Abs(v), minDeltaBound), maxDeltaBound))
	if v < 0 {
		return -int64(mag)
	}
	return int64(mag)
}

// MemberDelta is a roster member's rating change. Winners gain more for
// beating a stronger side; losers lose more the stronger they were.
func MemberDelta(won bool, own, opposingAvg float64) int64 {
	if won {
		return BoundDelta(opposingAvg / own * 100)
	}
	return BoundDelta(-own / opposingAvg * 100)
}

// TeamDelta is the roster-level rating change; winner and loser get the same
// magnitude with opposite signs.
func TeamDelta(won bool, winnerAvg, loserAvg float64) int64 {
	d := BoundDelta(loserAvg / winnerAvg * 100)
	if !won {
		return -d
	}
	return d
}

func average(vs []int64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum int64
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}
