// Package sizing computes recommended trade notionals from a stated
// conviction level and the edge over the market-implied probability. The
// policy is a pure function so it can be pinned exactly by tests.
package sizing

import "math"

// Edge multiplier thresholds. A large positive edge scales the position up,
// a negative edge (betting against the market consensus) scales it down.
const (
	strongEdge = 0.20
	mildEdge   = 0.10
)

// Recommend returns the recommended trade notional in USD for the given
// conviction in [0,1] and edge in [-1,1], bounded by maxNotional.
//
// Conviction is bucketed into four bands, each mapped to the midpoint of a
// percentage range of maxNotional:
//
//	[0.9, 1.0] -> 87.5%   (75-100% band)
//	[0.7, 0.9) -> 62.5%   (50-75% band)
//	[0.5, 0.7) -> 37.5%   (25-50% band)
//	[0.0, 0.5) -> 17.5%   (10-25% band)
//
// The result is clamped to [1, maxNotional] and rounded to cents.
func Recommend(conviction, edge, maxNotional float64) float64 {
	var basePct float64
	switch {
	case conviction >= 0.9:
		basePct = 0.875
	case conviction >= 0.7:
		basePct = 0.625
	case conviction >= 0.5:
		basePct = 0.375
	default:
		basePct = 0.175
	}

	adjustment := 1.0
	switch {
	case edge > strongEdge:
		adjustment = 1.15
	case edge > mildEdge:
		adjustment = 1.08
	case edge < 0:
		adjustment = 0.75
	}

	size := maxNotional * basePct * adjustment

	size = math.Max(1.0, math.Min(size, maxNotional))

	return math.Round(size*100) / 100
}
