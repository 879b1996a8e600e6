package storage

import "math"

const (
	// MaxLimit caps every query result.
	MaxLimit = 5000

	// DefaultRangeMeters is used when a location query asks for a negative range.
	DefaultRangeMeters = 10.0
)

// ClampLimit maps non-positive and oversized limits to MaxLimit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizeRange maps a negative or NaN range to DefaultRangeMeters.
func NormalizeRange(rangeMeters float64) float64 {
	if rangeMeters < 0 || math.IsNaN(rangeMeters) {
		return DefaultRangeMeters
	}
	return rangeMeters
}
