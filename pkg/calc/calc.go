// Package calc provides progress and backoff calculations.
package calc

import (
	"math"
	"time"
)

// Progress calculates the percentage for a given pair of numbers.
func Progress(done, total int64) int {
	if total > 0 {
		return int(math.Round(float64(done) / float64(total) * 100))
	}
	return 0
}

// ETA calculates the estimated time of arrival.
func ETA(done, total int64, started time.Time) time.Duration {
	if total > 0 && done > 0 {
		elapsed := time.Since(started)
		return time.Duration(float64(elapsed) * (float64(total)/float64(done) - 1))
	}
	return 0
}

// Backoff returns the progressive delay for the given retry attempt:
// base, 2*base, 4*base and so on, capped at max. Attempt counts from 1.
func Backoff(base time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := base << (attempt - 1)
	if d > max || d <= 0 {
		return max
	}

	return d
}
