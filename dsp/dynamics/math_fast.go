//go:build fastmath

package dynamics

import (
	"math"

	"github.com/meko-christian/algo-approx"
)

const (
	// dbPerNeper converts a natural log to dB: 20 / ln(10).
	dbPerNeper = 8.685889638065036553
	// neperPerDB converts dB to a natural exponent: ln(10) / 20.
	neperPerDB = 0.115129254649702284
)

// mathGainToDB converts linear amplitude to dB with a -100 dB floor using
// a fast logarithm approximation.
func mathGainToDB(gain float64) float64 {
	return approx.FastLog(math.Max(gain, minGain)) * dbPerNeper
}

// mathDBToGain converts dB to linear amplitude using a fast exponential.
func mathDBToGain(dB float64) float64 {
	return approx.FastExp(dB * neperPerDB)
}

// mathSqrt computes sqrt(x) using fast approximation.
func mathSqrt(x float64) float64 {
	return approx.FastSqrt(x)
}
