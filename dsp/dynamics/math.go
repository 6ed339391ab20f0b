//go:build !fastmath

package dynamics

import "math"

// mathGainToDB converts linear amplitude to dB with a -100 dB floor.
func mathGainToDB(gain float64) float64 {
	return 20 * math.Log10(math.Max(gain, minGain))
}

// mathDBToGain converts dB to linear amplitude.
func mathDBToGain(dB float64) float64 {
	return math.Pow(10, dB/20)
}

// mathSqrt computes sqrt(x) using standard library math.
func mathSqrt(x float64) float64 {
	return math.Sqrt(x)
}
