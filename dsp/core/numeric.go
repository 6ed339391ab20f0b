package core

import "math"

const (
	defaultEpsilon = 1e-12

	// MinGain is the amplitude floor used before taking a logarithm.
	// It corresponds to -100 dB.
	MinGain = 1e-5
)

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// ClampInt limits value to the inclusive range [min, max].
func ClampInt(value, min, max int) int {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// NearlyEqual reports whether a and b are equal within eps.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff <= eps
	}

	return diff/largest <= eps
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FlushDenormals converts tiny denormal-like values to exact zero.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// DBToGain converts dB to linear amplitude (20*log10 convention).
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// GainToDB converts linear amplitude to dB (20*log10 convention).
// Amplitudes at or below MinGain map to -100 dB, so the result is
// always finite for finite input.
func GainToDB(gain float64) float64 {
	return 20 * math.Log10(math.Max(gain, MinGain))
}

// SecondsToSamples converts a duration to a whole number of samples,
// rounding to nearest. Negative or non-finite durations yield 0.
func SecondsToSamples(seconds, sampleRate float64) int {
	if !IsFinite(seconds) || seconds <= 0 || sampleRate <= 0 {
		return 0
	}

	return int(math.Round(seconds * sampleRate))
}
