package dynamics

import (
	"math"

	"github.com/cwbudde/algo-comprs/dsp/core"
)

// TimeCoefficient returns the one-pole coefficient exp(-1/(r·t)) for a time
// constant of seconds at sampleRate. A zero, negative or non-finite time
// yields 0, i.e. an instantaneous response.
func TimeCoefficient(seconds, sampleRate float64) float64 {
	if !(seconds > 0) || !core.IsFinite(seconds) || !(sampleRate > 0) {
		return 0
	}

	return math.Exp(-1 / (sampleRate * seconds))
}

// Smoother is an attack/release asymmetric one-pole filter applied to the
// detected level.
type Smoother struct {
	attackCoeff  float64
	releaseCoeff float64
}

// NewSmoother returns a smoother for the given attack and release times in
// seconds.
func NewSmoother(attack, release, sampleRate float64) Smoother {
	var s Smoother
	s.Configure(attack, release, sampleRate)

	return s
}

// Configure recomputes both coefficients.
func (s *Smoother) Configure(attack, release, sampleRate float64) {
	s.attackCoeff = TimeCoefficient(attack, sampleRate)
	s.releaseCoeff = TimeCoefficient(release, sampleRate)
}

// AttackCoeff returns the coefficient used while the level rises.
func (s Smoother) AttackCoeff() float64 { return s.attackCoeff }

// ReleaseCoeff returns the coefficient used while the level falls.
func (s Smoother) ReleaseCoeff() float64 { return s.releaseCoeff }

// Update returns the new average given the current level and the previous
// average.
func (s Smoother) Update(level, previous float64) float64 {
	coeff := s.releaseCoeff
	if level > previous {
		coeff = s.attackCoeff
	}

	return (1-coeff)*level + coeff*previous
}
