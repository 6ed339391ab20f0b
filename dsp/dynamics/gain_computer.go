package dynamics

import (
	"math"

	"github.com/cwbudde/algo-comprs/dsp/core"
)

// minGain floors the average gain before the dB conversion so silence maps
// to -100 dB instead of -Inf.
const minGain = core.MinGain

// GainComputer is the static soft-knee transfer curve.
//
// Ratio <= 1 is a pass-through. KneeDB <= 0 gives a hard knee.
type GainComputer struct {
	ThresholdDB float64
	Ratio       float64
	KneeDB      float64
}

// ReductionDB returns the gain change in dB (always <= 0) for a detected
// level of inputDB.
func (g GainComputer) ReductionDB(inputDB float64) float64 {
	if !(g.Ratio > 1) {
		return 0
	}

	difference := inputDB - g.ThresholdDB

	var reducedDB float64

	switch {
	case g.KneeDB > 0 && 2*math.Abs(difference) <= g.KneeDB:
		scratch := difference + g.KneeDB/2
		reduction := scratch * scratch / (2 * g.KneeDB)
		reducedDB = inputDB + (1/g.Ratio-1)*reduction
	case 2*difference > g.KneeDB:
		reducedDB = g.ThresholdDB + difference/g.Ratio
	default:
		reducedDB = inputDB
	}

	return min(reducedDB-inputDB, 0)
}

// OutputLevelDB returns the static output level for a steady input level.
func (g GainComputer) OutputLevelDB(inputDB float64) float64 {
	return inputDB + g.ReductionDB(inputDB)
}

// Multiplier maps a linear average gain to a linear gain-reduction factor.
func (g GainComputer) Multiplier(averageGain float64) float64 {
	if !(g.Ratio > 1) {
		return 1
	}

	reduction := g.ReductionDB(mathGainToDB(averageGain))
	if reduction == 0 {
		return 1
	}

	return mathDBToGain(reduction)
}
