// Package signal generates deterministic program material for exercising
// the compressor: sines, level steps and noise.
package signal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-comprs/dsp/core"
)

// ErrInvalidLength reports a non-positive sample count.
var ErrInvalidLength = errors.New("signal length must be > 0")

// DemoLevelsDB are the quarter levels of the stepped demo sine: quiet,
// approaching threshold, full scale, quiet again.
var DemoLevelsDB = []float64{-12, -9, 0, -12}

// Generator creates deterministic signals from a shared configuration.
type Generator struct {
	cfg  core.ProcessorConfig
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a generator. coreOpts select the sample rate.
func NewGenerator(coreOpts []core.ProcessorOption, opts ...Option) *Generator {
	g := &Generator{
		cfg:  core.ApplyProcessorOptions(coreOpts...),
		seed: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// SampleRate returns the generator sample rate.
func (g *Generator) SampleRate() float64 {
	return g.cfg.SampleRate
}

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("sine: %d: %w", samples, ErrInvalidLength)
	}

	return g.sine(freqHz, []float64{amplitude}, samples), nil
}

// SteppedSine generates a sine whose level changes in equal segments, one
// per entry of levelsDB. The phase runs continuously across steps.
func (g *Generator) SteppedSine(freqHz float64, levelsDB []float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("stepped sine: %d: %w", samples, ErrInvalidLength)
	}

	if len(levelsDB) == 0 {
		return nil, fmt.Errorf("stepped sine needs at least one level")
	}

	gains := make([]float64, len(levelsDB))
	for i, db := range levelsDB {
		gains[i] = core.DBToGain(db)
	}

	return g.sine(freqHz, gains, samples), nil
}

func (g *Generator) sine(freqHz float64, gains []float64, samples int) []float64 {
	out := make([]float64, samples)
	step := 2 * math.Pi * freqHz / g.cfg.SampleRate
	segment := segmentLen(samples, len(gains))

	for i := range out {
		out[i] = gains[min(i/segment, len(gains)-1)] * math.Sin(step*float64(i))
	}

	return out
}

// Steps generates a piecewise-constant signal with one equal segment per
// entry of levelsDB.
func (g *Generator) Steps(levelsDB []float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("steps: %d: %w", samples, ErrInvalidLength)
	}

	if len(levelsDB) == 0 {
		return nil, fmt.Errorf("steps need at least one level")
	}

	out := make([]float64, samples)
	segment := segmentLen(samples, len(levelsDB))

	for i := range out {
		out[i] = core.DBToGain(levelsDB[min(i/segment, len(levelsDB)-1)])
	}

	return out, nil
}

// WhiteNoise generates deterministic white noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise: %d: %w", samples, ErrInvalidLength)
	}

	if amplitude < 0 {
		return nil, fmt.Errorf("noise amplitude must be >= 0: %f", amplitude)
	}

	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))

	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out, nil
}

// Peak returns the largest absolute value in data, or 0 for an empty slice.
func Peak(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	return vecmath.MaxAbs(data)
}

// RMS returns the root mean square of data, or 0 for an empty slice.
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(data)))
}

func segmentLen(samples, segments int) int {
	return max(samples/segments, 1)
}
