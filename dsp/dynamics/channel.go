package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-comprs/dsp/core"
)

// Channel is a single-channel compressor: input gain, level detection,
// optional blend with a shared detector, attack/release smoothing, soft-knee
// gain computation, lookahead delay, dry/wet mix and output gain.
//
// Channel is not safe for concurrent use. Configure and Resize belong
// between blocks; ProcessSample neither allocates nor blocks.
type Channel struct {
	detector *Detector
	smoother Smoother
	computer GainComputer

	lookahead  int
	inputGain  float64
	outputGain float64
	dryWet     float64
	rmsMix     float64

	averageGain float64
	multiplier  float64

	// Block metering, cleared by the coordinator after publishing
	inputPeak  float64
	outputPeak float64
}

// NewChannel creates a channel whose detector window holds size samples and
// can grow to capacity samples.
func NewChannel(mode DetectorMode, size, capacity int) (*Channel, error) {
	d, err := NewDetector(mode, size, capacity)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}

	c := &Channel{detector: d}
	c.Configure(DefaultParams(), 44100)
	c.Reset()

	return c, nil
}

// Configure recomputes coefficients from p at sampleRate. It does not
// resize the window; see Resize.
func (c *Channel) Configure(p Params, sampleRate float64) {
	c.smoother.Configure(p.Attack, p.Release, sampleRate)
	c.computer = GainComputer{ThresholdDB: p.ThresholdDB, Ratio: p.Ratio, KneeDB: p.KneeDB}
	c.lookahead = core.SecondsToSamples(p.Lookahead, sampleRate)
	c.inputGain = p.InputGain
	c.outputGain = p.OutputGain
	c.dryWet = core.Clamp(p.DryWet, 0, 1)
	c.rmsMix = core.Clamp(p.RMSMix, 0, 1)
}

// Resize changes the detector window length in samples.
func (c *Channel) Resize(size int) error {
	return c.detector.Resize(size)
}

// Detector exposes the channel's own level detector.
func (c *Channel) Detector() *Detector { return c.detector }

// LookaheadSamples returns the effective lookahead after clamping to the
// window, which is also the latency this channel adds.
func (c *Channel) LookaheadSamples() int {
	return max(0, min(c.lookahead, c.detector.Len()-1))
}

// AverageGain returns the smoothed detected level (linear).
func (c *Channel) AverageGain() float64 { return c.averageGain }

// Multiplier returns the most recent gain-reduction factor.
func (c *Channel) Multiplier() float64 { return c.multiplier }

// ProcessSample compresses one sample. When shared is non-nil its Level,
// already updated once for this frame, is blended with the channel's own
// level by the rms-mix amount.
func (c *Channel) ProcessSample(input float64, shared *Detector) float64 {
	sample := input * c.inputGain

	level := c.detector.Update(sample)
	if shared != nil {
		level = (1-c.rmsMix)*level + c.rmsMix*shared.Level()
	}

	c.averageGain = core.FlushDenormals(c.smoother.Update(level, c.averageGain))
	if !core.IsFinite(c.averageGain) {
		c.averageGain = 0
	}

	c.multiplier = c.computer.Multiplier(c.averageGain)
	if !core.IsFinite(c.multiplier) {
		c.multiplier = 1
	}

	delayed := c.detector.Delayed(c.lookahead)
	wet := delayed * c.multiplier
	blended := (1-c.dryWet)*delayed + c.dryWet*wet
	output := blended * c.outputGain

	c.inputPeak = math.Max(c.inputPeak, math.Abs(sample))
	c.outputPeak = math.Max(c.outputPeak, math.Abs(output))

	return output
}

// ProcessInPlace compresses buf without a shared detector.
func (c *Channel) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = c.ProcessSample(buf[i], nil)
	}
}

// Reset clears the window, average gain and meters.
func (c *Channel) Reset() {
	c.detector.Reset()
	c.averageGain = 0
	c.multiplier = 1
	c.inputPeak = 0
	c.outputPeak = 0
}
