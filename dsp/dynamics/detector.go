package dynamics

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-comprs/dsp/core"
	"github.com/cwbudde/algo-comprs/dsp/delay"
)

// DetectorMode controls detector algorithm.
type DetectorMode int

const (
	// DetectorModeRMS uses a sliding-window RMS with a running sum of squares.
	DetectorModeRMS DetectorMode = iota
	// DetectorModePeak uses a single-pole follower on |x| whose time
	// constant equals the window length.
	DetectorModePeak
)

// String returns the lower-case mode name.
func (m DetectorMode) String() string {
	switch m {
	case DetectorModeRMS:
		return "rms"
	case DetectorModePeak:
		return "peak"
	default:
		return fmt.Sprintf("DetectorMode(%d)", int(m))
	}
}

// ParseDetectorMode parses "rms" or "peak".
func ParseDetectorMode(s string) (DetectorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rms":
		return DetectorModeRMS, nil
	case "peak":
		return DetectorModePeak, nil
	default:
		return 0, fmt.Errorf("detector mode %q: %w", s, ErrUnknownParam)
	}
}

func validateDetectorMode(mode DetectorMode) error {
	if mode != DetectorModeRMS && mode != DetectorModePeak {
		return fmt.Errorf("invalid detector mode: %d: %w", mode, ErrOutOfRange)
	}

	return nil
}

// Detector estimates signal level from a sliding window of recent samples.
//
// The window is also the lookahead delay line: Delayed reads the history
// behind the newest sample, so both detector modes support lookahead.
type Detector struct {
	mode    DetectorMode
	history *delay.Line

	// RMS state
	sumSquares float64

	// Peak follower coefficient, derived from the window length
	peakCoeff float64

	level float64
}

// NewDetector creates a detector with a window of size samples and room to
// grow to capacity samples without reallocating.
func NewDetector(mode DetectorMode, size, capacity int) (*Detector, error) {
	if err := validateDetectorMode(mode); err != nil {
		return nil, err
	}

	history, err := delay.NewWithCapacity(size, capacity)
	if err != nil {
		return nil, fmt.Errorf("detector window: %w", err)
	}

	d := &Detector{mode: mode, history: history}
	d.refresh()

	return d, nil
}

// Mode returns the detection algorithm.
func (d *Detector) Mode() DetectorMode { return d.mode }

// Len returns the window length in samples.
func (d *Detector) Len() int { return d.history.Len() }

// Cap returns the window capacity reserved for resizing.
func (d *Detector) Cap() int { return d.history.Cap() }

// Level returns the most recent detector output.
func (d *Detector) Level() float64 { return d.level }

// Update pushes one sample into the window and returns the new level.
func (d *Detector) Update(input float64) float64 {
	oldest := d.history.Write(input)

	if d.mode == DetectorModePeak {
		d.level = (1-d.peakCoeff)*math.Abs(input) + d.peakCoeff*d.level
		if !core.IsFinite(d.level) {
			d.level = 0
		}

		return d.level
	}

	d.sumSquares += input*input - oldest*oldest
	if d.history.Wrapped() {
		d.sumSquares = sumOfSquares(d.history.Contents())
	}

	// Cancellation can leave a tiny negative sum; sqrt of that is NaN and
	// would lock the smoother at NaN. The negated test also catches NaN.
	if !(d.sumSquares > 0) {
		d.sumSquares = 0
	}

	d.level = mathSqrt(d.sumSquares / float64(d.history.Len()))

	return d.level
}

// Delayed returns the window entry k samples behind the newest sample.
// k is clamped to [0, Len()-1]; Delayed(0) is the sample just written.
func (d *Detector) Delayed(k int) float64 {
	k = max(0, min(k, d.history.Len()-1))
	return d.history.Read(k + 1)
}

// Resize changes the window length, keeping the newest samples and
// recomputing the running sum from the retained contents. It must run
// between audio blocks; it does not allocate while size fits Cap().
func (d *Detector) Resize(size int) error {
	assertf(size >= 1, "window length below 1")

	if err := d.history.Resize(size); err != nil {
		return fmt.Errorf("detector resize: %w", err)
	}

	d.refresh()

	return nil
}

// Reserve grows the window capacity. It allocates.
func (d *Detector) Reserve(capacity int) {
	d.history.Reserve(capacity)
}

// SetMode switches the detection algorithm, keeping the sample history.
func (d *Detector) SetMode(mode DetectorMode) error {
	if err := validateDetectorMode(mode); err != nil {
		return err
	}

	d.mode = mode
	d.refresh()

	return nil
}

// Reset clears window contents and level.
func (d *Detector) Reset() {
	d.history.Reset()
	d.sumSquares = 0
	d.level = 0
}

// refresh recomputes derived state from the window contents.
func (d *Detector) refresh() {
	n := d.history.Len()
	d.sumSquares = sumOfSquares(d.history.Contents())
	d.peakCoeff = math.Exp(-1 / float64(n))
}

func sumOfSquares(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v * v
	}

	return sum
}
