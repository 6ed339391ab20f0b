package dynamics

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-comprs/dsp/core"
)

var (
	// ErrOutOfRange reports a parameter outside its documented range.
	ErrOutOfRange = errors.New("parameter out of range")
	// ErrNotFinite reports a NaN or infinite parameter value.
	ErrNotFinite = errors.New("parameter must be finite")
	// ErrUnknownParam reports an unrecognised parameter name or id.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrNotPrepared reports use of a coordinator before Prepare.
	ErrNotPrepared = errors.New("coordinator not prepared")
)

func validateSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("sample rate must be positive and finite: %f: %w", sampleRate, ErrOutOfRange)
	}

	return nil
}

func validateRange(name string, v, lo, hi float64) error {
	if !core.IsFinite(v) {
		return fmt.Errorf("%s: %f: %w", name, v, ErrNotFinite)
	}

	if v < lo || v > hi {
		return fmt.Errorf("%s must be in [%g, %g]: %g: %w", name, lo, hi, v, ErrOutOfRange)
	}

	return nil
}
