package dynamics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-comprs/dsp/core"
)

const (
	// Default control values
	defaultThresholdDB = -10.0
	defaultRatio       = 4.0
	defaultKneeDB      = 5.0
	defaultAttack      = 0.001
	defaultRelease     = 0.05
	defaultWindow      = 0.01
	defaultLookahead   = 0.0
	defaultRMSMix      = 0.0
	defaultGain        = 1.0
	defaultDryWet      = 1.0

	// DefaultMaxWindow bounds the window length and reserves detector
	// capacity so window changes never reallocate.
	DefaultMaxWindow = 0.03

	// Parameter validation ranges
	minThresholdDB = -100.0
	maxThresholdDB = 5.0
	minRatio       = 0.0
	maxRatio       = 100.0
	minKneeDB      = 0.0
	maxKneeDB      = 20.0
	maxAttack      = 1.0
	maxRelease     = 5.0
	minWindow      = 0.001
	minGainDB      = -30.0
	maxGainDB      = 30.0
)

// Params is a complete set of control values. Times are in seconds, gains
// are linear.
type Params struct {
	ThresholdDB float64
	Ratio       float64
	KneeDB      float64
	Attack      float64
	Release     float64
	Window      float64
	Lookahead   float64
	RMSMix      float64
	InputGain   float64
	OutputGain  float64
	DryWet      float64
}

// DefaultParams returns 4:1 compression at -10 dB with a 5 dB knee, 1 ms
// attack, 50 ms release and a 10 ms RMS window.
func DefaultParams() Params {
	return Params{
		ThresholdDB: defaultThresholdDB,
		Ratio:       defaultRatio,
		KneeDB:      defaultKneeDB,
		Attack:      defaultAttack,
		Release:     defaultRelease,
		Window:      defaultWindow,
		Lookahead:   defaultLookahead,
		RMSMix:      defaultRMSMix,
		InputGain:   defaultGain,
		OutputGain:  defaultGain,
		DryWet:      defaultDryWet,
	}
}

// Validate checks every field against its range. maxWindow bounds both the
// window and the lookahead.
func (p Params) Validate(maxWindow float64) error {
	for _, id := range paramIDs {
		lo, hi := id.bounds(maxWindow)
		if err := validateRange(id.String(), p.Get(id), lo, hi); err != nil {
			return err
		}
	}

	return nil
}

// ParamID names one control value.
type ParamID int

const (
	ParamThreshold ParamID = iota
	ParamRatio
	ParamKnee
	ParamAttack
	ParamRelease
	ParamWindow
	ParamLookahead
	ParamRMSMix
	ParamInputGain
	ParamOutputGain
	ParamDryWet
)

var paramIDs = [...]ParamID{
	ParamThreshold, ParamRatio, ParamKnee, ParamAttack, ParamRelease,
	ParamWindow, ParamLookahead, ParamRMSMix, ParamInputGain,
	ParamOutputGain, ParamDryWet,
}

var paramNames = [...]string{
	ParamThreshold:  "threshold",
	ParamRatio:      "ratio",
	ParamKnee:       "knee",
	ParamAttack:     "attack",
	ParamRelease:    "release",
	ParamWindow:     "window",
	ParamLookahead:  "lookahead",
	ParamRMSMix:     "rms-mix",
	ParamInputGain:  "input-gain",
	ParamOutputGain: "output-gain",
	ParamDryWet:     "dry-wet",
}

// ParamIDs returns every parameter id in declaration order.
func ParamIDs() []ParamID {
	return paramIDs[:]
}

// String returns the parameter's flag-style name.
func (id ParamID) String() string {
	if id < 0 || int(id) >= len(paramNames) {
		return fmt.Sprintf("ParamID(%d)", int(id))
	}

	return paramNames[id]
}

// ParseParamID looks up a parameter by name. Underscores are accepted in
// place of dashes.
func ParseParamID(name string) (ParamID, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for _, id := range paramIDs {
		if paramNames[id] == key {
			return id, nil
		}
	}

	return 0, fmt.Errorf("%q: %w", name, ErrUnknownParam)
}

func (id ParamID) bounds(maxWindow float64) (lo, hi float64) {
	switch id {
	case ParamThreshold:
		return minThresholdDB, maxThresholdDB
	case ParamRatio:
		return minRatio, maxRatio
	case ParamKnee:
		return minKneeDB, maxKneeDB
	case ParamAttack:
		return 0, maxAttack
	case ParamRelease:
		return 0, maxRelease
	case ParamWindow:
		return minWindow, maxWindow
	case ParamLookahead:
		return 0, maxWindow
	case ParamRMSMix, ParamDryWet:
		return 0, 1
	case ParamInputGain, ParamOutputGain:
		return core.DBToGain(minGainDB), core.DBToGain(maxGainDB)
	default:
		return 0, 0
	}
}

// Get returns the value of one field.
func (p Params) Get(id ParamID) float64 {
	switch id {
	case ParamThreshold:
		return p.ThresholdDB
	case ParamRatio:
		return p.Ratio
	case ParamKnee:
		return p.KneeDB
	case ParamAttack:
		return p.Attack
	case ParamRelease:
		return p.Release
	case ParamWindow:
		return p.Window
	case ParamLookahead:
		return p.Lookahead
	case ParamRMSMix:
		return p.RMSMix
	case ParamInputGain:
		return p.InputGain
	case ParamOutputGain:
		return p.OutputGain
	case ParamDryWet:
		return p.DryWet
	default:
		return 0
	}
}

// With returns a copy of p with one field replaced.
func (p Params) With(id ParamID, v float64) (Params, error) {
	switch id {
	case ParamThreshold:
		p.ThresholdDB = v
	case ParamRatio:
		p.Ratio = v
	case ParamKnee:
		p.KneeDB = v
	case ParamAttack:
		p.Attack = v
	case ParamRelease:
		p.Release = v
	case ParamWindow:
		p.Window = v
	case ParamLookahead:
		p.Lookahead = v
	case ParamRMSMix:
		p.RMSMix = v
	case ParamInputGain:
		p.InputGain = v
	case ParamOutputGain:
		p.OutputGain = v
	case ParamDryWet:
		p.DryWet = v
	default:
		return p, fmt.Errorf("%v: %w", id, ErrUnknownParam)
	}

	return p, nil
}

type snapshot struct {
	params  Params
	version uint64
}

// ParamStore carries control values from control goroutines to the audio
// goroutine without locks on the audio side.
//
// Writers publish an immutable copy through an atomic pointer; the mutex
// only serializes writers. The audio goroutine calls Snapshot once per block.
type ParamStore struct {
	mu        sync.Mutex
	current   atomic.Pointer[snapshot]
	maxWindow float64
}

// NewParamStore validates initial against maxWindow (seconds) and returns
// a store publishing it as version 1.
func NewParamStore(initial Params, maxWindow float64) (*ParamStore, error) {
	if err := validateRange("max window", maxWindow, minWindow, 1); err != nil {
		return nil, err
	}

	if err := initial.Validate(maxWindow); err != nil {
		return nil, err
	}

	s := &ParamStore{maxWindow: maxWindow}
	s.current.Store(&snapshot{params: initial, version: 1})

	return s, nil
}

// MaxWindow returns the largest permitted window length in seconds.
func (s *ParamStore) MaxWindow() float64 { return s.maxWindow }

// Snapshot returns the latest published values and their version. It never
// blocks or allocates.
func (s *ParamStore) Snapshot() (Params, uint64) {
	snap := s.current.Load()
	return snap.params, snap.version
}

// Params returns the latest published values.
func (s *ParamStore) Params() Params {
	p, _ := s.Snapshot()
	return p
}

// Update applies fn to a copy of the current values, validates the result
// and publishes it. On error nothing is published.
func (s *ParamStore) Update(fn func(*Params)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	next := prev.params
	fn(&next)

	if err := next.Validate(s.maxWindow); err != nil {
		return err
	}

	s.current.Store(&snapshot{params: next, version: prev.version + 1})

	return nil
}

// Set changes one parameter.
func (s *ParamStore) Set(id ParamID, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()

	next, err := prev.params.With(id, v)
	if err != nil {
		return err
	}

	lo, hi := id.bounds(s.maxWindow)
	if err := validateRange(id.String(), v, lo, hi); err != nil {
		return err
	}

	s.current.Store(&snapshot{params: next, version: prev.version + 1})

	return nil
}

// SetByName changes one parameter identified by name.
func (s *ParamStore) SetByName(name string, v float64) error {
	id, err := ParseParamID(name)
	if err != nil {
		return err
	}

	return s.Set(id, v)
}
