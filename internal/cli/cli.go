// Package cli holds flag and logging plumbing shared by the commands.
package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-comprs/dsp/core"
	"github.com/cwbudde/algo-comprs/dsp/dynamics"
)

// ParamFlags binds compressor controls to command-line flags. Times are in
// milliseconds and gains in dB on the command line.
type ParamFlags struct {
	ThresholdDB  float64
	Ratio        float64
	KneeDB       float64
	AttackMs     float64
	ReleaseMs    float64
	WindowMs     float64
	LookaheadMs  float64
	RMSMix       float64
	InputGainDB  float64
	OutputGainDB float64
	DryWet       float64
	MaxWindowMs  float64
	Linked       bool
	Detector     string
}

// RegisterParamFlags defines the compressor flags on fs with the default
// parameter values.
func RegisterParamFlags(fs *flag.FlagSet) *ParamFlags {
	d := dynamics.DefaultParams()
	pf := &ParamFlags{}

	fs.Float64Var(&pf.ThresholdDB, "threshold", d.ThresholdDB, "threshold in dB")
	fs.Float64Var(&pf.Ratio, "ratio", d.Ratio, "compression ratio (<= 1 disables compression)")
	fs.Float64Var(&pf.KneeDB, "knee", d.KneeDB, "soft knee width in dB (0 = hard knee)")
	fs.Float64Var(&pf.AttackMs, "attack", d.Attack*1000, "attack time in milliseconds")
	fs.Float64Var(&pf.ReleaseMs, "release", d.Release*1000, "release time in milliseconds")
	fs.Float64Var(&pf.WindowMs, "window", d.Window*1000, "detector window length in milliseconds")
	fs.Float64Var(&pf.LookaheadMs, "lookahead", d.Lookahead*1000, "lookahead in milliseconds")
	fs.Float64Var(&pf.RMSMix, "rms-mix", d.RMSMix, "blend of the linked detector level (0..1)")
	fs.Float64Var(&pf.InputGainDB, "input-gain", 0, "input gain in dB")
	fs.Float64Var(&pf.OutputGainDB, "output-gain", 0, "output gain in dB")
	fs.Float64Var(&pf.DryWet, "dry-wet", d.DryWet, "dry/wet mix (0 = dry, 1 = wet)")
	fs.Float64Var(&pf.MaxWindowMs, "max-window", dynamics.DefaultMaxWindow*1000, "largest window/lookahead in milliseconds")
	fs.BoolVar(&pf.Linked, "linked", false, "share one level detector across channels")
	fs.StringVar(&pf.Detector, "detector", dynamics.DetectorModeRMS.String(), "level detector: rms or peak")

	return pf
}

// Params converts the flag values to engine units.
func (pf *ParamFlags) Params() dynamics.Params {
	return dynamics.Params{
		ThresholdDB: pf.ThresholdDB,
		Ratio:       pf.Ratio,
		KneeDB:      pf.KneeDB,
		Attack:      pf.AttackMs / 1000,
		Release:     pf.ReleaseMs / 1000,
		Window:      pf.WindowMs / 1000,
		Lookahead:   pf.LookaheadMs / 1000,
		RMSMix:      pf.RMSMix,
		InputGain:   core.DBToGain(pf.InputGainDB),
		OutputGain:  core.DBToGain(pf.OutputGainDB),
		DryWet:      pf.DryWet,
	}
}

// Store validates the flags and returns a parameter store.
func (pf *ParamFlags) Store() (*dynamics.ParamStore, error) {
	store, err := dynamics.NewParamStore(pf.Params(), pf.MaxWindowMs/1000)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	return store, nil
}

// Options returns the coordinator options selected by the flags.
func (pf *ParamFlags) Options(channels int, logger logrus.FieldLogger) ([]dynamics.Option, error) {
	mode, err := dynamics.ParseDetectorMode(pf.Detector)
	if err != nil {
		return nil, err
	}

	return []dynamics.Option{
		dynamics.WithChannels(channels),
		dynamics.WithLinked(pf.Linked),
		dynamics.WithDetectorMode(mode),
		dynamics.WithLogger(logger),
	}, nil
}

// Fields returns the settings as log fields.
func (pf *ParamFlags) Fields() logrus.Fields {
	return logrus.Fields{
		"threshold_db": pf.ThresholdDB,
		"ratio":        pf.Ratio,
		"knee_db":      pf.KneeDB,
		"attack_ms":    pf.AttackMs,
		"release_ms":   pf.ReleaseMs,
		"window_ms":    pf.WindowMs,
		"lookahead_ms": pf.LookaheadMs,
		"rms_mix":      pf.RMSMix,
		"linked":       pf.Linked,
		"detector":     pf.Detector,
	}
}

// NewLogger returns a text logger writing to w at the named level.
func NewLogger(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	return logger, nil
}

// ParseControl parses a "name value" or "name=value" control line, with
// times in milliseconds and gains in dB as on the command line, and returns
// the parameter id and engine-unit value.
func ParseControl(line string) (dynamics.ParamID, float64, error) {
	var name string
	var value float64

	normalized := []byte(line)
	for i, c := range normalized {
		if c == '=' {
			normalized[i] = ' '
		}
	}

	if _, err := fmt.Sscanf(string(normalized), "%s %g", &name, &value); err != nil {
		return 0, 0, fmt.Errorf("control %q: want \"name value\": %w", line, err)
	}

	id, err := dynamics.ParseParamID(name)
	if err != nil {
		return 0, 0, err
	}

	return id, ToEngineUnits(id, value), nil
}

// ToEngineUnits converts a command-line value (ms, dB) to engine units.
func ToEngineUnits(id dynamics.ParamID, value float64) float64 {
	switch id {
	case dynamics.ParamAttack, dynamics.ParamRelease, dynamics.ParamWindow, dynamics.ParamLookahead:
		return value / 1000
	case dynamics.ParamInputGain, dynamics.ParamOutputGain:
		return core.DBToGain(value)
	default:
		return value
	}
}
