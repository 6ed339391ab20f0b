package main

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-comprs/dsp/core"
	"github.com/cwbudde/algo-comprs/dsp/dynamics"
	"github.com/cwbudde/algo-comprs/internal/cli"
)

// renderer runs a prepared coordinator over an interleaved buffer and keeps
// the largest gain reduction seen for the summary.
type renderer struct {
	comp     *dynamics.Coordinator
	channels int
	block    int
	latency  int

	maxReductionDB float64
	inputPeak      float64
	outputPeak     float64
}

func newRenderer(pf *cli.ParamFlags, sampleRate, channels, block int, logger logrus.FieldLogger) (*renderer, error) {
	store, err := pf.Store()
	if err != nil {
		return nil, err
	}

	opts, err := pf.Options(channels, logger)
	if err != nil {
		return nil, err
	}

	r := &renderer{channels: channels, block: block}

	opts = append(opts, dynamics.WithLatencyFunc(func(samples int) {
		r.latency = samples
	}))

	comp, err := dynamics.NewCoordinator(store, opts...)
	if err != nil {
		return nil, err
	}

	if err := comp.Prepare(float64(sampleRate), block); err != nil {
		return nil, err
	}

	r.comp = comp

	return r, nil
}

// render processes samples in place, block by block. The lookahead
// latency is flushed with trailing silence and removed from the front, so
// the output stays aligned with the input.
func (r *renderer) render(samples []float32) {
	buf := r.padded(samples)
	step := r.block * r.channels

	for start := 0; start < len(buf); start += step {
		end := min(start+step, len(buf))
		r.comp.ProcessInterleaved(buf[start:end])
		r.collect()
	}

	copy(samples, buf[r.latency*r.channels:])
}

// renderTraced processes samples in place one frame at a time and writes
// index, input, output, average gain and multiplier of channel 0 as CSV.
// Rows are aligned like render: the gains on row i are the ones applied to
// input frame i.
func (r *renderer) renderTraced(samples []float32, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"sample", "input", "output", "average_gain", "multiplier"}); err != nil {
		return err
	}

	ch := r.comp.Channel(0)
	row := make([]string, 5)
	buf := r.padded(samples)

	for frame := 0; (frame+1)*r.channels <= len(buf); frame++ {
		base := frame * r.channels

		r.comp.ProcessInterleaved(buf[base : base+r.channels])
		r.collect()

		aligned := frame - r.latency
		if aligned < 0 {
			continue
		}

		row[0] = strconv.Itoa(aligned)
		row[1] = formatFloat(float64(samples[aligned*r.channels]))
		row[2] = formatFloat(float64(buf[base]))
		row[3] = formatFloat(ch.AverageGain())
		row[4] = formatFloat(ch.Multiplier())

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return err
	}

	copy(samples, buf[r.latency*r.channels:])

	return nil
}

// padded returns a copy of samples followed by latency frames of silence.
func (r *renderer) padded(samples []float32) []float32 {
	buf := make([]float32, len(samples)+r.latency*r.channels)
	copy(buf, samples)

	return buf
}

func (r *renderer) collect() {
	for ch := range r.channels {
		m := r.comp.Meter(ch)
		r.maxReductionDB = math.Min(r.maxReductionDB, m.GainReductionDB)
		r.inputPeak = math.Max(r.inputPeak, m.InputPeak)
		r.outputPeak = math.Max(r.outputPeak, m.OutputPeak)
	}
}

func (r *renderer) summary() logrus.Fields {
	return logrus.Fields{
		"max_reduction_db": round2(r.maxReductionDB),
		"input_peak_db":    round2(core.GainToDB(r.inputPeak)),
		"output_peak_db":   round2(core.GainToDB(r.outputPeak)),
		"latency":          r.latency,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
