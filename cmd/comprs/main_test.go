package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-comprs/dsp/dynamics"
	"github.com/cwbudde/algo-comprs/internal/cli"
	"github.com/cwbudde/algo-comprs/internal/wavio"
)

func testOptions(t *testing.T, args ...string) options {
	t.Helper()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts := options{params: cli.RegisterParamFlags(fs), block: 512, demoRate: 44100}

	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	return opts
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

func TestPrintCurve(t *testing.T) {
	var buf bytes.Buffer

	p := dynamics.DefaultParams()
	if err := printCurve(&buf, p); err != nil {
		t.Fatalf("printCurve() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 24 {
		t.Fatalf("got %d lines, want header + 23 rows", len(lines))
	}

	last := strings.Fields(lines[len(lines)-1])
	if len(last) != 3 || last[0] != "6.0" || last[1] != "-6.00" || last[2] != "-12.00" {
		t.Fatalf("last row = %q", lines[len(lines)-1])
	}
}

func TestRunDemoWritesOutputAndTrace(t *testing.T) {
	dir := t.TempDir()

	opts := testOptions(t, "-ratio", "100", "-attack", "5")
	opts.demo = true
	opts.demoRate = 8000
	opts.out = filepath.Join(dir, "demo.wav")
	opts.trace = filepath.Join(dir, "trace.csv")

	if err := run(context.Background(), opts, quietLogger()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	audio, err := wavio.ReadFile(opts.out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if audio.Frames() != 8000 || audio.Channels != 1 {
		t.Fatalf("output has %d frames, %d channels", audio.Frames(), audio.Channels)
	}

	f, err := os.Open(opts.trace)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	if len(rows) != 8001 || rows[0][0] != "sample" {
		t.Fatalf("trace has %d rows, header %v", len(rows), rows[0])
	}

	// The 0 dB quarter is compressed hard at ratio 100.
	minMultiplier := 1.0

	for _, row := range rows[4001:6000] {
		m, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			t.Fatalf("ParseFloat(%q) error = %v", row[4], err)
		}

		minMultiplier = min(minMultiplier, m)
	}

	if minMultiplier > 0.5 {
		t.Fatalf("full-scale quarter multiplier never dropped below %v", minMultiplier)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		opts func(options) options
	}{
		{"nothing to do", func(o options) options { return o }},
		{"no input", func(o options) options {
			o.out = filepath.Join(t.TempDir(), "x.wav")
			return o
		}},
		{"bad block", func(o options) options {
			o.out = "x.wav"
			o.block = 0
			return o
		}},
		{"missing file", func(o options) options {
			o.in = filepath.Join(t.TempDir(), "missing.wav")
			o.out = "x.wav"
			return o
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(context.Background(), tt.opts(testOptions(t)), quietLogger()); err == nil {
				t.Fatal("run() succeeded")
			}
		})
	}
}

func TestRunRejectsInvalidParams(t *testing.T) {
	opts := testOptions(t, "-window", "500")
	opts.demo = true
	opts.out = filepath.Join(t.TempDir(), "x.wav")

	if err := run(context.Background(), opts, quietLogger()); err == nil {
		t.Fatal("run() accepted a 500 ms window")
	}
}

func TestRendererStereoFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")

	samples := make([]float32, 2*4410)
	for i := range samples {
		samples[i] = 0.9
	}

	if err := wavio.WriteFile(in, &wavio.Audio{SampleRate: 44100, Channels: 2, Samples: samples}, wavio.Float32); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	opts := testOptions(t, "-linked", "-lookahead", "2")
	opts.in = in
	opts.out = filepath.Join(dir, "out.wav")

	if err := run(context.Background(), opts, quietLogger()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	out, err := wavio.ReadFile(opts.out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	last := out.Samples[len(out.Samples)-1]
	if last >= 0.9*0.8 || last <= 0 {
		t.Fatalf("steady-state output %v not compressed", last)
	}
}

func TestRenderCompensatesLookahead(t *testing.T) {
	const frames = 3000

	opts := testOptions(t, "-ratio", "1", "-lookahead", "5")

	r, err := newRenderer(opts.params, 44100, 2, 100, quietLogger())
	if err != nil {
		t.Fatalf("newRenderer() error = %v", err)
	}

	if r.latency != 221 {
		t.Fatalf("latency = %d, want 221", r.latency)
	}

	input := make([]float32, 2*frames)
	for i := range input {
		input[i] = float32((i*37)%101)/50 - 1
	}

	samples := append([]float32(nil), input...)
	r.render(samples)

	for i := range input {
		if samples[i] != input[i] {
			t.Fatalf("sample %d = %v, want %v", i, samples[i], input[i])
		}
	}
}

func TestRenderTracedCompensatesLookahead(t *testing.T) {
	const frames = 1000

	opts := testOptions(t, "-ratio", "1", "-lookahead", "2")

	r, err := newRenderer(opts.params, 44100, 1, 64, quietLogger())
	if err != nil {
		t.Fatalf("newRenderer() error = %v", err)
	}

	input := make([]float32, frames)
	for i := range input {
		input[i] = float32(i%50) / 50
	}

	samples := append([]float32(nil), input...)

	var buf bytes.Buffer
	if err := r.renderTraced(samples, &buf); err != nil {
		t.Fatalf("renderTraced() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	if len(rows) != frames+1 {
		t.Fatalf("trace has %d rows, want %d", len(rows), frames+1)
	}

	for i, row := range rows[1:] {
		if row[0] != strconv.Itoa(i) || row[1] != row[2] {
			t.Fatalf("row %d = %v, want index %d with output equal to input", i, row, i)
		}
	}

	for i := range input {
		if samples[i] != input[i] {
			t.Fatalf("sample %d = %v, want %v", i, samples[i], input[i])
		}
	}
}
