package cli

import (
	"bytes"
	"errors"
	"flag"
	"math"
	"strings"
	"testing"

	"github.com/cwbudde/algo-comprs/dsp/dynamics"
)

func TestParamFlagsDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	pf := RegisterParamFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := pf.Params()
	want := dynamics.DefaultParams()

	for _, id := range dynamics.ParamIDs() {
		if math.Abs(got.Get(id)-want.Get(id)) > 1e-12 {
			t.Errorf("%v = %v, want %v", id, got.Get(id), want.Get(id))
		}
	}

	if _, err := pf.Store(); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
}

func TestParamFlagsUnits(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	pf := RegisterParamFlags(fs)

	args := []string{"-attack", "5", "-window", "20", "-output-gain", "6", "-linked", "-detector", "peak"}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p := pf.Params()
	if p.Attack != 0.005 || p.Window != 0.02 || math.Abs(p.OutputGain-1.9953) > 1e-4 {
		t.Fatalf("params = %+v", p)
	}

	opts, err := pf.Options(2, nil)
	if err != nil || len(opts) != 4 {
		t.Fatalf("Options() = %d options, %v", len(opts), err)
	}
}

func TestParamFlagsRejectInvalid(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	pf := RegisterParamFlags(fs)

	if err := fs.Parse([]string{"-window", "100"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := pf.Store(); !errors.Is(err, dynamics.ErrOutOfRange) {
		t.Fatalf("Store() error = %v, want ErrOutOfRange", err)
	}

	pf.Detector = "vu"
	if _, err := pf.Options(2, nil); !errors.Is(err, dynamics.ErrUnknownParam) {
		t.Fatalf("Options() error = %v", err)
	}
}

func TestParseControl(t *testing.T) {
	tests := []struct {
		line    string
		id      dynamics.ParamID
		value   float64
		wantErr bool
	}{
		{"ratio 8", dynamics.ParamRatio, 8, false},
		{"attack=10", dynamics.ParamAttack, 0.01, false},
		{"output_gain -20", dynamics.ParamOutputGain, 0.1, false},
		{"threshold", 0, 0, true},
		{"bogus 1", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			id, value, err := ParseControl(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseControl() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				return
			}

			if id != tt.id || math.Abs(value-tt.value) > 1e-12 {
				t.Fatalf("ParseControl() = %v %v, want %v %v", id, value, tt.id, tt.value)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("hidden")
	logger.WithField("k", 1).Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "k=1") {
		t.Fatalf("log output = %q", out)
	}

	if _, err := NewLogger(&buf, "loud"); err == nil {
		t.Fatal("unknown level accepted")
	}
}
