//go:build !fastmath

package dynamics

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-comprs/internal/testutil"
)

func TestNewDetector(t *testing.T) {
	tests := []struct {
		name     string
		mode     DetectorMode
		size     int
		capacity int
		wantErr  bool
	}{
		{"rms", DetectorModeRMS, 8, 8, false},
		{"peak with headroom", DetectorModePeak, 8, 32, false},
		{"zero size", DetectorModeRMS, 0, 8, true},
		{"capacity below size", DetectorModeRMS, 8, 4, true},
		{"unknown mode", DetectorMode(7), 8, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDetector(tt.mode, tt.size, tt.capacity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewDetector() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				return
			}

			if d.Len() != tt.size || d.Cap() != tt.capacity {
				t.Fatalf("Len/Cap = %d/%d, want %d/%d", d.Len(), d.Cap(), tt.size, tt.capacity)
			}

			if d.Level() != 0 {
				t.Fatalf("initial level = %v, want 0", d.Level())
			}
		})
	}
}

func TestParseDetectorMode(t *testing.T) {
	for _, mode := range []DetectorMode{DetectorModeRMS, DetectorModePeak} {
		got, err := ParseDetectorMode(" " + mode.String() + " ")
		if err != nil || got != mode {
			t.Fatalf("ParseDetectorMode(%q) = %v, %v", mode.String(), got, err)
		}
	}

	if _, err := ParseDetectorMode("vu"); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("ParseDetectorMode(vu) error = %v, want ErrUnknownParam", err)
	}
}

func TestDetectorRMSOfConstant(t *testing.T) {
	const n = 64

	for _, value := range []float64{1, -0.5, 0.25} {
		d, _ := NewDetector(DetectorModeRMS, n, n)

		var level float64
		for range n {
			level = d.Update(value)
		}

		if !testutil.NearlyEqual(level, math.Abs(value), 1e-12) {
			t.Fatalf("RMS of constant %v after one window = %v", value, level)
		}
	}
}

func TestDetectorRMSRampsOverWindow(t *testing.T) {
	const n = 4

	d, _ := NewDetector(DetectorModeRMS, n, n)

	for i := 1; i <= n; i++ {
		got := d.Update(1)
		want := math.Sqrt(float64(i) / n)

		if !testutil.NearlyEqual(got, want, 1e-12) {
			t.Fatalf("step %d: level = %v, want %v", i, got, want)
		}
	}
}

func TestDetectorMatchesDirectRMS(t *testing.T) {
	const n = 37

	d, _ := NewDetector(DetectorModeRMS, n, n)
	input := testutil.DeterministicNoise(11, 0.8, 5000)

	for i, x := range input {
		got := d.Update(x)

		start := max(0, i-n+1)
		sum := 0.0

		for _, v := range input[start : i+1] {
			sum += v * v
		}

		want := math.Sqrt(sum / n)
		if !testutil.NearlyEqual(got, want, 1e-9) {
			t.Fatalf("sample %d: level = %v, want %v", i, got, want)
		}
	}
}

func TestDetectorSumNeverNegative(t *testing.T) {
	d, _ := NewDetector(DetectorModeRMS, 16, 16)

	// A loud burst followed by near-silence is the cancellation worst case.
	for range 16 {
		d.Update(1e6)
	}

	for range 1000 {
		level := d.Update(1e-9)
		if math.IsNaN(level) || level < 0 {
			t.Fatalf("level = %v after cancellation", level)
		}

		if d.sumSquares < 0 {
			t.Fatalf("sum of squares = %v", d.sumSquares)
		}
	}
}

func TestDetectorRecoversFromNaNInput(t *testing.T) {
	d, _ := NewDetector(DetectorModeRMS, 8, 8)
	d.Update(math.NaN())

	if got := d.Level(); got != 0 {
		t.Fatalf("level after NaN = %v, want 0", got)
	}

	// The next exact refresh after the NaN leaves the window restores
	// the running sum.
	for range 16 {
		d.Update(0.5)
	}

	if got := d.Level(); !testutil.NearlyEqual(got, 0.5, 1e-12) {
		t.Fatalf("level after two windows of 0.5 = %v", got)
	}
}

func TestDetectorPeakFollower(t *testing.T) {
	const n = 100

	d, _ := NewDetector(DetectorModePeak, n, n)

	var level float64
	for range 10 * n {
		level = d.Update(-0.8)
	}

	if !testutil.NearlyEqual(level, 0.8, 1e-4) {
		t.Fatalf("peak level after 10 windows = %v, want ~0.8", level)
	}

	// One time constant of silence decays to 1/e.
	for range n {
		level = d.Update(0)
	}

	if want := 0.8 / math.E; !testutil.NearlyEqual(level, want, 1e-3) {
		t.Fatalf("peak level after one window of silence = %v, want %v", level, want)
	}
}

func TestDetectorDelayed(t *testing.T) {
	d, _ := NewDetector(DetectorModeRMS, 5, 5)
	for i := 1; i <= 7; i++ {
		d.Update(float64(i))
	}

	tests := []struct {
		k    int
		want float64
	}{
		{0, 7},
		{1, 6},
		{4, 3},
		{5, 3},
		{-1, 7},
	}

	for _, tt := range tests {
		if got := d.Delayed(tt.k); got != tt.want {
			t.Errorf("Delayed(%d) = %v, want %v", tt.k, got, tt.want)
		}
	}
}

func TestDetectorResize(t *testing.T) {
	d, _ := NewDetector(DetectorModeRMS, 4, 16)
	for _, x := range []float64{1, 2, 3, 4} {
		d.Update(x)
	}

	if err := d.Resize(2); err != nil {
		t.Fatalf("Resize(2) error = %v", err)
	}

	if d.Delayed(0) != 4 || d.Delayed(1) != 3 {
		t.Fatalf("shrink kept %v, %v; want newest samples 4, 3", d.Delayed(0), d.Delayed(1))
	}

	if want := 4.0*4 + 3*3; d.sumSquares != want {
		t.Fatalf("sum after shrink = %v, want %v", d.sumSquares, want)
	}

	if err := d.Resize(8); err != nil {
		t.Fatalf("Resize(8) error = %v", err)
	}

	if d.Delayed(0) != 4 || d.Delayed(1) != 3 || d.Delayed(2) != 0 {
		t.Fatal("grow did not zero-pad older history")
	}

	if err := d.Resize(17); err == nil {
		t.Fatal("Resize beyond capacity succeeded")
	}

	d.Reserve(32)

	if err := d.Resize(17); err != nil {
		t.Fatalf("Resize after Reserve error = %v", err)
	}

	if d.Delayed(0) != 4 {
		t.Fatalf("Reserve lost history: newest = %v", d.Delayed(0))
	}
}

func TestDetectorResizeDoesNotAllocate(t *testing.T) {
	d, _ := NewDetector(DetectorModeRMS, 441, 1323)
	sizes := []int{100, 1323, 1, 441}

	allocs := testing.AllocsPerRun(100, func() {
		for _, n := range sizes {
			_ = d.Resize(n)
			d.Update(0.3)
		}
	})

	if allocs != 0 {
		t.Fatalf("Resize allocated %.1f times per run", allocs)
	}
}

func TestDetectorSetModeAndReset(t *testing.T) {
	d, _ := NewDetector(DetectorModeRMS, 8, 8)
	for range 8 {
		d.Update(1)
	}

	if err := d.SetMode(DetectorModePeak); err != nil {
		t.Fatalf("SetMode error = %v", err)
	}

	if d.Delayed(0) != 1 {
		t.Fatal("SetMode dropped history")
	}

	if err := d.SetMode(DetectorMode(-1)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetMode(-1) error = %v", err)
	}

	d.Reset()

	if d.Level() != 0 || d.Delayed(0) != 0 || d.sumSquares != 0 {
		t.Fatal("Reset left state behind")
	}
}
