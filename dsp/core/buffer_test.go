package core

import "testing"

func TestEnsureLenReuse(t *testing.T) {
	buf := make([]float64, 4, 8)

	out := EnsureLen(buf, 6)
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}

	if cap(out) != cap(buf) {
		t.Fatalf("cap = %d, want %d", cap(out), cap(buf))
	}
}

func TestDeinterleaveInterleave(t *testing.T) {
	src := []float32{1, -1, 2, -2, 3, -3}
	dst := [][]float64{make([]float64, 4), make([]float64, 4)}

	frames := Deinterleave(dst, src)
	if frames != 3 {
		t.Fatalf("frames = %d, want 3", frames)
	}

	if dst[0][2] != 3 || dst[1][2] != -3 {
		t.Fatalf("unexpected planar data: %v", dst)
	}

	out := make([]float32, len(src))
	Interleave(out, dst, frames)

	for i := range src {
		if out[i] != src[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], src[i])
		}
	}
}

func TestDeinterleaveShortDestination(t *testing.T) {
	src := []float32{1, 1, 2, 2, 3, 3}
	dst := [][]float64{make([]float64, 2), make([]float64, 2)}

	if frames := Deinterleave(dst, src); frames != 2 {
		t.Fatalf("frames = %d, want 2", frames)
	}

	if frames := Deinterleave(nil, src); frames != 0 {
		t.Fatalf("frames = %d, want 0 for no channels", frames)
	}
}
