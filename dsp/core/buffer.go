package core

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen(buf []float64, n int) []float64 {
	if n <= 0 {
		return buf[:0]
	}

	if cap(buf) >= n {
		return buf[:n]
	}

	return make([]float64, n)
}

// Deinterleave splits interleaved float32 frames into planar float64
// channels. It returns the number of frames written, bounded by the
// shortest destination channel.
func Deinterleave(dst [][]float64, src []float32) int {
	channels := len(dst)
	if channels == 0 {
		return 0
	}

	frames := len(src) / channels
	for _, ch := range dst {
		frames = min(frames, len(ch))
	}

	for i := range frames {
		base := i * channels
		for ch := range channels {
			dst[ch][i] = float64(src[base+ch])
		}
	}

	return frames
}

// Interleave writes the first frames samples of planar channels into
// interleaved float32 dst.
func Interleave(dst []float32, src [][]float64, frames int) {
	channels := len(src)
	for i := range frames {
		base := i * channels
		for ch := range channels {
			dst[base+ch] = float32(src[ch][i])
		}
	}
}
