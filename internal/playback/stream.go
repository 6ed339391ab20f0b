// Package playback auditions rendered audio through the default output
// device.
package playback

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source fills stereo interleaved float32 frames.
type Source interface {
	Process(dst []float32)
	Finished() bool
}

// StreamReader adapts a Source to the little-endian float32 byte stream
// expected by the audio context.
type StreamReader struct {
	mu     sync.Mutex
	source Source
	buf    []float32
}

// NewStreamReader wraps source.
func NewStreamReader(source Source) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}

	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}

	r.buf = r.buf[:need]
	r.source.Process(r.buf)

	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}

	n := frames * 8
	if r.source.Finished() {
		return n, io.EOF
	}

	return n, nil
}

// Close implements io.Closer.
func (r *StreamReader) Close() error { return nil }

// Buffer is a Source over an interleaved buffer of any channel count.
// Mono is duplicated to both outputs; channels beyond two are dropped.
type Buffer struct {
	mu       sync.Mutex
	samples  []float32
	channels int
	pos      int
}

// NewBuffer returns a Source playing samples once.
func NewBuffer(samples []float32, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("playback: invalid channel count %d", channels)
	}

	return &Buffer{samples: samples, channels: channels}, nil
}

// Process implements Source.
func (b *Buffer) Process(dst []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := len(b.samples) / b.channels

	for i := 0; i+1 < len(dst); i += 2 {
		if b.pos >= frames {
			dst[i], dst[i+1] = 0, 0
			continue
		}

		base := b.pos * b.channels
		left := b.samples[base]
		right := left

		if b.channels > 1 {
			right = b.samples[base+1]
		}

		dst[i], dst[i+1] = left, right
		b.pos++
	}
}

// Finished implements Source.
func (b *Buffer) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pos*b.channels >= len(b.samples)
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})

	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}

	return audioContext, nil
}

// Play streams source at sampleRate and blocks until it finishes or ctx is
// done.
func Play(ctx context.Context, sampleRate int, source Source) error {
	audioCtx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return err
	}

	reader := NewStreamReader(source)

	player, err := audioCtx.NewPlayerF32(reader)
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	defer player.Close()

	player.Play()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}
