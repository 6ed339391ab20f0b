// Package delay provides a circular sample history that can be resized in
// place between audio blocks.
package delay

import (
	"errors"
	"fmt"
)

var errCapacity = errors.New("delay capacity exceeded")

// Line is a circular delay line holding the most recent Len() samples.
//
// Storage for Cap() samples is reserved up front so Resize never
// allocates while the length stays within capacity.
type Line struct {
	buffer   []float64
	writePos int
}

// NewWithCapacity returns a zeroed delay line of length size that can later
// grow up to capacity samples without reallocating.
func NewWithCapacity(size, capacity int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}

	if capacity < size {
		return nil, fmt.Errorf("delay capacity %d below size %d: %w", capacity, size, errCapacity)
	}

	return &Line{buffer: make([]float64, size, capacity)}, nil
}

// Len returns the current history length.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Cap returns the reserved history capacity.
func (d *Line) Cap() int {
	return cap(d.buffer)
}

// Write appends one sample, evicting the oldest, and returns the evicted value.
func (d *Line) Write(sample float64) float64 {
	evicted := d.buffer[d.writePos]
	d.buffer[d.writePos] = sample

	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}

	return evicted
}

// Wrapped reports whether the last Write completed a full cycle of the
// history, i.e. the write head is back at the start of storage.
func (d *Line) Wrapped() bool {
	return d.writePos == 0
}

// Read returns the sample written delay writes ago; Read(1) is the most
// recent sample and Read(Len()) the oldest.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	readPos := ((d.writePos-delay)%size + size) % size

	return d.buffer[readPos]
}

// Contents returns the live history storage in unspecified order. The
// slice aliases the line and must not be retained across writes.
func (d *Line) Contents() []float64 {
	return d.buffer
}

// Resize changes the history length, keeping the most recent
// min(old, size) samples and zero-filling older positions. It fails when
// size exceeds the reserved capacity.
func (d *Line) Resize(size int) error {
	if size <= 0 {
		return fmt.Errorf("delay size must be > 0: %d", size)
	}

	if size > cap(d.buffer) {
		return fmt.Errorf("delay resize to %d beyond %d: %w", size, cap(d.buffer), errCapacity)
	}

	old := len(d.buffer)
	if size == old {
		return nil
	}

	d.linearize()

	if size < old {
		copy(d.buffer[:size], d.buffer[old-size:old])
		d.buffer = d.buffer[:size]
	} else {
		d.buffer = d.buffer[:size]
		pad := size - old
		copy(d.buffer[pad:], d.buffer[:old])

		for i := range pad {
			d.buffer[i] = 0
		}
	}

	d.writePos = 0

	return nil
}

// linearize rotates storage so the oldest sample sits at index 0 and the
// newest at Len()-1, leaving the write head at 0.
func (d *Line) linearize() {
	reverse(d.buffer[:d.writePos])
	reverse(d.buffer[d.writePos:])
	reverse(d.buffer)
	d.writePos = 0
}

// Reserve grows the reserved capacity to at least capacity samples,
// preserving history. It allocates and therefore belongs outside the
// realtime path.
func (d *Line) Reserve(capacity int) {
	if capacity <= cap(d.buffer) {
		return
	}

	d.linearize()

	grown := make([]float64, len(d.buffer), capacity)
	copy(grown, d.buffer)
	d.buffer = grown
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}

	d.writePos = 0
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
