// Package wavio reads and writes interleaved WAV audio for the command-line
// tools.
package wavio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mjibson/go-dsp/wav"
)

// Format selects the sample encoding written by a Writer.
type Format int

const (
	// Float32 writes IEEE float samples (WAVE_FORMAT_IEEE_FLOAT).
	Float32 Format = iota
	// PCM16 writes clipped 16-bit integer samples.
	PCM16
)

const (
	headerSize = 44

	formatPCM   = 1
	formatFloat = 3
)

var errClosed = errors.New("wav writer closed")

// Audio is decoded interleaved audio.
type Audio struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames returns the number of sample frames.
func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}

	return len(a.Samples) / a.Channels
}

// ReadFile decodes a whole WAV file.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Read decodes a whole WAV stream. 8-bit, 16-bit and float encodings are
// supported by the underlying decoder.
func Read(r io.Reader) (*Audio, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("wav header: %w", err)
	}

	if w.NumChannels == 0 {
		return nil, fmt.Errorf("wav has no channels")
	}

	audio := &Audio{
		SampleRate: int(w.SampleRate),
		Channels:   int(w.NumChannels),
		Samples:    make([]float32, 0, w.Samples),
	}

	// go-dsp rounds its sample count down to a multiple of 8, so read
	// that many in chunks and the rest one sample at a time until EOF.
	chunk := 4096 * audio.Channels

	for remaining := w.Samples; remaining > 0; {
		n := min(chunk, remaining)

		samples, err := w.ReadFloats(n)
		if err != nil {
			return nil, fmt.Errorf("wav data: %w", err)
		}

		audio.Samples = append(audio.Samples, samples...)
		remaining -= n
	}

	for {
		samples, err := w.ReadFloats(1)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("wav data: %w", err)
		}

		audio.Samples = append(audio.Samples, samples...)
	}

	if w.AudioFormat == formatPCM {
		recenterPCM(audio.Samples, w.BitsPerSample)
	}

	// Drop a trailing partial frame.
	audio.Samples = audio.Samples[:audio.Frames()*audio.Channels]

	return audio, nil
}

// recenterPCM maps go-dsp's unsigned [0, 1] integer decoding back to
// signed full scale, with integer zero landing exactly on 0.
func recenterPCM(samples []float32, bits uint16) {
	steps, zero := 65535.0, 32768.0
	if bits == 8 {
		steps, zero = 255, 128
	}

	for i, v := range samples {
		code := math.Round(float64(v) * steps)
		samples[i] = float32((code - zero) / zero)
	}
}

// Writer streams interleaved samples to a WAV file and patches the header
// sizes on Close.
type Writer struct {
	w          io.WriteSeeker
	closer     io.Closer
	format     Format
	sampleRate int
	channels   int
	dataSize   int
	buf        []byte
	closed     bool
}

// Create opens path for writing.
func Create(path string, sampleRate, channels int, format Format) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w, err := NewWriter(f, sampleRate, channels, format)
	if err != nil {
		f.Close()
		return nil, err
	}

	w.closer = f

	return w, nil
}

// NewWriter writes a placeholder header to ws and returns a Writer.
func NewWriter(ws io.WriteSeeker, sampleRate, channels int, format Format) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav writer: invalid rate %d or channels %d", sampleRate, channels)
	}

	if format != Float32 && format != PCM16 {
		return nil, fmt.Errorf("wav writer: unknown format %d", format)
	}

	if _, err := ws.Write(make([]byte, headerSize)); err != nil {
		return nil, err
	}

	return &Writer{
		w:          ws,
		format:     format,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Write appends interleaved samples.
func (w *Writer) Write(samples []float32) error {
	if w.closed {
		return errClosed
	}

	width := w.bytesPerSample()
	need := len(samples) * width

	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}

	buf := w.buf[:need]

	for i, s := range samples {
		switch w.format {
		case Float32:
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
		case PCM16:
			s = max(-1, min(s, 1))
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
		}
	}

	n, err := w.w.Write(buf)
	w.dataSize += n

	return err
}

// Close rewrites the header with the final sizes and closes the file when
// the Writer opened it.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	err := w.writeHeader()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

func (w *Writer) writeHeader() error {
	width := w.bytesPerSample()
	blockAlign := w.channels * width

	audioFormat := uint16(formatFloat)
	if w.format == PCM16 {
		audioFormat = formatPCM
	}

	header := make([]byte, headerSize)

	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+w.dataSize))
	copy(header[8:], "WAVE")

	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], audioFormat)
	binary.LittleEndian.PutUint16(header[22:], uint16(w.channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(w.sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:], uint16(8*width))

	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(w.dataSize))

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err := w.w.Write(header)

	return err
}

func (w *Writer) bytesPerSample() int {
	if w.format == PCM16 {
		return 2
	}

	return 4
}

// WriteFile writes a whole interleaved buffer to path.
func WriteFile(path string, audio *Audio, format Format) error {
	w, err := Create(path, audio.SampleRate, audio.Channels, format)
	if err != nil {
		return err
	}

	if err := w.Write(audio.Samples); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}
