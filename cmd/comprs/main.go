// Command comprs compresses WAV files offline.
//
// Usage:
//
//	comprs [flags] -in input.wav -out output.wav
//	comprs [flags] -demo -out demo.wav
//	comprs [flags] -curve
//
// Examples:
//
//	comprs -threshold -18 -ratio 3 -attack 5 -release 80 -in mix.wav -out mix-comp.wav
//	comprs -linked -rms-mix 1 -lookahead 5 -in drums.wav -out drums-comp.wav
//	comprs -demo -ratio 100 -attack 5 -trace envelope.csv -out demo.wav
//	comprs -curve -threshold -10 -ratio 4 -knee 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	ossignal "os/signal"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-comprs/dsp/core"
	"github.com/cwbudde/algo-comprs/dsp/signal"
	"github.com/cwbudde/algo-comprs/internal/cli"
	"github.com/cwbudde/algo-comprs/internal/playback"
	"github.com/cwbudde/algo-comprs/internal/wavio"
)

type options struct {
	params *cli.ParamFlags

	in       string
	out      string
	pcm16    bool
	block    int
	demo     bool
	demoRate float64
	curve    bool
	trace    string
	play     bool
	logLevel string
}

func main() {
	fs := flag.NewFlagSet("comprs", flag.ExitOnError)
	opts := options{params: cli.RegisterParamFlags(fs)}

	fs.StringVar(&opts.in, "in", "", "input WAV file")
	fs.StringVar(&opts.out, "out", "", "output WAV file")
	fs.BoolVar(&opts.pcm16, "pcm16", false, "write 16-bit PCM instead of 32-bit float")
	fs.IntVar(&opts.block, "block", 512, "processing block size in frames")
	fs.BoolVar(&opts.demo, "demo", false, "render a stepped-level test sine instead of reading -in")
	fs.Float64Var(&opts.demoRate, "demo-rate", 44100, "sample rate of the -demo signal")
	fs.BoolVar(&opts.curve, "curve", false, "print the static transfer curve and exit")
	fs.StringVar(&opts.trace, "trace", "", "write a per-sample CSV envelope trace of channel 0")
	fs.BoolVar(&opts.play, "play", false, "play the result after rendering")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: comprs [flags] -in input.wav -out output.wav\n\n")
		fmt.Fprintf(os.Stderr, "Compresses audio with a sliding-window RMS compressor.\n")
		fmt.Fprintf(os.Stderr, "Times are in milliseconds, gains and levels in dB.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  comprs -threshold -18 -ratio 3 -in mix.wav -out mix-comp.wav\n")
		fmt.Fprintf(os.Stderr, "  comprs -demo -ratio 100 -trace envelope.csv -out demo.wav\n")
		fmt.Fprintf(os.Stderr, "  comprs -curve -knee 10\n")
	}

	_ = fs.Parse(os.Args[1:])

	logger, err := cli.NewLogger(os.Stderr, opts.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.WithError(err).Error("comprs failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *logrus.Logger) error {
	if opts.curve {
		return printCurve(os.Stdout, opts.params.Params())
	}

	if opts.out == "" && !opts.play && opts.trace == "" {
		return errors.New("nothing to do: set -out, -play or -trace")
	}

	if opts.block <= 0 {
		return fmt.Errorf("block size must be > 0: %d", opts.block)
	}

	audio, err := loadInput(opts)
	if err != nil {
		return err
	}

	peak, rms := levels(audio.Samples)

	logger.WithFields(logrus.Fields{
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"frames":      audio.Frames(),
		"peak_db":     round2(core.GainToDB(peak)),
		"rms_db":      round2(core.GainToDB(rms)),
	}).Info("input loaded")

	r, err := newRenderer(opts.params, audio.SampleRate, audio.Channels, opts.block, logger)
	if err != nil {
		return err
	}

	logger.WithFields(opts.params.Fields()).WithField("latency", r.latency).Info("compressor ready")

	if opts.trace != "" {
		f, err := os.Create(opts.trace)
		if err != nil {
			return err
		}

		err = r.renderTraced(audio.Samples, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}

		if err != nil {
			return fmt.Errorf("trace: %w", err)
		}

		logger.WithField("path", opts.trace).Info("trace written")
	} else {
		r.render(audio.Samples)
	}

	logger.WithFields(r.summary()).Info("render finished")

	if opts.out != "" {
		format := wavio.Float32
		if opts.pcm16 {
			format = wavio.PCM16
		}

		if err := wavio.WriteFile(opts.out, audio, format); err != nil {
			return fmt.Errorf("write %s: %w", opts.out, err)
		}

		logger.WithField("path", opts.out).Info("output written")
	}

	if opts.play {
		source, err := playback.NewBuffer(audio.Samples, audio.Channels)
		if err != nil {
			return err
		}

		logger.Info("playing")

		if err := playback.Play(ctx, audio.SampleRate, source); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	return nil
}

func loadInput(opts options) (*wavio.Audio, error) {
	if opts.demo {
		g := signal.NewGenerator([]core.ProcessorOption{core.WithSampleRate(opts.demoRate)})

		samples := int(opts.demoRate)

		mono, err := g.SteppedSine(demoFrequency(opts.demoRate), signal.DemoLevelsDB, samples)
		if err != nil {
			return nil, err
		}

		audio := &wavio.Audio{SampleRate: int(opts.demoRate), Channels: 1, Samples: make([]float32, samples)}
		for i, v := range mono {
			audio.Samples[i] = float32(v)
		}

		return audio, nil
	}

	if opts.in == "" {
		return nil, errors.New("no input: set -in or -demo")
	}

	audio, err := wavio.ReadFile(opts.in)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.in, err)
	}

	return audio, nil
}

// levels returns the peak and RMS of interleaved samples across channels.
func levels(samples []float32) (peak, rms float64) {
	data := make([]float64, len(samples))
	for i, v := range samples {
		data[i] = float64(v)
	}

	return signal.Peak(data), signal.RMS(data)
}

// demoFrequency matches a phase step of 0.1 rad per sample.
func demoFrequency(sampleRate float64) float64 {
	return 0.1 * sampleRate / (2 * math.Pi)
}
