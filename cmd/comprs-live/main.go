// Command comprs-live compresses a live input device into the default
// output device.
//
// Parameters can be changed while running by typing "name value" lines on
// stdin, using the same names and units as the flags:
//
//	threshold -24
//	ratio 6
//	attack 3
//
// Usage:
//
//	comprs-live [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-comprs/internal/cli"
)

func main() {
	fs := flag.NewFlagSet("comprs-live", flag.ExitOnError)
	params := cli.RegisterParamFlags(fs)

	var (
		sampleRate int
		channels   int
		period     int
		device     string
		meterEvery time.Duration
		logLevel   string
	)

	fs.IntVar(&sampleRate, "rate", 48000, "device sample rate in Hz")
	fs.IntVar(&channels, "channels", 2, "number of channels")
	fs.IntVar(&period, "period", 256, "device period in frames")
	fs.StringVar(&device, "device", "", "substring of the capture device name (default device if empty)")
	fs.DurationVar(&meterEvery, "meter", time.Second, "meter log interval (0 disables)")
	fs.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: comprs-live [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Compresses a capture device into the playback device.\n")
		fmt.Fprintf(os.Stderr, "Type \"name value\" on stdin to change a parameter.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[1:])

	logger, err := cli.NewLogger(os.Stderr, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := liveConfig{
		params:     params,
		sampleRate: sampleRate,
		channels:   channels,
		period:     period,
		device:     device,
		meterEvery: meterEvery,
		controls:   os.Stdin,
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("comprs-live failed")
		stop()
		os.Exit(1)
	}
}

type liveConfig struct {
	params     *cli.ParamFlags
	sampleRate int
	channels   int
	period     int
	device     string
	meterEvery time.Duration
	controls   io.Reader
}

func run(ctx context.Context, cfg liveConfig, logger *logrus.Logger) error {
	proc, err := newProcessor(cfg, logger)
	if err != nil {
		return err
	}

	dev, err := openDuplex(cfg, proc.process, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := dev.Start(); err != nil {
		return err
	}

	logger.WithFields(cfg.params.Fields()).WithFields(logrus.Fields{
		"rate":     cfg.sampleRate,
		"channels": cfg.channels,
		"period":   cfg.period,
	}).Info("compressing; Ctrl-C to stop")

	go readControls(ctx, cfg.controls, proc.store, logger)

	return proc.monitor(ctx, cfg.meterEvery, logger)
}
