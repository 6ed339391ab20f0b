package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-comprs/dsp/core"
	"github.com/cwbudde/algo-comprs/dsp/dynamics"
	"github.com/cwbudde/algo-comprs/internal/cli"
)

// processor owns the coordinator driven from the device callback and
// forwards latency changes to the monitor goroutine.
type processor struct {
	comp     *dynamics.Coordinator
	store    *dynamics.ParamStore
	channels int
	latency  chan int
}

func newProcessor(cfg liveConfig, logger logrus.FieldLogger) (*processor, error) {
	if cfg.channels <= 0 {
		return nil, fmt.Errorf("channels must be > 0: %d", cfg.channels)
	}

	store, err := cfg.params.Store()
	if err != nil {
		return nil, err
	}

	opts, err := cfg.params.Options(cfg.channels, logger)
	if err != nil {
		return nil, err
	}

	p := &processor{
		store:    store,
		channels: cfg.channels,
		latency:  make(chan int, 1),
	}

	opts = append(opts, dynamics.WithLatencyFunc(p.reportLatency))

	comp, err := dynamics.NewCoordinator(store, opts...)
	if err != nil {
		return nil, err
	}

	if err := comp.Prepare(float64(cfg.sampleRate), cfg.period); err != nil {
		return nil, err
	}

	p.comp = comp

	return p, nil
}

// reportLatency runs on the audio goroutine and must not block; a pending
// value is replaced by the newest one.
func (p *processor) reportLatency(samples int) {
	select {
	case p.latency <- samples:
		return
	default:
	}

	select {
	case <-p.latency:
	default:
	}

	select {
	case p.latency <- samples:
	default:
	}
}

// process is the device callback body: copy input to output and compress
// it in place.
func (p *processor) process(out, in []float32) {
	n := copy(out, in)
	clear(out[n:])
	p.comp.ProcessInterleaved(out[:n])
}

// monitor logs latency changes and periodic meters until ctx is done.
func (p *processor) monitor(ctx context.Context, every time.Duration, logger logrus.FieldLogger) error {
	var tick <-chan time.Time

	if every > 0 {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping")
			return nil
		case samples := <-p.latency:
			logger.WithField("samples", samples).Info("latency changed")
		case <-tick:
			for ch := range p.channels {
				m := p.comp.Meter(ch)
				logger.WithFields(logrus.Fields{
					"channel":      ch,
					"reduction_db": round1(m.GainReductionDB),
					"in_peak":      round1(core.GainToDB(m.InputPeak)),
					"out_peak":     round1(core.GainToDB(m.OutputPeak)),
				}).Info("meter")
			}
		}
	}
}

// readControls applies "name value" lines from r to store until r ends or
// ctx is done.
func readControls(ctx context.Context, r io.Reader, store *dynamics.ParamStore, logger logrus.FieldLogger) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		id, value, err := cli.ParseControl(line)
		if err == nil {
			err = store.Set(id, value)
		}

		if err != nil {
			logger.WithError(err).Warn("control rejected")
			continue
		}

		logger.WithFields(logrus.Fields{"param": id.String(), "value": value}).Info("parameter changed")
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
