package dynamics

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-comprs/dsp/core"
)

// State is the coordinator lifecycle stage.
type State int32

const (
	// StateUninitialized means Prepare has not run; blocks pass through.
	StateUninitialized State = iota
	// StateInitialized means buffers exist but no block has been processed.
	StateInitialized
	// StateRunning means blocks are being processed.
	StateRunning
	// StateResizing is held while windows are rebuilt at a block boundary.
	StateResizing
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateResizing:
		return "resizing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// LatencyFunc receives the total added latency in samples whenever it
// changes. It may be called from the audio goroutine and must not block.
type LatencyFunc func(samples int)

// Config holds coordinator construction settings.
type Config struct {
	core.ProcessorConfig

	Linked       bool
	DetectorMode DetectorMode
	OnLatency    LatencyFunc
	Logger       logrus.FieldLogger
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns an unlinked stereo RMS configuration.
func DefaultConfig() Config {
	return Config{
		ProcessorConfig: core.DefaultProcessorConfig(),
		DetectorMode:    DetectorModeRMS,
	}
}

// WithChannels sets the number of channels.
func WithChannels(channels int) Option {
	return func(cfg *Config) {
		core.WithChannels(channels)(&cfg.ProcessorConfig)
	}
}

// WithSampleRate sets the sample rate used by the first Prepare call made
// through PrepareDefault.
func WithSampleRate(sampleRate float64) Option {
	return func(cfg *Config) {
		core.WithSampleRate(sampleRate)(&cfg.ProcessorConfig)
	}
}

// WithMaxBlockSize sets the block size used by PrepareDefault.
func WithMaxBlockSize(frames int) Option {
	return func(cfg *Config) {
		core.WithMaxBlockSize(frames)(&cfg.ProcessorConfig)
	}
}

// WithLinked enables the shared level detector.
func WithLinked(linked bool) Option {
	return func(cfg *Config) {
		cfg.Linked = linked
	}
}

// WithDetectorMode selects the detection algorithm for every detector.
func WithDetectorMode(mode DetectorMode) Option {
	return func(cfg *Config) {
		cfg.DetectorMode = mode
	}
}

// WithLatencyFunc registers a latency listener.
func WithLatencyFunc(fn LatencyFunc) Option {
	return func(cfg *Config) {
		cfg.OnLatency = fn
	}
}

// WithLogger sets the logger used for lifecycle events outside the audio
// path.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(cfg *Config) {
		if logger != nil {
			cfg.Logger = logger
		}
	}
}

// Metrics is a metering snapshot for one channel.
type Metrics struct {
	// AverageGain is the smoothed detected level before gain reduction.
	AverageGain float64
	// ReducedGain is AverageGain after the transfer curve.
	ReducedGain float64
	// GainReductionDB is the applied reduction, <= 0.
	GainReductionDB float64
	// InputPeak and OutputPeak are the largest magnitudes in the last block.
	InputPeak  float64
	OutputPeak float64
}

type meterSlot struct {
	averageGain     atomic.Uint64
	reducedGain     atomic.Uint64
	gainReductionDB atomic.Uint64
	inputPeak       atomic.Uint64
	outputPeak      atomic.Uint64
}

func (m *meterSlot) publish(c *Channel) {
	m.averageGain.Store(math.Float64bits(c.averageGain))
	m.reducedGain.Store(math.Float64bits(c.averageGain * c.multiplier))
	m.gainReductionDB.Store(math.Float64bits(min(mathGainToDB(c.multiplier), 0)))
	m.inputPeak.Store(math.Float64bits(c.inputPeak))
	m.outputPeak.Store(math.Float64bits(c.outputPeak))
}

func (m *meterSlot) load() Metrics {
	return Metrics{
		AverageGain:     math.Float64frombits(m.averageGain.Load()),
		ReducedGain:     math.Float64frombits(m.reducedGain.Load()),
		GainReductionDB: math.Float64frombits(m.gainReductionDB.Load()),
		InputPeak:       math.Float64frombits(m.inputPeak.Load()),
		OutputPeak:      math.Float64frombits(m.outputPeak.Load()),
	}
}

// Coordinator runs one Channel per audio channel and, when linked, one
// shared Detector fed once per frame with the average of the frame's
// input-gained channel samples.
//
// Parameter values come from a ParamStore snapshot taken once per block.
// Window and lookahead changes are applied at the start of the next block.
// ProcessBlock and ProcessInterleaved must be called from one goroutine;
// Meter, Latency and State may be read from any goroutine.
type Coordinator struct {
	cfg   Config
	store *ParamStore

	sampleRate   float64
	maxBlockSize int
	capacity     int
	window       int

	channels []*Channel
	shared   *Detector

	params  Params
	version uint64

	link   []float64
	planar [][]float64

	meters  []meterSlot
	latency atomic.Int64
	state   atomic.Int32
}

// NewCoordinator creates an unprepared coordinator reading from store.
func NewCoordinator(store *ParamStore, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("coordinator needs a parameter store: %w", ErrNotPrepared)
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := validateDetectorMode(cfg.DetectorMode); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		cfg.Logger = discard
	}

	c := &Coordinator{
		cfg:    cfg,
		store:  store,
		meters: make([]meterSlot, cfg.Channels),
	}
	c.latency.Store(-1)

	return c, nil
}

// PrepareDefault calls Prepare with the configured sample rate and block size.
func (c *Coordinator) PrepareDefault() error {
	return c.Prepare(c.cfg.SampleRate, c.cfg.MaxBlockSize)
}

// Prepare (re)initializes every channel for sampleRate and blocks of up to
// maxBlockSize frames. It allocates and must not run concurrently with
// processing. Average gains and windows start from zero.
func (c *Coordinator) Prepare(sampleRate float64, maxBlockSize int) error {
	if err := validateSampleRate(sampleRate); err != nil {
		return fmt.Errorf("coordinator %w", err)
	}

	if maxBlockSize <= 0 {
		return fmt.Errorf("max block size must be > 0: %d: %w", maxBlockSize, ErrOutOfRange)
	}

	params, version := c.store.Snapshot()

	c.sampleRate = sampleRate
	c.maxBlockSize = maxBlockSize
	c.capacity = c.capacityFor(sampleRate)
	c.window = c.windowFor(params.Window)

	channels := make([]*Channel, c.cfg.Channels)
	for i := range channels {
		ch, err := NewChannel(c.cfg.DetectorMode, c.window, c.capacity)
		if err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}

		channels[i] = ch
	}

	c.channels = channels
	c.shared = nil

	if c.cfg.Linked {
		shared, err := NewDetector(c.cfg.DetectorMode, c.window, c.capacity)
		if err != nil {
			return fmt.Errorf("shared detector: %w", err)
		}

		c.shared = shared
	}

	c.link = core.EnsureLen(c.link, maxBlockSize)

	if len(c.planar) != c.cfg.Channels {
		c.planar = make([][]float64, c.cfg.Channels)
	}

	for i := range c.planar {
		c.planar[i] = core.EnsureLen(c.planar[i], maxBlockSize)
	}

	c.state.Store(int32(StateInitialized))
	c.configure(params, version)

	c.cfg.Logger.WithFields(logrus.Fields{
		"sample_rate": sampleRate,
		"block":       maxBlockSize,
		"channels":    c.cfg.Channels,
		"linked":      c.cfg.Linked,
		"detector":    c.cfg.DetectorMode.String(),
		"window":      c.window,
		"capacity":    c.capacity,
		"latency":     c.Latency(),
	}).Debug("compressor prepared")

	return nil
}

// SetSampleRate switches to a new sample rate between blocks, recomputing
// every time-derived coefficient and resizing windows while keeping their
// history and the average gains. Growing past the reserved capacity
// allocates.
func (c *Coordinator) SetSampleRate(sampleRate float64) error {
	if c.State() == StateUninitialized {
		return fmt.Errorf("set sample rate: %w", ErrNotPrepared)
	}

	if err := validateSampleRate(sampleRate); err != nil {
		return fmt.Errorf("coordinator %w", err)
	}

	if sampleRate == c.sampleRate {
		return nil
	}

	c.sampleRate = sampleRate

	if capacity := c.capacityFor(sampleRate); capacity > c.capacity {
		c.capacity = capacity
		for _, ch := range c.channels {
			ch.detector.Reserve(capacity)
		}

		if c.shared != nil {
			c.shared.Reserve(capacity)
		}
	}

	params, version := c.store.Snapshot()
	c.configure(params, version)

	c.cfg.Logger.WithFields(logrus.Fields{
		"sample_rate": sampleRate,
		"window":      c.window,
		"latency":     c.Latency(),
	}).Debug("compressor sample rate changed")

	return nil
}

// State returns the lifecycle stage.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Channels returns the number of channels processed.
func (c *Coordinator) Channels() int { return c.cfg.Channels }

// SampleRate returns the prepared sample rate, or 0 before Prepare.
func (c *Coordinator) SampleRate() float64 { return c.sampleRate }

// Window returns the current window length in samples.
func (c *Coordinator) Window() int { return c.window }

// Latency returns the total added latency in samples, or 0 before Prepare.
func (c *Coordinator) Latency() int {
	return max(int(c.latency.Load()), 0)
}

// Linked reports whether the shared detector is active.
func (c *Coordinator) Linked() bool { return c.cfg.Linked }

// Channel returns the compressor for channel i.
func (c *Coordinator) Channel(i int) *Channel {
	return c.channels[i]
}

// Meter returns the metering snapshot of channel ch published at the end of
// the last block.
func (c *Coordinator) Meter(ch int) Metrics {
	if ch < 0 || ch >= len(c.meters) {
		return Metrics{}
	}

	return c.meters[ch].load()
}

// Reset clears windows, average gains and meters without changing
// configuration.
func (c *Coordinator) Reset() {
	for i, ch := range c.channels {
		ch.Reset()
		c.meters[i].publish(ch)
	}

	if c.shared != nil {
		c.shared.Reset()
	}
}

// ProcessBlock compresses planar channels in place. Blocks longer than the
// prepared maximum are processed in chunks. Before Prepare the audio passes
// through unchanged.
func (c *Coordinator) ProcessBlock(buf [][]float64) {
	if c.State() == StateUninitialized || len(buf) == 0 {
		return
	}

	assertf(len(buf) == len(c.channels), "channel count differs from Prepare")

	channels := min(len(buf), len(c.channels))

	frames := len(buf[0])
	for _, ch := range buf[:channels] {
		frames = min(frames, len(ch))
	}

	c.beginBlock()

	for start := 0; start < frames; start += c.maxBlockSize {
		end := min(start+c.maxBlockSize, frames)
		c.processSegment(buf[:channels], start, end)
	}

	c.endBlock()
}

// ProcessInterleaved compresses interleaved float32 frames in place.
func (c *Coordinator) ProcessInterleaved(buf []float32) {
	if c.State() == StateUninitialized {
		return
	}

	channels := len(c.channels)
	frames := len(buf) / channels

	c.beginBlock()

	for start := 0; start < frames; start += c.maxBlockSize {
		end := min(start+c.maxBlockSize, frames)
		chunk := buf[start*channels : end*channels]

		n := core.Deinterleave(c.planar, chunk)
		c.processSegment(c.planar, 0, n)
		core.Interleave(chunk, c.planar, n)
	}

	c.endBlock()
}

func (c *Coordinator) processSegment(buf [][]float64, start, end int) {
	if c.shared == nil {
		for i, ch := range c.channels[:len(buf)] {
			samples := buf[i][start:end]
			for j, x := range samples {
				samples[j] = ch.ProcessSample(x, nil)
			}
		}

		return
	}

	link := c.link[:end-start]
	copy(link, buf[0][start:end])

	for _, samples := range buf[1:] {
		vecmath.AddBlockInPlace(link, samples[start:end])
	}

	vecmath.ScaleBlock(link, link, c.params.InputGain/float64(len(buf)))

	for j, x := range link {
		c.shared.Update(x)

		for i, ch := range c.channels[:len(buf)] {
			buf[i][start+j] = ch.ProcessSample(buf[i][start+j], c.shared)
		}
	}
}

// beginBlock applies a newer parameter snapshot, if any, before the first
// sample of the block.
func (c *Coordinator) beginBlock() {
	params, version := c.store.Snapshot()
	if version != c.version {
		c.configure(params, version)
	}
}

func (c *Coordinator) endBlock() {
	for i, ch := range c.channels {
		c.meters[i].publish(ch)
		ch.inputPeak = 0
		ch.outputPeak = 0
	}

	c.state.Store(int32(StateRunning))
}

// configure applies params at a block boundary, resizing windows in place
// when the window length changed, and reports latency changes.
func (c *Coordinator) configure(params Params, version uint64) {
	prevState := c.State()

	if window := c.windowFor(params.Window); window != c.window || c.channels[0].detector.Len() != window {
		c.state.Store(int32(StateResizing))

		for _, ch := range c.channels {
			// Capacity was reserved for the maximum window; Resize
			// cannot fail here.
			_ = ch.Resize(window)
		}

		if c.shared != nil {
			_ = c.shared.Resize(window)
		}

		c.window = window
		c.state.Store(int32(prevState))
	}

	for _, ch := range c.channels {
		ch.Configure(params, c.sampleRate)
	}

	c.params = params
	c.version = version

	latency := int64(c.channels[0].LookaheadSamples())
	if c.latency.Swap(latency) != latency && c.cfg.OnLatency != nil {
		c.cfg.OnLatency(int(latency))
	}
}

func (c *Coordinator) capacityFor(sampleRate float64) int {
	return max(core.SecondsToSamples(c.store.MaxWindow(), sampleRate), 1)
}

func (c *Coordinator) windowFor(seconds float64) int {
	return core.ClampInt(core.SecondsToSamples(seconds, c.sampleRate), 1, c.capacity)
}
