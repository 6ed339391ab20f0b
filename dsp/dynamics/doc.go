// Package dynamics implements a feed-forward RMS compressor.
//
// Building blocks:
//   - Detector: sliding-window RMS (or peak follower) level estimate whose
//     window doubles as the lookahead delay line.
//   - Smoother: attack/release one-pole smoothing of the detected level.
//   - GainComputer: soft-knee threshold/ratio transfer curve.
//   - Channel: one channel of input gain, detection, smoothing, gain
//     computation, lookahead, dry/wet mix and output gain.
//   - Coordinator: N channels with an optional shared (linked) detector,
//     block-boundary parameter application, latency reporting and metering.
//
// Control values travel through a ParamStore. Control goroutines publish
// validated snapshots; the audio goroutine reads one snapshot per block
// without locking.
//
// Build with -tags fastmath to use approximate log/exp/sqrt, and with
// -tags compdebug to panic on structural invariant violations.
package dynamics
