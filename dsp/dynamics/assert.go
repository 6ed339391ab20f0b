//go:build !compdebug

package dynamics

// assertf is compiled out of release builds; build with -tags compdebug to
// turn structural invariant violations into panics. Hot-path callers pass
// no args so nothing is boxed.
func assertf(bool, string, ...any) {}
