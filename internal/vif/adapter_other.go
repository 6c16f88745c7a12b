//go:build !linux

package vif

// NewDefaultAdapter returns the production backend for this platform.
// Real TAP devices are Linux-only (see tap_linux.go); everywhere else
// falls back to the in-process adapter, which is sufficient for the
// control-plane and codec/dispatch paths but cannot bridge real host
// traffic.
func NewDefaultAdapter() Adapter {
	return NewMemAdapter()
}
