package vif

import (
	"context"
	"sync"
)

// memAdapter is an in-process Adapter with no real kernel device behind
// it: there is nothing here corresponding to /dev/net/tun, so Submit
// records delivered frames instead of writing them anywhere, and
// Capture stands in for a host application writing to a TAP device.
// Used by tests and, through NewDefaultAdapter, on non-Linux platforms
// where no real TAP device is available.
type memAdapter struct {
	*manager

	mu        sync.Mutex
	delivered map[string][][]byte
}

// NewMemAdapter constructs an Adapter backed entirely by in-process
// state.
func NewMemAdapter() Adapter {
	return &memAdapter{
		manager:   newManager(),
		delivered: make(map[string][][]byte),
	}
}

func (a *memAdapter) Register(cfg Config) error {
	_, err := a.register(cfg)
	return err
}

func (a *memAdapter) Open(name string) error               { return a.open(name) }
func (a *memAdapter) Stop(name string) error                { return a.stop(name) }
func (a *memAdapter) Remove(name string) error               { return a.remove(name) }
func (a *memAdapter) ChangeMTU(name string, mtu int) error   { return a.changeMTU(name, mtu) }
func (a *memAdapter) Stats(name string) (*Stats, bool)       { return a.stats(name) }

func (a *memAdapter) Read(ctx context.Context) (string, []byte, error) {
	return a.read(ctx)
}

func (a *memAdapter) ReadNonBlocking() (string, []byte, error) {
	return a.readNonBlocking()
}

func (a *memAdapter) Submit(name string, payload []byte) error {
	e, err := a.rxCheck(name)
	if err != nil {
		return err
	}

	pkt := a.acquireRx()
	if pkt == nil {
		e.stats.RxDropped.Add(1)
		return ErrOutOfMemory
	}
	defer a.releaseRx(pkt)

	buf := make([]byte, len(payload))
	copy(buf, payload)

	a.mu.Lock()
	a.delivered[name] = append(a.delivered[name], buf)
	a.mu.Unlock()

	e.stats.RxPackets.Add(1)
	e.stats.RxBytes.Add(uint64(len(payload)))
	return nil
}

// Capture simulates a frame arriving from the host on name, enqueueing
// it for the dispatcher exactly as a TAP read loop would.
func (a *memAdapter) Capture(name string, payload []byte) error {
	return a.capture(name, payload)
}

// Delivered returns and clears the frames Submit has recorded for name.
func (a *memAdapter) Delivered(name string) [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.delivered[name]
	a.delivered[name] = nil
	return out
}

func (a *memAdapter) Close() error { return nil }

func (a *memAdapter) statsManager() *manager { return a.manager }
