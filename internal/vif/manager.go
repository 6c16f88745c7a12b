package vif

import (
	"context"
	"fmt"
	"sync"
)

// manager holds the registry of interfaces plus the shared capture
// queue and inbound pool. Both backends embed a *manager and add their
// own device I/O on top of it.
type manager struct {
	mu     sync.RWMutex
	ifaces map[string]*interfaceEntry

	queue  *packetQueue // frames captured from the host, awaiting Read
	rxPool *framePool   // bounds concurrent Submit calls
}

func newManager() *manager {
	return &manager{
		ifaces: make(map[string]*interfaceEntry),
		queue:  newPacketQueue(QueueLength),
		rxPool: newFramePool(QueueLength),
	}
}

func (m *manager) register(cfg Config) (*interfaceEntry, error) {
	if cfg.MTU == 0 {
		cfg.MTU = MaxMTU
	}
	if err := validateMTU(cfg.MTU); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.ifaces[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyExists, cfg.Name)
	}

	e := &interfaceEntry{
		name:  cfg.Name,
		mac:   cfg.MAC,
		mtu:   cfg.MTU,
		state: StateAllocated,
	}
	m.ifaces[cfg.Name] = e
	return e, nil
}

func (m *manager) lookup(name string) (*interfaceEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.ifaces[name]
	return e, ok
}

func (m *manager) open(name string) error {
	e, ok := m.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateUp
	return nil
}

func (m *manager) stop(name string) error {
	e, ok := m.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateDown
	return nil
}

func (m *manager) remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.ifaces[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	e.mu.Lock()
	e.state = StateRemoved
	e.mu.Unlock()
	delete(m.ifaces, name)
	return nil
}

func (m *manager) changeMTU(name string, mtu int) error {
	if err := validateMTU(mtu); err != nil {
		return err
	}
	e, ok := m.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mtu = mtu
	return nil
}

func (m *manager) mtuOf(name string) int {
	e, ok := m.lookup(name)
	if !ok {
		return MaxMTU
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mtu
}

func (m *manager) stats(name string) (*Stats, bool) {
	e, ok := m.lookup(name)
	if !ok {
		return nil, false
	}
	return &e.stats, true
}

// capture enqueues a frame read from the host side of name for the
// dispatcher to pick up via read/readNonBlocking. This is the
// host-to-network direction (the source driver's netdev_tx path).
func (m *manager) capture(name string, payload []byte) error {
	e, ok := m.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}

	e.mu.RLock()
	up := e.state == StateUp
	e.mu.RUnlock()
	if !up {
		e.stats.TxDropped.Add(1)
		return fmt.Errorf("%w: %q", ErrInterfaceDown, name)
	}

	if err := m.queue.push(name, payload); err != nil {
		e.stats.TxDropped.Add(1)
		return err
	}
	e.stats.TxPackets.Add(1)
	e.stats.TxBytes.Add(uint64(len(payload)))
	return nil
}

func (m *manager) read(ctx context.Context) (string, []byte, error) {
	pkt, err := m.queue.waitPop(ctx)
	if err != nil {
		return "", nil, err
	}
	defer m.queue.release(pkt)
	return pkt.ifaceName, pkt.data, nil
}

func (m *manager) readNonBlocking() (string, []byte, error) {
	pkt := m.queue.pop()
	if pkt == nil {
		return "", nil, ErrWouldBlock
	}
	defer m.queue.release(pkt)
	return pkt.ifaceName, pkt.data, nil
}

// rxCheck validates that name exists and is up before a Submit call
// proceeds, bumping RxDropped on a down interface. The source driver's
// netdev_rx performs the equivalent rx_enabled/IFF_UP pair of checks.
func (m *manager) rxCheck(name string) (*interfaceEntry, error) {
	e, ok := m.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	e.mu.RLock()
	up := e.state == StateUp
	e.mu.RUnlock()
	if !up {
		e.stats.RxDropped.Add(1)
		return nil, fmt.Errorf("%w: %q", ErrInterfaceDown, name)
	}
	return e, nil
}

func (m *manager) acquireRx() *packet  { return m.rxPool.get() }
func (m *manager) releaseRx(p *packet) { m.rxPool.put(p) }
