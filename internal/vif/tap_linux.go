//go:build linux

package vif

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/songgao/water"

	"github.com/eantcal/vnddvpn/internal/frame"
)

// tapAdapter backs Adapter with real Linux TAP devices, one per
// registered interface, with a TAPDevice-style read/write goroutine
// pairing generalized to N named interfaces sharing one manager queue.
type tapAdapter struct {
	*manager

	mu     sync.Mutex
	ifaces map[string]*water.Interface

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTAPAdapter constructs an Adapter backed by real TAP devices.
// Requires CAP_NET_ADMIN.
func NewTAPAdapter() Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	return &tapAdapter{
		manager: newManager(),
		ifaces:  make(map[string]*water.Interface),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (a *tapAdapter) Register(cfg Config) error {
	if _, err := a.register(cfg); err != nil {
		return err
	}

	tapConfig := water.Config{DeviceType: water.TAP}
	if cfg.Name != "" {
		tapConfig.Name = cfg.Name
	}

	iface, err := water.New(tapConfig)
	if err != nil {
		a.remove(cfg.Name)
		return fmt.Errorf("vif: create tap %q: %w", cfg.Name, err)
	}

	if err := setLinkAddrMTU(iface.Name(), cfg.MAC, cfg.MTU); err != nil {
		iface.Close()
		a.remove(cfg.Name)
		return err
	}

	a.mu.Lock()
	a.ifaces[cfg.Name] = iface
	a.mu.Unlock()
	return nil
}

func (a *tapAdapter) Open(name string) error {
	if err := a.open(name); err != nil {
		return err
	}

	iface, ok := a.ifaceHandle(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	if err := setLinkUp(iface.Name()); err != nil {
		return err
	}

	a.wg.Add(1)
	go a.captureLoop(name, iface)
	return nil
}

func (a *tapAdapter) Stop(name string) error {
	if err := a.stop(name); err != nil {
		return err
	}
	iface, ok := a.ifaceHandle(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	return setLinkDown(iface.Name())
}

func (a *tapAdapter) Remove(name string) error {
	a.mu.Lock()
	iface, ok := a.ifaces[name]
	delete(a.ifaces, name)
	a.mu.Unlock()

	if err := a.remove(name); err != nil {
		return err
	}
	if ok {
		return iface.Close()
	}
	return nil
}

func (a *tapAdapter) ChangeMTU(name string, mtu int) error {
	if err := a.changeMTU(name, mtu); err != nil {
		return err
	}
	iface, ok := a.ifaceHandle(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}
	return exec.Command("ip", "link", "set", "dev", iface.Name(), "mtu", strconv.Itoa(mtu)).Run()
}

func (a *tapAdapter) Stats(name string) (*Stats, bool) { return a.stats(name) }

func (a *tapAdapter) Read(ctx context.Context) (string, []byte, error) {
	return a.read(ctx)
}

func (a *tapAdapter) ReadNonBlocking() (string, []byte, error) {
	return a.readNonBlocking()
}

func (a *tapAdapter) Submit(name string, payload []byte) error {
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

	iface, ok := a.ifaceHandle(name)
	if !ok {
		e.stats.RxDropped.Add(1)
		return fmt.Errorf("%w: %q", ErrNoSuchInterface, name)
	}

	if _, err := iface.Write(payload); err != nil {
		e.stats.RxDropped.Add(1)
		return fmt.Errorf("vif: tap write: %w", err)
	}
	e.stats.RxPackets.Add(1)
	e.stats.RxBytes.Add(uint64(len(payload)))
	return nil
}

func (a *tapAdapter) ifaceHandle(name string) (*water.Interface, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	iface, ok := a.ifaces[name]
	return iface, ok
}

// captureLoop reads frames from iface and hands them to manager.capture
// for the dispatcher to pick up: a select on ctx.Done alongside a
// blocking device read, with malformed or backpressured frames dropped
// rather than stalling the loop.
func (a *tapAdapter) captureLoop(name string, iface *water.Interface) {
	defer a.wg.Done()

	buf := make([]byte, a.mtuOf(name)+frame.HeaderSize)

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		n, err := iface.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			continue
		}

		_ = a.capture(name, buf[:n])
	}
}

func (a *tapAdapter) statsManager() *manager { return a.manager }

func (a *tapAdapter) Close() error {
	a.cancel()
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, iface := range a.ifaces {
		iface.Close()
	}
	return nil
}
