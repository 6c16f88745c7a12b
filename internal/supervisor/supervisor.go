// Package supervisor implements the supervisor (C8): the daemon-lifetime
// owner of the registry, the vif adapter, the one shared dispatcher, and
// every per-tunnel receiver goroutine. Grounded on a DaemonManager-style
// ctx/cancel/wg lifecycle with lazily-started background loops, and on
// the source's vndd_vpnd.cc main/add_tunnel flow.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/eantcal/vnddvpn/internal/dispatch"
	"github.com/eantcal/vnddvpn/internal/registry"
	"github.com/eantcal/vnddvpn/internal/receiver"
	"github.com/eantcal/vnddvpn/internal/tunnel"
	"github.com/eantcal/vnddvpn/internal/tunnelcfg"
	"github.com/eantcal/vnddvpn/internal/vif"
	"github.com/eantcal/vnddvpn/internal/vnddlog"
)

// Supervisor owns the daemon's only dispatcher and the receiver goroutine
// pool, one per live tunnel. Its zero value is not usable; construct with
// New.
type Supervisor struct {
	vifAdapter vif.Adapter
	registry   *registry.Registry
	log        *vnddlog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.Mutex
	dispatcherOnce   sync.Once
	dispatcherCtx    context.Context
	dispatcherCancel context.CancelFunc
}

// New constructs a Supervisor around an already-initialized vif adapter.
// The caller retains ownership of a.Close(); Shutdown does not close it.
func New(a vif.Adapter, log *vnddlog.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		vifAdapter: a,
		registry:   registry.New(),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ensureDispatcher starts the single shared dispatcher goroutine on first
// use, matching the source's "first add_tunnel spins up the xmit thread"
// behavior — an idle daemon with zero tunnels runs no dispatcher.
func (s *Supervisor) ensureDispatcher() {
	s.dispatcherOnce.Do(func() {
		s.dispatcherCtx, s.dispatcherCancel = context.WithCancel(s.ctx)
		d := dispatch.New(s.vifAdapter, s.registry, s.log)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			d.Run(s.dispatcherCtx)
		}()
	})
}

// AddTunnel registers a vif interface named params.Name, constructs its
// tunnel, inserts it into the registry, and spawns its receiver goroutine.
// On any failure after the vif interface is registered, the interface is
// removed again so a failed AddTunnel leaves no residue.
func (s *Supervisor) AddTunnel(name string, params tunnel.Params, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	params.Name = name
	params.Key = key

	if err := s.vifAdapter.Register(vif.Config{Name: name, MAC: params.MAC, MTU: params.MTU}); err != nil {
		return fmt.Errorf("supervisor: register interface %q: %w", name, err)
	}
	if err := s.vifAdapter.Open(name); err != nil {
		_ = s.vifAdapter.Remove(name)
		return fmt.Errorf("supervisor: open interface %q: %w", name, err)
	}

	t, err := tunnel.New(params)
	if err != nil {
		_ = s.vifAdapter.Remove(name)
		return fmt.Errorf("supervisor: construct tunnel %q: %w", name, err)
	}

	if err := s.registry.Insert(t); err != nil {
		t.Close()
		_ = s.vifAdapter.Remove(name)
		return fmt.Errorf("supervisor: insert tunnel %q: %w", name, err)
	}

	s.ensureDispatcher()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		receiver.Run(s.ctx, t, s.vifAdapter, s.log.WithTunnel(name))
	}()

	s.log.Info("supervisor: tunnel added", vnddlog.Fields{"interface": name, "remote": t.Remote.String()})
	return nil
}

// RemoveTunnel requests removal of the named tunnel, blocks until its
// receiver has exited, then tears down its vif interface.
func (s *Supervisor) RemoveTunnel(name string) error {
	t, err := s.registry.Remove(name)
	if err != nil {
		return fmt.Errorf("supervisor: remove tunnel %q: %w", name, err)
	}
	t.Close()
	if err := s.vifAdapter.Remove(name); err != nil {
		return fmt.Errorf("supervisor: remove interface %q: %w", name, err)
	}
	s.log.Info("supervisor: tunnel removed", vnddlog.Fields{"interface": name})
	return nil
}

// Empty reports whether the registry currently holds no tunnels.
func (s *Supervisor) Empty() bool {
	return s.registry.Len() == 0
}

// LoadTunnelSet builds every tunnel named in cfg, continuing past
// per-tunnel failures and collecting them, mirroring the source's main
// loop over tunnel_config_param_t (logs and continues on a failed
// add_tunnel rather than aborting the whole startup).
func (s *Supervisor) LoadTunnelSet(cfg *tunnelcfg.Config) []error {
	var errs []error
	for _, tc := range cfg.Tunnels {
		params := tunnel.Params{
			Local:  tc.Local,
			Remote: tc.Remote,
			MAC:    tc.MAC,
			MTU:    tc.MTU,
		}
		if err := s.AddTunnel(tc.Name, params, tc.Key); err != nil {
			s.log.Warn("supervisor: failed to add tunnel from config set",
				vnddlog.Fields{"interface": tc.Name, "error": err.Error()})
			errs = append(errs, err)
			continue
		}
	}
	return errs
}

// Shutdown marks every tunnel pending, cancels the shared context that
// the dispatcher and every receiver run under, and then waits for all of
// them to stop (a receiver inside Poll returns once its poll timeout
// ends). The dispatcher is cancelled together with the receivers, not
// after they have exited. It does not close the vif adapter; the caller
// owns that.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.registry.Range(func(name string, t *tunnel.Tunnel) bool {
		t.RequestRemove()
		return true
	})

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
