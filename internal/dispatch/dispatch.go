// Package dispatch implements the dispatcher (C6): the single goroutine
// that pulls frames captured from every interface and forwards them to
// their tunnel's remote peer.
package dispatch

import (
	"context"

	"github.com/eantcal/vnddvpn/internal/codec"
	"github.com/eantcal/vnddvpn/internal/registry"
	"github.com/eantcal/vnddvpn/internal/vif"
	"github.com/eantcal/vnddvpn/internal/vnddlog"
)

// Dispatcher owns the one goroutine feeding every tunnel's outbound
// traffic, grounded on the source's tunnel_xmit_thread: pull a packet
// plus its owning interface name, resolve the tunnel, encrypt if keyed,
// send. A tunnel name with no registry entry is a plain drop, not an
// exception unwinding the loop (see DESIGN.md, "exception-driven
// control flow" resolution).
type Dispatcher struct {
	vifAdapter vif.Adapter
	registry   *registry.Registry
	log        *vnddlog.Logger
}

// New constructs a Dispatcher reading from vifAdapter and resolving
// tunnels through reg.
func New(vifAdapter vif.Adapter, reg *registry.Registry, log *vnddlog.Logger) *Dispatcher {
	return &Dispatcher{vifAdapter: vifAdapter, registry: reg, log: log}
}

// Run blocks, dispatching frames until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		name, payload, err := d.vifAdapter.Read(ctx)
		if err != nil {
			return
		}
		d.dispatchOne(name, payload)
	}
}

func (d *Dispatcher) dispatchOne(name string, payload []byte) {
	t, ok := d.registry.LookupByName(name)
	if !ok {
		d.log.Warn("dispatch: no tunnel for interface", vnddlog.Fields{"interface": name})
		return
	}

	out := payload
	if t.Key != nil {
		encrypted, err := codec.Encrypt(payload, *t.Key)
		if err != nil {
			d.log.Warn("dispatch: encrypt failed, dropping frame",
				vnddlog.Fields{"interface": name, "error": err.Error()})
			return
		}
		out = encrypted
	}

	if _, err := t.Socket.SendTo(out, t.Remote); err != nil {
		d.log.Warn("dispatch: sendto failed",
			vnddlog.Fields{"interface": name, "remote": t.Remote.String(), "error": err.Error()})
	}
}
