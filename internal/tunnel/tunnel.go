// Package tunnel implements the tunnel (C4): one peer binding of a
// local endpoint, a remote endpoint, an optional key, and the socket
// carrying traffic between them.
package tunnel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eantcal/vnddvpn/internal/codec"
	"github.com/eantcal/vnddvpn/internal/netudp"
)

// MaxNameLength is the largest interface name this tunnel can carry,
// matching the source's IFNAMSIZ-1 convention (15 usable chars plus a
// NUL terminator).
const MaxNameLength = 15

var (
	ErrInvalidSocket = errors.New("tunnel: invalid socket")
	ErrBind          = errors.New("tunnel: bind error")
	ErrNameTooLong   = errors.New("tunnel: name exceeds 15 characters")
)

// Params describes the peer binding a Tunnel is constructed from. MAC and
// MTU are not used by New; they are carried here so a single Params value
// also describes the vif interface the supervisor registers alongside the
// tunnel (see internal/supervisor).
type Params struct {
	Name   string
	Local  netudp.Endpoint
	Remote netudp.Endpoint
	Key    []byte // nil/empty means cleartext
	MAC    [6]byte
	MTU    int
}

// Tunnel is a passive resource: one peer binding plus its bound socket.
// It starts no goroutine of its own; the registry and supervisor own its
// lifecycle (see internal/registry, internal/dispatch, internal/receiver).
type Tunnel struct {
	Name   string
	Local  netudp.Endpoint
	Remote netudp.Endpoint
	Key    *codec.Key // nil means cleartext
	Socket *netudp.Socket

	removePending atomic.Bool

	// done is closed exactly once by the receiver goroutine when it
	// exits, replacing the source's recursive activity_lock (see
	// DESIGN.md §9 — "recursive mutex held by worker for its lifetime").
	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a Tunnel, binding its socket to Local. It does not
// start any goroutine and is not yet visible to any registry.
func New(p Params) (*Tunnel, error) {
	if len(p.Name) > MaxNameLength {
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, p.Name)
	}

	sock, err := netudp.Bind(p.Local, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBind, err)
	}

	t := &Tunnel{
		Name:   p.Name,
		Local:  sock.LocalEndpoint(),
		Remote: p.Remote,
		Socket: sock,
		done:   make(chan struct{}),
	}

	if len(p.Key) > 0 {
		k := codec.AdjustParity(p.Key)
		t.Key = &k
	}

	return t, nil
}

// RemovePending reports whether the supervisor has requested this
// tunnel's receiver to exit.
func (t *Tunnel) RemovePending() bool {
	return t.removePending.Load()
}

// RequestRemove marks the tunnel for removal. Idempotent.
func (t *Tunnel) RequestRemove() {
	t.removePending.Store(true)
}

// Done returns the channel the receiver goroutine closes on exit.
func (t *Tunnel) Done() <-chan struct{} {
	return t.done
}

// MarkDone closes Done(), exactly once, regardless of how many times it
// is called. Called by the receiver goroutine as its last act.
func (t *Tunnel) MarkDone() {
	t.doneOnce.Do(func() { close(t.done) })
}

// Close releases the tunnel's socket. Safe to call once the receiver has
// observed Done().
func (t *Tunnel) Close() error {
	return t.Socket.Close()
}
