// Package registry implements the tunnel registry (C5): a concurrency-safe
// mapping from interface name to tunnel, and from remote peer endpoint
// back to interface name.
package registry

import (
	"errors"
	"sync"

	"github.com/eantcal/vnddvpn/internal/netudp"
	"github.com/eantcal/vnddvpn/internal/tunnel"
)

var (
	ErrDuplicateName = errors.New("registry: duplicate interface name")
	ErrDuplicatePeer = errors.New("registry: duplicate remote peer")
	ErrNotFound      = errors.New("registry: tunnel not found")
)

// Registry maps interface names to tunnels and remote peers back to
// interface names under a single mutex. For every (name, tunnel) in
// byName, byPeer[tunnel.Remote.String()] == name. byPeer is keyed by the
// endpoint's "ip:port" string because netudp.Endpoint holds a net.IP
// slice and so cannot be a map key itself.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*tunnel.Tunnel
	byPeer map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*tunnel.Tunnel),
		byPeer: make(map[string]string),
	}
}

// Insert adds t under its Name, indexed also by its Remote endpoint. On
// failure no partial insertion is observable: neither index is touched
// unless both checks pass.
func (r *Registry) Insert(t *tunnel.Tunnel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[t.Name]; exists {
		return ErrDuplicateName
	}
	if _, exists := r.byPeer[t.Remote.String()]; exists {
		return ErrDuplicatePeer
	}

	r.byName[t.Name] = t
	r.byPeer[t.Remote.String()] = t.Name
	return nil
}

// LookupByName returns the tunnel registered under name, if any. The
// boolean result distinguishes "not found" from a nil tunnel so callers
// never need to treat a miss as an exceptional control-flow path (see
// DESIGN.md §9 — "exception-driven control flow").
func (r *Registry) LookupByName(name string) (*tunnel.Tunnel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byName[name]
	return t, ok
}

// LookupByPeer returns the interface name bound to remote, if any. Not
// used by the hot data path; preserved for diagnostics and to uphold the
// registry's secondary-index invariant.
func (r *Registry) LookupByPeer(remote netudp.Endpoint) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.byPeer[remote.String()]
	return name, ok
}

// Remove marks the named tunnel for removal, waits for its receiver
// goroutine to exit, then deletes both index entries and returns the
// removed tunnel. A second call for the same name returns ErrNotFound.
//
// Remove blocks on t.Done() instead of re-acquiring a recursive lock
// held by the receiver — see DESIGN.md §9.
func (r *Registry) Remove(name string) (*tunnel.Tunnel, error) {
	r.mu.Lock()
	t, ok := r.byName[name]
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}

	t.RequestRemove()
	<-t.Done()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the lock: a concurrent Remove may have already won.
	if _, ok := r.byName[name]; !ok {
		return nil, ErrNotFound
	}

	delete(r.byName, name)
	delete(r.byPeer, t.Remote.String())
	return t, nil
}

// Range calls fn for every (name, tunnel) pair under the registry lock.
// fn must not perform I/O or block; the lock is held for the full
// iteration.
func (r *Registry) Range(fn func(name string, t *tunnel.Tunnel) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, t := range r.byName {
		if !fn(name, t) {
			return
		}
	}
}

// Len returns the number of tunnels currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}
