// Package vif implements the virtual interface adapter (C2): the
// boundary between the host's network stack and the tunnel data path.
// Frames captured from the host are queued for the dispatcher via
// Read; frames arriving from the network are injected back into the
// host via Submit.
package vif

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	MinMTU = 68
	MaxMTU = 1500

	// QueueLength bounds both the outbound capture queue and its
	// backing pool, matching the source driver's CDEV_PKTQ_LEN.
	QueueLength = 1000
)

var (
	ErrNoSuchInterface = errors.New("vif: no such interface")
	ErrInterfaceDown   = errors.New("vif: interface is down")
	ErrAlreadyExists   = errors.New("vif: interface already registered")
	ErrOutOfMemory     = errors.New("vif: packet pool exhausted")
	ErrInvalidArgument = errors.New("vif: invalid argument")
	ErrWouldBlock      = errors.New("vif: would block")
	ErrCongested       = errors.New("vif: packet queue congested")
	ErrPoolExhausted   = errors.New("vif: packet pool exhausted")
)

// Config describes an interface to register with an Adapter.
type Config struct {
	Name string
	MAC  [6]byte
	MTU  int // 0 means MaxMTU
}

// Stats holds the lock-free per-interface counters, exposed by
// Adapter.Stats for logging and the debug metrics endpoint.
type Stats struct {
	RxPackets atomic.Uint64
	RxBytes   atomic.Uint64
	RxDropped atomic.Uint64
	TxPackets atomic.Uint64
	TxBytes   atomic.Uint64
	TxDropped atomic.Uint64
}

// Adapter is the virtual interface abstraction. Two backends implement
// it: tapAdapter (real Linux TAP devices) and memAdapter (in-process,
// used by tests and as the non-Linux default).
type Adapter interface {
	Register(cfg Config) error
	Open(name string) error
	Stop(name string) error
	Remove(name string) error

	// Submit injects payload, received from the network, into name's
	// host-facing side.
	Submit(name string, payload []byte) error

	// Read blocks until a frame captured from some registered
	// interface is available, or ctx is done.
	Read(ctx context.Context) (name string, payload []byte, err error)

	// ReadNonBlocking returns ErrWouldBlock instead of blocking.
	ReadNonBlocking() (name string, payload []byte, err error)

	ChangeMTU(name string, mtu int) error
	Stats(name string) (*Stats, bool)
	Close() error
}

// interfaceEntry is the state shared by both backends for one
// registered interface.
type interfaceEntry struct {
	name  string
	mac   [6]byte
	mtu   int
	state State
	stats Stats

	// guards mtu/state only; stats fields are independently atomic.
	mu sync.RWMutex
}

func validateMTU(mtu int) error {
	if mtu < MinMTU || mtu > MaxMTU {
		return fmt.Errorf("%w: mtu %d outside [%d,%d]", ErrInvalidArgument, mtu, MinMTU, MaxMTU)
	}
	return nil
}
