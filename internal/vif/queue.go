package vif

import (
	"context"
	"sync"
)

// packet is one in-flight frame, pre-allocated as part of a framePool.
type packet struct {
	ifaceName string
	data      []byte
}

// framePool is a free list of pre-allocated packet records, sized once
// at construction. get/put are independent of packetQueue's own lock:
// acquiring a record and enqueueing it are two distinct, separately
// counted operations, closing the leak in the source driver where a
// packet popped from the pool but rejected by a congested queue was
// never returned (see DESIGN.md, open question on double-decrement).
type framePool struct {
	mu   sync.Mutex
	free []*packet
}

func newFramePool(size int) *framePool {
	p := &framePool{free: make([]*packet, 0, size)}
	for i := 0; i < size; i++ {
		p.free = append(p.free, &packet{})
	}
	return p
}

func (p *framePool) get() *packet {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return nil
	}
	pkt := p.free[n-1]
	p.free = p.free[:n-1]
	return pkt
}

func (p *framePool) put(pkt *packet) {
	pkt.ifaceName = ""
	pkt.data = nil

	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, pkt)
}

// packetQueue is a bounded FIFO of captured frames awaiting dispatch,
// backed by a framePool. push acquires a record from the pool before
// enqueueing it; pop hands the record to the caller, who must call
// release once done with it.
type packetQueue struct {
	mu       sync.Mutex
	items    []*packet
	capacity int
	pool     *framePool
	notEmpty chan struct{}
}

func newPacketQueue(capacity int) *packetQueue {
	return &packetQueue{
		items:    make([]*packet, 0, capacity),
		capacity: capacity,
		pool:     newFramePool(capacity),
		notEmpty: make(chan struct{}, 1),
	}
}

// push enqueues a copy of data under ifaceName. The capacity check runs
// before any pool record is acquired, so ErrCongested and
// ErrPoolExhausted are reported independently of one another: a full
// queue never touches the pool, and a record taken to satisfy a push
// that then loses a race to fill the last slot is returned immediately
// rather than leaked.
func (q *packetQueue) push(ifaceName string, data []byte) error {
	q.mu.Lock()
	full := len(q.items) >= q.capacity
	q.mu.Unlock()
	if full {
		return ErrCongested
	}

	pkt := q.pool.get()
	if pkt == nil {
		return ErrPoolExhausted
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	pkt.ifaceName = ifaceName
	pkt.data = buf

	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		q.pool.put(pkt)
		return ErrCongested
	}
	q.items = append(q.items, pkt)
	q.mu.Unlock()

	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
	return nil
}

// pop removes and returns the oldest queued packet, or nil if empty.
func (q *packetQueue) pop() *packet {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	pkt := q.items[0]
	q.items = q.items[1:]
	return pkt
}

// waitPop blocks until a packet is available or ctx is done.
func (q *packetQueue) waitPop(ctx context.Context) (*packet, error) {
	for {
		if pkt := q.pop(); pkt != nil {
			return pkt, nil
		}
		select {
		case <-q.notEmpty:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// release returns pkt to the pool once the caller is done with its data.
func (q *packetQueue) release(pkt *packet) {
	q.pool.put(pkt)
}

func (q *packetQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
