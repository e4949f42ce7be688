// Package ringbuf provides a lock-free, single-producer single-consumer (SPSC)
// ring buffer of inbound model.Event values. The ingest goroutine is the only
// producer and the pipeline loop the only consumer.
package ringbuf

import (
	"sync/atomic"

	"trend-signals/internal/model"
)

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// Ring is a lock-free SPSC ring buffer for Event values.
// Size must be a power of two for fast bitwise modulo.
type Ring struct {
	buf  []model.Event
	mask uint64

	// Separate cache lines to prevent false sharing between producer and consumer.
	_pad0 [cacheLine]byte
	head  atomic.Uint64 // written by producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // written by consumer
	_pad2 [cacheLine]byte

	overflow atomic.Uint64

	// ready carries at most one pending wake-up for a parked consumer.
	ready chan struct{}
}

// New creates a ring buffer. capacity is rounded up to the next power of two.
// Minimum capacity is 2.
func New(capacity int) *Ring {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Ring{
		buf:   make([]model.Event, n),
		mask:  uint64(n - 1),
		ready: make(chan struct{}, 1),
	}
}

// Push appends an event. Returns false if the buffer is full (the event is
// NOT written in that case). Non-blocking.
func (r *Ring) Push(ev model.Event) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		r.overflow.Add(1)
		return false
	}

	r.buf[head&r.mask] = ev
	r.head.Store(head + 1)

	select {
	case r.ready <- struct{}{}:
	default:
	}
	return true
}

// Pop retrieves the next event. Returns false if the buffer is empty.
// Non-blocking.
func (r *Ring) Pop() (model.Event, bool) {
	tail := r.tail.Load()
	head := r.head.Load()

	if tail >= head {
		return model.Event{}, false
	}

	slot := &r.buf[tail&r.mask]
	ev := *slot
	*slot = model.Event{}
	r.tail.Store(tail + 1)
	return ev, true
}

// Drain pops up to len(dst) events into dst and returns the count.
func (r *Ring) Drain(dst []model.Event) int {
	n := 0
	for n < len(dst) {
		ev, ok := r.Pop()
		if !ok {
			break
		}
		dst[n] = ev
		n++
	}
	return n
}

// Ready is signalled after a push. The consumer selects on it when the ring
// is empty and drains on wake-up; a single signal may cover many pushes.
func (r *Ring) Ready() <-chan struct{} {
	return r.ready
}

// Len returns the current number of items in the buffer.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the buffer capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Overflow returns the total number of rejected pushes due to full buffer.
func (r *Ring) Overflow() uint64 {
	return r.overflow.Load()
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
