// Package ring implements the keyboard byte queue: a fixed 16-byte
// single-writer/single-reader ring that needs neither the allocator nor a lock.
//
// Read and write positions are atomic counters advanced with a
// load/compute/compare-and-swap retry loop. They run modulo twice the
// capacity so that a full ring is distinguishable from an empty one; the slot
// index is the position modulo the capacity.
//
// PushBack never fails. When the ring already holds Capacity unread bytes it
// overwrites the oldest one (the slot at the read position) and counts an
// overrun, so a producer that outruns the consumer loses the oldest data
// rather than corrupting the queue. TryPushBack is the checked variant.
package ring

import (
	"errors"
	"sync/atomic"
)

// Capacity is the number of byte slots.
const Capacity = 16

const posModulo = 2 * Capacity

// ErrFull is returned by TryPushBack when every slot holds an unread byte.
var ErrFull = errors.New("ring: buffer full")

// Buf is the ring. The zero value is an empty ring ready for use.
type Buf struct {
	buf  [Capacity]byte
	rpos atomic.Uint32
	wpos atomic.Uint32

	// borrow guards buf: -1 while the writer holds it, n > 0 while n readers do.
	borrow atomic.Int32

	overruns atomic.Uint64
}

// PushBack appends b, overwriting the oldest unread byte when full.
func (r *Buf) PushBack(b byte) {
	if r.full() {
		// drop the oldest byte unless the reader consumed it meanwhile
		old := r.rpos.Load()
		if dist(old, r.wpos.Load()) == Capacity && r.rpos.CompareAndSwap(old, inc(old)) {
			r.overruns.Add(1)
		}
	}
	r.write(r.wpos.Load(), b)
	advance(&r.wpos)
}

// TryPushBack appends b unless the ring is full.
func (r *Buf) TryPushBack(b byte) error {
	if r.full() {
		return ErrFull
	}
	r.write(r.wpos.Load(), b)
	advance(&r.wpos)
	return nil
}

// PopFront removes and returns the oldest byte. ok is false when empty.
func (r *Buf) PopFront() (b byte, ok bool) {
	for {
		pos := r.rpos.Load()
		if pos == r.wpos.Load() {
			return 0, false
		}
		b = r.read(pos)
		if r.rpos.CompareAndSwap(pos, inc(pos)) {
			return b, true
		}
		// the writer dropped this byte while we read it; take the next one
	}
}

// Len returns the number of unread bytes.
func (r *Buf) Len() int {
	return int(dist(r.rpos.Load(), r.wpos.Load()))
}

// Overruns returns how many unread bytes PushBack has overwritten.
func (r *Buf) Overruns() uint64 { return r.overruns.Load() }

func (r *Buf) full() bool {
	return dist(r.rpos.Load(), r.wpos.Load()) == Capacity
}

func (r *Buf) write(pos uint32, b byte) {
	for !r.borrow.CompareAndSwap(0, -1) {
	}
	r.buf[pos%Capacity] = b
	r.borrow.Store(0)
}

// read spins while the writer holds the storage; it never yields the task.
func (r *Buf) read(pos uint32) byte {
	for {
		n := r.borrow.Load()
		if n >= 0 && r.borrow.CompareAndSwap(n, n+1) {
			b := r.buf[pos%Capacity]
			r.borrow.Add(-1)
			return b
		}
	}
}

func advance(pos *atomic.Uint32) {
	for {
		cur := pos.Load()
		if pos.CompareAndSwap(cur, inc(cur)) {
			return
		}
	}
}

func inc(pos uint32) uint32 { return (pos + 1) % posModulo }

func dist(r, w uint32) uint32 { return (w + posModulo - r) % posModulo }
