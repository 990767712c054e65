// Package vec implements a growable contiguous sequence whose buffer lives in
// kernel heap memory.
//
// Capacity starts at 2 and doubles whenever a push finds the buffer full. A
// grow allocates the new buffer, copies the elements and frees the old one.
// Pop never shrinks capacity. A Vec is not safe for concurrent use; shared
// instances are kept behind a lock.Mutex.
package vec

import (
	"fmt"
	"iter"

	"github.com/joshuapare/kernkit/internal/buf"
	"github.com/joshuapare/kernkit/kern/alloc"
)

const initialCap = 2

// Vec is an ordered sequence of T stored through a Codec.
type Vec[T any] struct {
	a     *alloc.Allocator
	codec Codec[T]
	elem  int

	addr alloc.Addr // Null iff cap == 0
	mem  []byte     // payload of addr
	len  int
	cap  int
}

// New returns an empty, unallocated Vec.
func New[T any](a *alloc.Allocator, c Codec[T]) *Vec[T] {
	if c.Size() <= 0 {
		panic(fmt.Sprintf("vec: codec slot size %d", c.Size()))
	}
	return &Vec[T]{a: a, codec: c, elem: c.Size()}
}

// WithCap returns an empty Vec with room for n elements.
func WithCap[T any](a *alloc.Allocator, c Codec[T], n int) (*Vec[T], error) {
	v := New(a, c)
	if n == 0 {
		return v, nil
	}
	if err := v.Reserve(n); err != nil {
		return nil, err
	}
	return v, nil
}

// Len returns the number of elements.
func (v *Vec[T]) Len() int { return v.len }

// Cap returns the number of elements the buffer can hold.
func (v *Vec[T]) Cap() int { return v.cap }

// Reserve makes room for at least add more elements. It panics with
// ErrCapacityOverflow when the byte size cannot be represented and returns a
// wrapped alloc.ErrOutOfMemory when the heap is exhausted; the Vec is left
// unchanged on error.
func (v *Vec[T]) Reserve(add int) error {
	newCap, ok := buf.AddOverflowSafe(v.len, add)
	if !ok || add < 0 {
		panic(ErrCapacityOverflow)
	}
	if newCap <= v.cap {
		return nil
	}
	newBytes, ok := buf.MulOverflowSafe(newCap, v.elem)
	if !ok {
		panic(ErrCapacityOverflow)
	}

	addr, err := v.a.Alloc(newBytes)
	if err != nil {
		return fmt.Errorf("vec: grow to %d: %w", newCap, err)
	}
	mem, err := v.a.Bytes(addr)
	if err != nil {
		_ = v.a.Free(addr)
		return fmt.Errorf("vec: grow to %d: %w", newCap, err)
	}

	if v.addr != alloc.Null {
		copy(mem, v.mem[:v.len*v.elem])
		if err := v.a.Free(v.addr); err != nil {
			_ = v.a.Free(addr)
			return fmt.Errorf("vec: release old buffer: %w", err)
		}
	}

	v.addr = addr
	v.mem = mem
	v.cap = newCap
	return nil
}

// Push appends x, doubling the capacity first when the buffer is full.
func (v *Vec[T]) Push(x T) error {
	if v.len == v.cap {
		grow := v.cap
		if grow == 0 {
			grow = initialCap
		}
		if err := v.Reserve(grow); err != nil {
			return err
		}
	}
	v.codec.Encode(v.slot(v.len), x)
	v.len++
	return nil
}

// Pop removes and returns the last element. ok is false when empty.
func (v *Vec[T]) Pop() (x T, ok bool) {
	if v.len == 0 {
		return x, false
	}
	v.len--
	return v.codec.Decode(v.slot(v.len)), true
}

// At returns the element at i.
func (v *Vec[T]) At(i int) (x T, ok bool) {
	if i < 0 || i >= v.len {
		return x, false
	}
	return v.codec.Decode(v.slot(i)), true
}

// Set replaces the element at i.
func (v *Vec[T]) Set(i int, x T) bool {
	if i < 0 || i >= v.len {
		return false
	}
	v.codec.Encode(v.slot(i), x)
	return true
}

// Swap exchanges the elements at i and j. Out-of-range indexes are ignored.
func (v *Vec[T]) Swap(i, j int) {
	if i < 0 || j < 0 || i >= v.len || j >= v.len || i == j {
		return
	}
	a, b := v.slot(i), v.slot(j)
	for k := range a {
		a[k], b[k] = b[k], a[k]
	}
}

// SwapRemove removes the element at i in constant time by moving the last
// element into its place. Order is not preserved.
func (v *Vec[T]) SwapRemove(i int) (x T, ok bool) {
	if i < 0 || i >= v.len {
		return x, false
	}
	v.Swap(i, v.len-1)
	return v.Pop()
}

// Remove removes the element at i and shifts the tail down, preserving order.
func (v *Vec[T]) Remove(i int) (x T, ok bool) {
	if i < 0 || i >= v.len {
		return x, false
	}
	x = v.codec.Decode(v.slot(i))
	copy(v.mem[i*v.elem:], v.mem[(i+1)*v.elem:v.len*v.elem])
	v.len--
	return x, true
}

// Clear drops all elements and keeps the buffer.
func (v *Vec[T]) Clear() { v.len = 0 }

// All iterates the elements in order.
func (v *Vec[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < v.len; i++ {
			if !yield(i, v.codec.Decode(v.slot(i))) {
				return
			}
		}
	}
}

// Release frees the buffer. The Vec is empty and unallocated afterwards.
func (v *Vec[T]) Release() error {
	if v.addr == alloc.Null {
		return nil
	}
	err := v.a.Free(v.addr)
	v.addr, v.mem, v.len, v.cap = alloc.Null, nil, 0, 0
	return err
}

// slot returns element i's bytes. The block from the allocator may be
// longer than cap elements; slots past cap are out of bounds.
func (v *Vec[T]) slot(i int) []byte {
	n := v.cap * v.elem
	off, err := buf.CheckListBounds(n, 0, i, v.elem)
	if err == nil {
		var end int
		end, err = buf.CheckListBounds(n, off, 1, v.elem)
		if err == nil {
			return v.mem[off:end:end]
		}
	}
	panic(fmt.Errorf("vec: slot %d of %d: %w", i, v.cap, err))
}
