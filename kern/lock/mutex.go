package lock

import (
	"fmt"
	"sync/atomic"
)

// DefaultSpins is the number of failed test-and-set attempts before Lock
// yields the processor.
const DefaultSpins = 4

// Yield cooperatively suspends the calling task.
type Yield func()

// OwnerFunc identifies the calling task for recursion checking.
type OwnerFunc func() (id uint32, ok bool)

// Option configures a Mutex.
type Option func(*options)

type options struct {
	spins          int
	owner          OwnerFunc
	checkRecursion bool
}

// WithSpins sets how many failed attempts precede a yield. Negative values
// are treated as zero (yield after every failure).
func WithSpins(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.spins = n
	}
}

// WithOwner installs the caller identification used by recursion checking.
func WithOwner(fn OwnerFunc) Option {
	return func(o *options) { o.owner = fn }
}

// WithRecursionCheck turns on same-task re-acquisition detection.
// It has no effect without WithOwner.
func WithRecursionCheck(on bool) Option {
	return func(o *options) { o.checkRecursion = on }
}

// Mutex is a spin/yield lock guarding a value of type T.
type Mutex[T any] struct {
	guarded T
	locked  atomic.Bool
	yield   Yield
	opts    options

	// holder is owner id + 1 while held with recursion checking on, 0 otherwise.
	holder atomic.Uint64

	contended atomic.Uint64
}

// New wraps v. yield is called when the lock is contended; it may be nil.
func New[T any](v T, yield Yield, opts ...Option) *Mutex[T] {
	m := &Mutex[T]{guarded: v, yield: yield, opts: options{spins: DefaultSpins}}
	for _, opt := range opts {
		opt(&m.opts)
	}
	return m
}

// Lock acquires the mutex, yielding the current task while it is held
// elsewhere, and returns the Guard giving access to the value.
func (m *Mutex[T]) Lock() *Guard[T] {
	id, checking := m.caller()
	if checking && m.holder.Load() == uint64(id)+1 {
		panic(fmt.Errorf("%w: task %d", ErrRecursiveLock, id))
	}

	spun := 0
	for m.locked.Swap(true) {
		m.contended.Add(1)
		spun++
		if spun <= m.opts.spins {
			continue
		}
		spun = 0
		if m.yield != nil {
			m.yield()
		}
	}

	if checking {
		m.holder.Store(uint64(id) + 1)
	}
	return &Guard[T]{m: m}
}

// TryLock makes a single acquisition attempt.
func (m *Mutex[T]) TryLock() (*Guard[T], bool) {
	if m.locked.Swap(true) {
		return nil, false
	}
	if id, checking := m.caller(); checking {
		m.holder.Store(uint64(id) + 1)
	}
	return &Guard[T]{m: m}, true
}

// With runs fn with the guarded value and releases the lock on every exit
// path, panics included.
func (m *Mutex[T]) With(fn func(v *T) error) error {
	g := m.Lock()
	defer g.Unlock()
	return fn(g.Value())
}

// Locked reports whether the mutex is currently held.
func (m *Mutex[T]) Locked() bool { return m.locked.Load() }

// Contended returns the number of failed acquisition attempts so far.
func (m *Mutex[T]) Contended() uint64 { return m.contended.Load() }

func (m *Mutex[T]) caller() (uint32, bool) {
	if !m.opts.checkRecursion || m.opts.owner == nil {
		return 0, false
	}
	return m.opts.owner()
}

func (m *Mutex[T]) unlock() {
	m.holder.Store(0)
	m.locked.Store(false)
}

// Guard is the proof of holding a Mutex.
type Guard[T any] struct {
	m        *Mutex[T]
	released bool
}

// Value returns the guarded value. The pointer must not outlive the guard.
func (g *Guard[T]) Value() *T {
	if g.released {
		panic(ErrGuardReleased)
	}
	return &g.m.guarded
}

// Unlock releases the mutex. Extra calls are no-ops.
func (g *Guard[T]) Unlock() {
	if g.released {
		return
	}
	g.released = true
	g.m.unlock()
}
