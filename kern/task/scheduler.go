package task

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/joshuapare/kernkit/internal/buf"
	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/kern/alloc"
	"github.com/joshuapare/kernkit/kern/frame"
	"github.com/joshuapare/kernkit/kern/lock"
	"github.com/joshuapare/kernkit/kern/vec"
)

const (
	// DefaultStackSize is the size of one task stack slab.
	DefaultStackSize = 0x1000

	// EntryArgOffset is the distance from a new task's stack pointer up to
	// the trampoline argument: the interrupt return triple (eip, cs, eflags)
	// and the trampoline's return slot.
	EntryArgOffset = 4 * frame.WordSize

	// TrapFrameOffset is how far below a task's saved stack pointer the trap
	// layer finds the register block it pops.
	TrapFrameOffset = frame.PushaSize
)

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	stackSize  uint32
	stackFloor uint32
	log        *slog.Logger
	observer   Observer
	lockOpts   []lock.Option
	checkLocks bool
}

// WithStackSize sets the slab size. Must be a power of two of at least one page word.
func WithStackSize(n uint32) Option {
	return func(o *options) { o.stackSize = n }
}

// WithStackFloor sets the lowest address a stack slab may start at.
func WithStackFloor(addr uint32) Option {
	return func(o *options) { o.stackFloor = addr }
}

// WithLogger sets the logger. Default: logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver installs an event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLockOptions passes options through to the queue lock.
func WithLockOptions(opts ...lock.Option) Option {
	return func(o *options) { o.lockOpts = append(o.lockOpts, opts...) }
}

// WithLockRecursionCheck makes re-locking the queue from the task holding it
// panic instead of deadlocking.
func WithLockRecursionCheck(on bool) Option {
	return func(o *options) { o.checkLocks = on }
}

// Scheduler is the cooperative round-robin task scheduler.
type Scheduler struct {
	p    Platform
	q    *lock.Mutex[queue]
	opts options
	log  *slog.Logger
	obs  Observer

	// current mirrors queue.current's id so it can be read without the lock.
	current atomic.Uint32
}

type queue struct {
	initialized bool
	hasCurrent  bool
	current     Task
	ready       *vec.Vec[Task]
	nextID      ID
}

// New creates a scheduler whose ready queue lives in a's heap.
func New(a *alloc.Allocator, p Platform, opts ...Option) (*Scheduler, error) {
	o := options{stackSize: DefaultStackSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.stackSize < 2*EntryArgOffset || o.stackSize&(o.stackSize-1) != 0 {
		return nil, fmt.Errorf("task: stack size 0x%x must be a power of two >= 0x%x", o.stackSize, 2*EntryArgOffset)
	}

	s := &Scheduler{
		p:    p,
		opts: o,
		log:  logger.Or(o.log),
		obs:  o.observer,
	}
	if s.obs == nil {
		s.obs = NopObserver{}
	}
	s.current.Store(None)

	lockOpts := append([]lock.Option{}, o.lockOpts...)
	if o.checkLocks {
		lockOpts = append(lockOpts, lock.WithOwner(s.CurrentID), lock.WithRecursionCheck(true))
	}
	q := queue{ready: vec.New[Task](a, descriptorCodec{})}
	s.q = lock.New(q, s.Suspend, lockOpts...)
	return s, nil
}

// StackSize returns the slab size.
func (s *Scheduler) StackSize() uint32 { return s.opts.stackSize }

// CurrentID returns the id of the running task.
func (s *Scheduler) CurrentID() (ID, bool) {
	id := s.current.Load()
	return id, id != None
}

// Snapshot returns the current task and the ready queue, head first.
func (s *Scheduler) Snapshot() Snapshot {
	g := s.q.Lock()
	defer g.Unlock()
	q := g.Value()

	snap := Snapshot{Current: None, Ready: make([]ID, 0, q.ready.Len())}
	if q.hasCurrent {
		snap.Current = q.current.ID
	}
	for _, t := range q.ready.All() {
		snap.Ready = append(snap.Ready, t.ID)
	}
	return snap
}

// InitCurrent installs the calling context as the current task with the
// given id. Its stack pointer is the top word of the slab the live stack
// pointer is in.
func (s *Scheduler) InitCurrent(id ID) error {
	if id == None {
		return fmt.Errorf("%w: id 0x%x reserved", ErrIDSpaceExhausted, id)
	}

	g := s.q.Lock()
	defer g.Unlock()
	q := g.Value()
	if q.hasCurrent {
		return fmt.Errorf("%w: task %d", ErrAlreadyInitialized, q.current.ID)
	}

	// round up: the live sp sits inside its slab, whose top word is the stack top
	sp := buf.AlignUp(s.p.StackPointer(), s.opts.stackSize) - frame.WordSize
	q.current = Task{
		ID: id,
		Frame: frame.Frame{
			ESP:    sp,
			CS:     s.p.CodeSegment(),
			EFLAGS: s.p.Flags(),
		},
	}
	q.hasCurrent = true
	q.initialized = true
	if id >= q.nextID {
		q.nextID = id + 1
	}
	s.current.Store(id)

	s.log.Debug("task installed", "tid", id, "esp", fmt.Sprintf("%x", sp))
	return nil
}

// Create queues a new task running fn and returns its id.
func (s *Scheduler) Create(fn func()) (ID, error) {
	g := s.q.Lock()
	defer g.Unlock()
	q := g.Value()

	if !q.initialized {
		return None, ErrNotInitialized
	}
	id := q.nextID
	if id == None {
		return None, ErrIDSpaceExhausted
	}

	top, err := s.nextStackTop(q)
	if err != nil {
		return None, err
	}

	entry := s.p.FuncAddr(fn)
	// the trampoline's argument sits at the top of the new stack
	if err := s.p.WriteWord(top, entry); err != nil {
		return None, fmt.Errorf("task: write entry for task %d: %w", id, err)
	}

	t := Task{
		ID: id,
		Frame: frame.Frame{
			EIP:    s.p.TrampolineAddr(),
			ESP:    top - EntryArgOffset,
			CS:     s.p.CodeSegment(),
			EFLAGS: s.p.Flags(),
		},
	}
	if err := q.ready.Push(t); err != nil {
		return None, fmt.Errorf("task: queue task %d: %w", id, err)
	}
	q.nextID++

	s.log.Debug("new task",
		"tid", id,
		"entry", fmt.Sprintf("%x", entry),
		"eip", fmt.Sprintf("%x", t.Frame.EIP),
		"esp", fmt.Sprintf("%x", t.Frame.ESP),
		"eflags", fmt.Sprintf("%x", t.Frame.EFLAGS))
	s.obs.TaskCreated(id, t.Frame)
	return id, nil
}

// nextStackTop returns the top word of the slab below the lowest slab in use.
func (s *Scheduler) nextStackTop(q *queue) (uint32, error) {
	size := s.opts.stackSize
	lowest := buf.AlignDown(math.MaxUint32, size)
	if q.hasCurrent {
		lowest = min(lowest, buf.AlignDown(q.current.Frame.ESP, size))
	}
	for _, t := range q.ready.All() {
		lowest = min(lowest, buf.AlignDown(t.Frame.ESP, size))
	}

	if lowest < size || lowest-size < s.opts.stackFloor {
		return 0, fmt.Errorf("%w: next slab below 0x%x", ErrStackExhausted, lowest)
	}
	return lowest - frame.WordSize, nil
}

// Suspend yields the processor through the platform trap. It returns when
// the calling task is dispatched again.
func (s *Scheduler) Suspend() {
	s.p.Trap()
}

// TaskWrapper is the body the trampoline runs for every created task: fn,
// then exit. It never returns.
func (s *Scheduler) TaskWrapper(fn func()) {
	id, _ := s.CurrentID()
	s.log.Debug("task started", "tid", id)

	fn()

	s.exitCurrent()
	s.Suspend()

	panic(fmt.Errorf("%w: task %d", ErrResumedExitedTask, id))
}

func (s *Scheduler) exitCurrent() {
	g := s.q.Lock()
	defer g.Unlock()
	q := g.Value()
	if !q.hasCurrent {
		return
	}
	id := q.current.ID
	q.hasCurrent = false
	q.current = Task{}
	s.current.Store(None)

	s.log.Debug("task exited", "tid", id)
	s.obs.TaskExited(id)
}
