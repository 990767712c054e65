package kern

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/internal/machine"
	"github.com/joshuapare/kernkit/internal/region"
	"github.com/joshuapare/kernkit/kern/alloc"
	"github.com/joshuapare/kernkit/kern/console"
	"github.com/joshuapare/kernkit/kern/lock"
	"github.com/joshuapare/kernkit/kern/ring"
	"github.com/joshuapare/kernkit/kern/task"
)

// Interrupt vectors of the remapped master PIC.
const (
	TimerVector    = 32
	KeyboardVector = 33
)

// Option configures a Kernel.
type Option func(*options)

type options struct {
	log      *slog.Logger
	observer task.Observer
	bootID   uuid.UUID
}

// WithLogger sets the logger. Default: logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithBootID sets the boot id instead of generating one.
func WithBootID(id uuid.UUID) Option {
	return func(o *options) { o.bootID = id }
}

// WithObserver installs a scheduler event observer.
func WithObserver(obs task.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Kernel is the kernel context.
type Kernel struct {
	// BootID tags every log line of one boot.
	BootID uuid.UUID

	Alloc    *alloc.Allocator
	Sched    *task.Scheduler
	Machine  *machine.Machine
	Keyboard *ring.Buf
	Console  *console.Console

	cfg    Config
	log    *slog.Logger
	region *region.Region

	// kbdPort is the keyboard data port read by the interrupt handler.
	kbdPort atomic.Uint32
	dropped atomic.Uint64
}

// New builds a kernel from cfg.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kern: invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.bootID == uuid.Nil {
		o.bootID = uuid.New()
	}
	k := &Kernel{
		BootID:   o.bootID,
		cfg:      *cfg,
		Keyboard: &ring.Buf{},
	}
	k.log = logger.Or(o.log).With("boot", k.BootID.String())

	lockOpts := []lock.Option{lock.WithSpins(cfg.Lock.Spins)}
	if cfg.Lock.RecursionCheck {
		lockOpts = append(lockOpts, lock.WithOwner(k.currentID), lock.WithRecursionCheck(true))
	}

	reg, err := region.New(cfg.Heap.Size, cfg.Heap.Mmap)
	if err != nil {
		return nil, fmt.Errorf("kern: heap region: %w", err)
	}
	k.region = reg

	k.Alloc, err = alloc.New(reg.Bytes(), cfg.Heap.Base,
		alloc.WithYield(k.Yield),
		alloc.WithLogger(k.log),
		alloc.WithLockOptions(lockOpts...))
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	k.Machine, err = machine.New(machine.Config{
		StackBase: cfg.Stack.Base,
		StackTop:  cfg.Stack.Top,
		StackSize: cfg.Stack.SlabSize,
		InitialSP: cfg.Stack.InitialSP,
	}, k.log)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	floor := cfg.Stack.Floor
	if floor == 0 {
		floor = cfg.Stack.Base
	}
	schedOpts := []task.Option{
		task.WithStackSize(cfg.Stack.SlabSize),
		task.WithStackFloor(floor),
		task.WithLogger(k.log),
		task.WithLockOptions(lock.WithSpins(cfg.Lock.Spins)),
		task.WithLockRecursionCheck(cfg.Lock.RecursionCheck),
	}
	if o.observer != nil {
		schedOpts = append(schedOpts, task.WithObserver(o.observer))
	}
	k.Sched, err = task.New(k.Alloc, k.Machine, schedOpts...)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}
	k.Machine.Attach(k.Sched)

	k.Console = console.New(k.Keyboard, console.NewScreen(k.Yield), k.Yield)
	k.Machine.Register(KeyboardVector, k.keyboardInterrupt)
	k.Machine.Register(TimerVector, func() {})

	k.log.Debug("kernel built",
		"heap", fmt.Sprintf("%x+%x", cfg.Heap.Base, cfg.Heap.Size),
		"stack", fmt.Sprintf("%x-%x", cfg.Stack.Base, cfg.Stack.Top),
		"mmap", cfg.Heap.Mmap)
	return k, nil
}

// Config returns the configuration the kernel was built from.
func (k *Kernel) Config() Config { return k.cfg }

// Logger returns the boot-tagged logger.
func (k *Kernel) Logger() *slog.Logger { return k.log }

// Run boots root as task 0 and returns once root has returned and every
// task it spawned has exited.
func (k *Kernel) Run(root func(k *Kernel)) error {
	k.log.Info("boot", "sp", fmt.Sprintf("%x", k.cfg.Stack.InitialSP))
	return k.Machine.Run(func() { root(k) })
}

// Spawn creates a task running fn.
func (k *Kernel) Spawn(fn func()) (task.ID, error) {
	return k.Sched.Create(fn)
}

// Yield suspends the calling task. Lock contention and console input go
// through here.
func (k *Kernel) Yield() {
	// resolved on every call: the allocator is built before the scheduler
	if k.Sched == nil {
		return
	}
	k.Sched.Suspend()
}

// KeyPress delivers a keyboard interrupt carrying scan code scan.
func (k *Kernel) KeyPress(scan byte) {
	k.kbdPort.Store(uint32(scan))
	k.Machine.Raise(KeyboardVector)
}

// Type presses the keys producing s. Characters with no key are skipped.
func (k *Kernel) Type(s string) {
	for i := 0; i < len(s); i++ {
		scan, ok := console.ScanCode(s[i])
		if !ok {
			k.log.Debug("no key for character", "char", s[i])
			continue
		}
		k.KeyPress(scan)
	}
}

// KeysDropped returns how many keys the reject overflow policy discarded.
func (k *Kernel) KeysDropped() uint64 { return k.dropped.Load() }

// keyboardInterrupt appends the pressed key to the keyboard buffer. It never
// reschedules.
func (k *Kernel) keyboardInterrupt() {
	scan := byte(k.kbdPort.Load())
	c, ok := console.Translate(scan)
	if !ok {
		return
	}
	if k.cfg.Keyboard.Overflow == OverflowReject {
		if err := k.Keyboard.TryPushBack(c); err != nil {
			k.dropped.Add(1)
			k.log.Debug("key dropped", "scan", scan, "err", err)
		}
		return
	}
	k.Keyboard.PushBack(c)
}

// Close releases the heap region.
func (k *Kernel) Close() error {
	return k.region.Close()
}

func (k *Kernel) currentID() (uint32, bool) {
	if k.Sched == nil {
		return 0, false
	}
	return k.Sched.CurrentID()
}
