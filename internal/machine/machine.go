// Package machine simulates the single-core platform underneath the
// scheduler: the register accessors, stack memory, the trap instruction and
// the trap layer that runs save -> switch -> restore around every yield.
//
// Each task body runs on its own goroutine, but exactly one of them holds the
// simulated CPU at a time. Trap hands the CPU to the context whose stack the
// restored frame points at and parks the caller until it is dispatched again,
// so the Go scheduler never runs two task bodies concurrently.
package machine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/joshuapare/kernkit/internal/buf"
	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/kern/frame"
	"github.com/joshuapare/kernkit/kern/task"
)

const (
	// KernelCS is the flat code segment selector.
	KernelCS = 0x08

	// DefaultEFLAGS has the reserved bit and IF set.
	DefaultEFLAGS = 0x202

	// TrampolineAddr is the fixed entry of every new task's frame.
	TrampolineAddr = 0x1000

	// resumeAddr is the eip recorded for a context parked in Trap.
	resumeAddr = 0x1010

	// funcBase is where FuncAddr starts handing out entry addresses.
	funcBase = 0x100000
	funcStep = 0x10
)

var (
	// ErrBadAddress is returned for stack accesses outside stack memory.
	ErrBadAddress = errors.New("machine: address outside stack memory")

	// ErrNoContext is raised when a restored frame belongs to no known context.
	ErrNoContext = errors.New("machine: frame belongs to no context")
)

// Kernel is the scheduler side of the trap contract.
type Kernel interface {
	InitCurrent(id task.ID) error
	CurrentID() (task.ID, bool)
	Snapshot() task.Snapshot
	SaveCurrentTaskState(src []byte) error
	SwitchTaskAndGetNewStackPtr() (uint32, error)
	RestoreCurrentTaskState(dst []byte) error
	TaskWrapper(fn func())
}

// Config describes the simulated machine.
type Config struct {
	StackBase uint32 // lowest stack memory address
	StackTop  uint32 // one past the highest stack memory address
	StackSize uint32 // slab size, must match the scheduler's
	InitialSP uint32 // boot stack pointer of the root context
}

// DefaultConfig returns 16 slabs of 4 KiB below 0x90000.
func DefaultConfig() Config {
	return Config{
		StackBase: 0x80000,
		StackTop:  0x90000,
		StackSize: task.DefaultStackSize,
		InitialSP: 0x8fff0,
	}
}

// Machine is the simulated platform. It implements task.Platform.
type Machine struct {
	cfg Config
	k   Kernel
	mem []byte
	log *slog.Logger

	funcs []func()

	// contexts maps a stack slab to the context running on it.
	contexts map[uint32]*vcpu
	running  *vcpu

	handlersMu sync.Mutex
	handlers   map[int]func()

	switches int
}

// vcpu is one execution context (a task body goroutine).
type vcpu struct {
	slab   uint32
	regs   frame.Frame
	resume chan struct{}
}

// New creates a machine with zeroed stack memory.
func New(cfg Config, log *slog.Logger) (*Machine, error) {
	if cfg.StackTop <= cfg.StackBase || cfg.StackSize == 0 || cfg.StackSize&(cfg.StackSize-1) != 0 {
		return nil, fmt.Errorf("machine: bad stack layout %+v", cfg)
	}
	if cfg.InitialSP <= cfg.StackBase || cfg.InitialSP > cfg.StackTop {
		return nil, fmt.Errorf("machine: initial sp 0x%x outside stack memory", cfg.InitialSP)
	}
	return &Machine{
		cfg:      cfg,
		mem:      make([]byte, cfg.StackTop-cfg.StackBase),
		log:      logger.Or(log),
		contexts: make(map[uint32]*vcpu),
		handlers: make(map[int]func()),
	}, nil
}

// Attach connects the scheduler. It must be called before Run.
func (m *Machine) Attach(k Kernel) { m.k = k }

// Config returns the machine layout.
func (m *Machine) Config() Config { return m.cfg }

// Switches returns how many traps resumed a different context.
func (m *Machine) Switches() int { return m.switches }

// StackPointer implements task.Platform.
func (m *Machine) StackPointer() uint32 { return m.running.regs.ESP }

// CodeSegment implements task.Platform.
func (m *Machine) CodeSegment() uint32 { return KernelCS }

// Flags implements task.Platform.
func (m *Machine) Flags() uint32 { return DefaultEFLAGS }

// TrampolineAddr implements task.Platform.
func (m *Machine) TrampolineAddr() uint32 { return TrampolineAddr }

// FuncAddr implements task.Platform.
func (m *Machine) FuncAddr(fn func()) uint32 {
	m.funcs = append(m.funcs, fn)
	return funcBase + uint32(len(m.funcs)-1)*funcStep
}

// WriteWord implements task.Platform.
func (m *Machine) WriteWord(addr, v uint32) error {
	if addr < m.cfg.StackBase || !buf.PutU32At(m.mem, int(addr-m.cfg.StackBase), v) {
		return fmt.Errorf("%w: 0x%x", ErrBadAddress, addr)
	}
	return nil
}

// ReadWord returns the stack word at addr.
func (m *Machine) ReadWord(addr uint32) (uint32, error) {
	if addr < m.cfg.StackBase {
		return 0, fmt.Errorf("%w: 0x%x", ErrBadAddress, addr)
	}
	v, ok := buf.U32At(m.mem, int(addr-m.cfg.StackBase))
	if !ok {
		return 0, fmt.Errorf("%w: 0x%x", ErrBadAddress, addr)
	}
	return v, nil
}

func (m *Machine) lookupFunc(addr uint32) (func(), error) {
	if addr < funcBase || (addr-funcBase)%funcStep != 0 {
		return nil, fmt.Errorf("machine: 0x%x is not an entry address", addr)
	}
	i := int((addr - funcBase) / funcStep)
	if i >= len(m.funcs) {
		return nil, fmt.Errorf("machine: 0x%x is not an entry address", addr)
	}
	return m.funcs[i], nil
}

// Run boots the root context on the calling goroutine as task 0, runs root,
// and then keeps yielding until no other task is runnable.
func (m *Machine) Run(root func()) error {
	if m.k == nil {
		return errors.New("machine: no kernel attached")
	}
	sp := m.cfg.InitialSP
	boot := &vcpu{
		slab:   buf.AlignDown(sp, m.cfg.StackSize),
		regs:   frame.Frame{ESP: sp, CS: KernelCS, EFLAGS: DefaultEFLAGS},
		resume: make(chan struct{}),
	}
	m.running = boot
	m.contexts[boot.slab] = boot

	if err := m.k.InitCurrent(0); err != nil {
		return err
	}

	root()

	for len(m.k.Snapshot().Ready) > 0 {
		m.Trap()
	}
	return nil
}

// Trap is the trap instruction plus the trap layer. It returns when the
// calling context is dispatched again; a context whose task has exited never
// returns from it.
func (m *Machine) Trap() {
	me := m.running
	_, alive := m.k.CurrentID()

	// trap entry: push the live registers
	var tf [frame.Size]byte
	pushed := me.regs
	pushed.EIP = resumeAddr
	m.must(pushed.Encode(tf[:]))

	m.must(m.k.SaveCurrentTaskState(tf[:]))
	sp, err := m.k.SwitchTaskAndGetNewStackPtr()
	if err != nil {
		panic(fmt.Errorf("machine: halted: %w", err))
	}
	m.must(m.k.RestoreCurrentTaskState(tf[:]))

	next, err := frame.Decode(tf[:])
	m.must(err)
	if sp != next.ESP && sp != next.ESP-task.TrapFrameOffset {
		m.must(fmt.Errorf("machine: switch returned sp 0x%x for frame %s", sp, next))
	}

	target, err := m.contextFor(next)
	m.must(err)
	target.regs = next
	if target == me {
		return
	}

	m.switches++
	if !alive {
		delete(m.contexts, me.slab)
	}
	m.running = target
	target.resume <- struct{}{}

	if !alive {
		runtime.Goexit()
	}
	<-me.resume
}

// contextFor finds the context owning f's stack, starting a new one for a
// task that has never run.
func (m *Machine) contextFor(f frame.Frame) (*vcpu, error) {
	slab := buf.AlignDown(f.ESP, m.cfg.StackSize)
	if c, ok := m.contexts[slab]; ok && f.EIP != TrampolineAddr {
		return c, nil
	}
	if f.EIP != TrampolineAddr {
		return nil, fmt.Errorf("%w: %s", ErrNoContext, f)
	}

	entry, err := m.ReadWord(f.ESP + task.EntryArgOffset)
	if err != nil {
		return nil, err
	}
	fn, err := m.lookupFunc(entry)
	if err != nil {
		return nil, err
	}

	c := &vcpu{slab: slab, regs: f, resume: make(chan struct{})}
	m.contexts[slab] = c
	go func() {
		<-c.resume
		m.k.TaskWrapper(fn)
	}()
	m.log.Debug("context started", "slab", fmt.Sprintf("%x", slab), "entry", fmt.Sprintf("%x", entry))
	return c, nil
}

func (m *Machine) must(err error) {
	if err != nil {
		panic(err)
	}
}

// Register installs the handler for an interrupt vector.
func (m *Machine) Register(vector int, h func()) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[vector] = h
}

// Raise delivers an interrupt. The handler runs on the caller and the
// interrupted task keeps the processor afterwards.
func (m *Machine) Raise(vector int) bool {
	m.handlersMu.Lock()
	h := m.handlers[vector]
	m.handlersMu.Unlock()
	if h == nil {
		return false
	}
	h()
	return true
}
