package task

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/kern/alloc"
	"github.com/joshuapare/kernkit/kern/frame"
)

const (
	testSP         = 0x8fff0
	testTrampoline = 0x1000
	testCS         = 0x08
	testFlags      = 0x202
)

// fakePlatform records what the scheduler asks of the machine. Its Trap does
// not switch anything unless onTrap is set.
type fakePlatform struct {
	sp     uint32
	words  map[uint32]uint32
	funcs  []func()
	traps  int
	onTrap func()
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{sp: testSP, words: map[uint32]uint32{}}
}

func (p *fakePlatform) StackPointer() uint32   { return p.sp }
func (p *fakePlatform) CodeSegment() uint32    { return testCS }
func (p *fakePlatform) Flags() uint32          { return testFlags }
func (p *fakePlatform) TrampolineAddr() uint32 { return testTrampoline }

func (p *fakePlatform) FuncAddr(fn func()) uint32 {
	p.funcs = append(p.funcs, fn)
	return 0x100000 + uint32(len(p.funcs)-1)*0x10
}

func (p *fakePlatform) WriteWord(addr, v uint32) error {
	if addr < 0x80000 {
		return fmt.Errorf("fake: write below stack memory 0x%x", addr)
	}
	p.words[addr] = v
	return nil
}

func (p *fakePlatform) Trap() {
	p.traps++
	if p.onTrap != nil {
		p.onTrap()
	}
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) TaskCreated(id ID, f frame.Frame) {
	o.events = append(o.events, fmt.Sprintf("create %d esp=%x", id, f.ESP))
}

func (o *recordingObserver) TaskSwitched(from, to ID) {
	o.events = append(o.events, fmt.Sprintf("switch %d->%d", int32(from), to))
}

func (o *recordingObserver) TaskExited(id ID) {
	o.events = append(o.events, fmt.Sprintf("exit %d", id))
}

func newTestScheduler(t testing.TB, heapSize int, opts ...Option) (*Scheduler, *fakePlatform) {
	t.Helper()
	a, err := alloc.New(make([]byte, heapSize), 0x20000)
	require.NoError(t, err)
	p := newFakePlatform()
	s, err := New(a, p, opts...)
	require.NoError(t, err)
	return s, p
}

func newBootedScheduler(t testing.TB, opts ...Option) (*Scheduler, *fakePlatform) {
	t.Helper()
	s, p := newTestScheduler(t, 0x10000, opts...)
	require.NoError(t, s.InitCurrent(0))
	return s, p
}

// exitCurrent runs the current task's wrapper to completion; with the fake
// platform the final Suspend returns, which is the resumed-exited-task panic.
func exitCurrent(t testing.TB, s *Scheduler) {
	t.Helper()
	require.Panics(t, func() { s.TaskWrapper(func() {}) })
}
