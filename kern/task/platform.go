package task

import "github.com/joshuapare/kernkit/kern/frame"

// Platform is what the scheduler needs from the machine underneath it.
type Platform interface {
	// StackPointer returns the live stack pointer of the calling context.
	StackPointer() uint32
	// CodeSegment returns the live code segment selector.
	CodeSegment() uint32
	// Flags returns the live flags register.
	Flags() uint32
	// TrampolineAddr is the entry address of every new task's frame.
	TrampolineAddr() uint32
	// FuncAddr returns the address the trampoline will resolve back to fn.
	FuncAddr(fn func()) uint32
	// WriteWord stores a word in stack memory.
	WriteWord(addr, v uint32) error
	// Trap enters the trap layer, which runs the save/switch/restore sequence.
	Trap()
}

// Observer receives scheduler events. Calls happen with the queue lock held
// and must not call back into the Scheduler.
type Observer interface {
	TaskCreated(id ID, f frame.Frame)
	TaskSwitched(from, to ID)
	TaskExited(id ID)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) TaskCreated(ID, frame.Frame) {}
func (NopObserver) TaskSwitched(ID, ID)         {}
func (NopObserver) TaskExited(ID)               {}
