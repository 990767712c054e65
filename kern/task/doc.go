// Package task implements the cooperative round-robin scheduler of the kernel
// substrate and the three entry points the trap layer calls around every
// yield and interrupt return.
//
// # State
//
// The scheduler owns a current-task slot and a FIFO ready queue, both kept in
// one lock.Mutex. The ready queue is a vec.Vec of task descriptors stored in
// heap memory, so creating a task may allocate while the queue lock is held.
// The lock order is therefore queue lock, then allocator lock, never the
// reverse.
//
// A task goes Created -> Runnable (queued) -> Running (current) -> Runnable
// (re-queued on yield) -> Exited (descriptor dropped). There is no blocked
// state: a task waiting on something sits in the ready queue and retries when
// dispatched.
//
// # Trap contract
//
// Suspend executes the platform trap. The trap layer must then call, in
// order:
//
//  1. SaveCurrentTaskState with the frame it pushed
//  2. SwitchTaskAndGetNewStackPtr, and switch to the returned stack
//  3. RestoreCurrentTaskState into the frame it is about to pop
//
// The scheduler never transfers control itself.
//
// # Stacks
//
// Every task owns one StackSize slab. A new slab is the one just below the
// lowest slab in use by the current or a queued task; slabs have no guard
// pages and are never reclaimed explicitly, so an exited task's slab is only
// handed out again once no live task sits below it.
package task
