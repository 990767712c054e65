// Package lock provides the exclusive-access guard shared by every
// process-wide structure of the kernel substrate.
//
// # Overview
//
// A Mutex wraps a value. The value is reachable only through the Guard
// returned by Lock, and the Guard must be released on every exit path:
//
//	g := queue.Lock()
//	defer g.Unlock()
//	g.Value().ready.Push(t)
//
// With is the closure form and releases the guard even when fn panics.
//
// # Contention
//
// Acquisition is an atomic test-and-set. A failed attempt spins a bounded
// number of times and then calls the injected Yield capability, which on the
// kernel is Scheduler.Suspend. Lock never imports the scheduler, so the
// package is usable outside the kernel context (a nil Yield means pure
// spinning).
//
// # Limitations
//
//   - No fairness: any contender may win the next attempt, starvation is possible.
//   - Not reentrant: a task locking a Mutex it already holds deadlocks. With
//     WithOwner and WithRecursionCheck the second Lock panics with
//     ErrRecursiveLock instead; this is meant for development builds.
package lock
