package lock

import "errors"

var (
	// ErrRecursiveLock is raised when recursion checking is on and the
	// holder of a Mutex tries to lock it again.
	ErrRecursiveLock = errors.New("lock: recursive acquisition by holder")

	// ErrGuardReleased is raised when a released Guard is dereferenced.
	ErrGuardReleased = errors.New("lock: guard already released")
)
