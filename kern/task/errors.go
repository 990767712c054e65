package task

import "errors"

var (
	// ErrNoRunnableTask means there is no current task and the ready queue is
	// empty. The system must halt.
	ErrNoRunnableTask = errors.New("task: no runnable task")

	// ErrResumedExitedTask is the panic value when an exited task is resumed.
	ErrResumedExitedTask = errors.New("task: exited task resumed")

	// ErrNotInitialized is returned before InitCurrent has installed a task.
	ErrNotInitialized = errors.New("task: scheduler not initialized")

	// ErrAlreadyInitialized is returned by a second InitCurrent.
	ErrAlreadyInitialized = errors.New("task: current task already installed")

	// ErrStackExhausted means no free stack slab is left above the stack floor.
	ErrStackExhausted = errors.New("task: stack space exhausted")

	// ErrIDSpaceExhausted means every task id has been handed out.
	ErrIDSpaceExhausted = errors.New("task: task id space exhausted")
)
