package task

import (
	"fmt"

	"github.com/joshuapare/kernkit/kern/frame"
)

// SaveCurrentTaskState copies the frame the trap entry pushed into the
// current task's descriptor. It is a no-op for a task that already exited.
func (s *Scheduler) SaveCurrentTaskState(src []byte) error {
	f, err := frame.Decode(src)
	if err != nil {
		return err
	}

	g := s.q.Lock()
	defer g.Unlock()
	q := g.Value()
	if q.hasCurrent {
		q.current.Frame = f
	}
	return nil
}

// SwitchTaskAndGetNewStackPtr dispatches the head of the ready queue and
// returns the stack address the trap layer must switch to.
//
// The previous current task goes to the tail of the queue. With an empty
// queue the current task keeps running and its stack pointer comes back
// unchanged. With an empty queue and no current task there is nothing left
// to run and ErrNoRunnableTask is returned; the caller must halt.
func (s *Scheduler) SwitchTaskAndGetNewStackPtr() (uint32, error) {
	g := s.q.Lock()
	defer g.Unlock()
	q := g.Value()

	next, ok := q.ready.Remove(0)
	if !ok {
		if q.hasCurrent {
			return q.current.Frame.ESP, nil
		}
		s.log.Error("no task to run, halting")
		return 0, ErrNoRunnableTask
	}

	from := None
	if q.hasCurrent {
		from = q.current.ID
		// len just dropped by one, so this push never grows the buffer
		if err := q.ready.Push(q.current); err != nil {
			return 0, fmt.Errorf("task: requeue task %d: %w", from, err)
		}
	}
	q.current = next
	q.hasCurrent = true
	s.current.Store(next.ID)

	s.log.Debug("switched task",
		"from", from,
		"to", next.ID,
		"eip", fmt.Sprintf("%x", next.Frame.EIP),
		"esp", fmt.Sprintf("%x", next.Frame.ESP))
	s.obs.TaskSwitched(from, next.ID)

	return next.Frame.ESP - TrapFrameOffset, nil
}

// RestoreCurrentTaskState writes the current task's saved frame to dst for
// the trap exit to reload.
func (s *Scheduler) RestoreCurrentTaskState(dst []byte) error {
	g := s.q.Lock()
	defer g.Unlock()
	q := g.Value()
	if !q.hasCurrent {
		return ErrNoRunnableTask
	}
	return q.current.Frame.Encode(dst)
}
