package task

import (
	"fmt"
	"math"

	"github.com/joshuapare/kernkit/internal/buf"
	"github.com/joshuapare/kernkit/kern/frame"
)

// ID identifies a task. Ids increase monotonically and are never reused.
type ID = uint32

// None is the id reported when there is no task.
const None ID = math.MaxUint32

// Task is a task descriptor.
type Task struct {
	ID    ID
	Frame frame.Frame
}

// descriptorSize is the encoded size of a Task in the ready queue.
const descriptorSize = 4 + frame.Size

// descriptorCodec stores Task descriptors in heap memory.
type descriptorCodec struct{}

func (descriptorCodec) Size() int { return descriptorSize }

// Encode and Decode panic on a short slot; vec always hands them
// exactly descriptorSize bytes.
func (descriptorCodec) Encode(dst []byte, t Task) {
	buf.PutU32LE(dst, t.ID)
	if err := t.Frame.Encode(dst[4:]); err != nil {
		panic(fmt.Errorf("task %d: %w", t.ID, err))
	}
}

func (descriptorCodec) Decode(src []byte) Task {
	f, err := frame.Decode(src[4:])
	if err != nil {
		panic(fmt.Errorf("task descriptor: %w", err))
	}
	return Task{ID: buf.U32LE(src), Frame: f}
}

// Snapshot is a point-in-time view of the scheduler queue.
type Snapshot struct {
	Current ID   // None when no task is current
	Ready   []ID // ready queue, head first
}
