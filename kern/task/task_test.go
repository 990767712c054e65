package task

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/kern/frame"
)

func TestDescriptorCodec(t *testing.T) {
	in := Task{
		ID: 7,
		Frame: frame.Frame{
			EDI: 1, ESI: 2, EBP: 3, ESP: 0x8efec,
			EBX: 5, EDX: 6, ECX: 7, EAX: 8,
			EIP: 0x1000, CS: 0x08, EFLAGS: 0x202,
		},
	}
	var c descriptorCodec
	b := make([]byte, c.Size())
	c.Encode(b, in)

	require.Equal(t, byte(7), b[0])
	require.Equal(t, in, c.Decode(b))
}

func TestDescriptorCodecShortSlotPanics(t *testing.T) {
	var c descriptorCodec
	short := make([]byte, c.Size()-1)
	require.Panics(t, func() { c.Encode(short, Task{ID: 1}) })
	require.Panics(t, func() { c.Decode(short) })
}
