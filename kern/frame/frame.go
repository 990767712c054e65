// Package frame defines the saved register context of a task and its byte
// layout at the trap boundary.
//
// The layout is the one the i386 trap entry produces: the eight
// general-purpose registers in PUSHA order followed by the interrupt return
// triple. Every field is a little-endian uint32:
//
//	0x00 edi  0x04 esi  0x08 ebp  0x0c esp
//	0x10 ebx  0x14 edx  0x18 ecx  0x1c eax
//	0x20 eip  0x24 cs   0x28 eflags
//
// Encode and Decode are the only way records cross the boundary; the layout
// must stay byte-identical to what the trap layer pushes.
package frame

import (
	"errors"
	"fmt"

	"github.com/joshuapare/kernkit/internal/buf"
)

// Platform tags the layout implemented by Frame.
const Platform = "i386"

const (
	// WordSize is the machine word in bytes.
	WordSize = 4

	// Size is the encoded frame size.
	Size = 11 * WordSize

	// PushaSize is the size of the general-purpose register block the trap
	// entry pushes below the saved stack pointer.
	PushaSize = 8 * WordSize
)

const (
	offEDI    = 0x00
	offESI    = 0x04
	offEBP    = 0x08
	offESP    = 0x0c
	offEBX    = 0x10
	offEDX    = 0x14
	offECX    = 0x18
	offEAX    = 0x1c
	offEIP    = 0x20
	offCS     = 0x24
	offEFLAGS = 0x28
)

// ErrShortFrame is returned when a buffer cannot hold a frame.
var ErrShortFrame = errors.New("frame: buffer shorter than frame size")

// Frame is the register context of a task.
type Frame struct {
	EDI, ESI, EBP, ESP uint32
	EBX, EDX, ECX, EAX uint32
	EIP                uint32
	CS                 uint32
	EFLAGS             uint32
}

// Decode reads a frame from the first Size bytes of src.
func Decode(src []byte) (Frame, error) {
	if len(src) < Size {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(src))
	}
	u := func(off int) uint32 { return buf.U32LE(src[off:]) }
	return Frame{
		EDI: u(offEDI), ESI: u(offESI), EBP: u(offEBP), ESP: u(offESP),
		EBX: u(offEBX), EDX: u(offEDX), ECX: u(offECX), EAX: u(offEAX),
		EIP:    u(offEIP),
		CS:     u(offCS),
		EFLAGS: u(offEFLAGS),
	}, nil
}

// Encode writes f into the first Size bytes of dst.
func (f Frame) Encode(dst []byte) error {
	if len(dst) < Size {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(dst))
	}
	for _, fld := range []struct {
		off int
		v   uint32
	}{
		{offEDI, f.EDI}, {offESI, f.ESI}, {offEBP, f.EBP}, {offESP, f.ESP},
		{offEBX, f.EBX}, {offEDX, f.EDX}, {offECX, f.ECX}, {offEAX, f.EAX},
		{offEIP, f.EIP}, {offCS, f.CS}, {offEFLAGS, f.EFLAGS},
	} {
		buf.PutU32LE(dst[fld.off:], fld.v)
	}
	return nil
}

func (f Frame) String() string {
	return fmt.Sprintf("{eip: %x, cs: %x, esp: %x, eflags: %x}", f.EIP, f.CS, f.ESP, f.EFLAGS)
}
