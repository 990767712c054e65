package vec

import "github.com/joshuapare/kernkit/internal/buf"

// Codec stores values of T in fixed-size slots of heap memory.
type Codec[T any] interface {
	// Size is the slot size in bytes. Must be > 0.
	Size() int
	// Encode writes v into dst, which is exactly Size() bytes.
	Encode(dst []byte, v T)
	// Decode reads a value from src, which is exactly Size() bytes.
	Decode(src []byte) T
}

// ByteCodec stores bytes.
type ByteCodec struct{}

func (ByteCodec) Size() int                 { return 1 }
func (ByteCodec) Encode(dst []byte, v byte) { dst[0] = v }
func (ByteCodec) Decode(src []byte) byte    { return src[0] }

// Uint32Codec stores little-endian uint32 values.
type Uint32Codec struct{}

func (Uint32Codec) Size() int                   { return 4 }
func (Uint32Codec) Encode(dst []byte, v uint32) { buf.PutU32LE(dst, v) }
func (Uint32Codec) Decode(src []byte) uint32    { return buf.U32LE(src) }
