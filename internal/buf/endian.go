// Package buf contains bounds-checked little-endian helpers for the byte
// regions the kernel substrate keeps its records in (allocator block headers,
// register frames, queued task descriptors).
package buf

import "encoding/binary"

// U32LE reads a little-endian uint32 from b. Returns 0 when b is too short.
func U32LE(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// PutU32LE writes v little-endian into b. Reports false when b is too short.
func PutU32LE(b []byte, v uint32) bool {
	if len(b) < 4 {
		return false
	}
	binary.LittleEndian.PutUint32(b, v)
	return true
}

// U32At reads the little-endian uint32 stored at b[off:off+4].
func U32At(b []byte, off int) (uint32, bool) {
	s, ok := Slice(b, off, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(s), true
}

// PutU32At writes v little-endian at b[off:off+4].
func PutU32At(b []byte, off int, v uint32) bool {
	s, ok := Slice(b, off, 4)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint32(s, v)
	return true
}
