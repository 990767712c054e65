// Package alloc implements the kernel heap: a first-fit allocator over one
// fixed, statically sized byte region.
//
// # Layout
//
// The region is divided into units of HeaderSize (8) bytes. Every block starts
// with a one-unit header holding two little-endian uint32 fields:
//
//	+0  next  unit index of the next free block (allocMagic while allocated)
//	+4  size  payload size in units, header excluded
//
// Free blocks form a circular singly linked list kept in ascending address
// order; a solitary block links to itself. Links are unit indexes into the
// region rather than pointers, and every index is bounds-checked before use.
//
// # Allocation
//
// On first use the whole region becomes one free block of
// (regionSize - HeaderSize) / HeaderSize units whose unit 0 is the list head.
// Alloc walks the list starting just past the head:
//
//   - exact fit: the block is unlinked and returned whole
//   - larger block: the block shrinks by need+1 units and the allocation is
//     carved from its tail, so the free block keeps its position in the list
//   - back at the head without a fit: ErrOutOfMemory and the Null address
//
// Free walks the list in address order to the insertion point and coalesces
// with the physically adjacent following block, the preceding block, or both,
// or links the block in between its neighbours.
//
// # Concurrency
//
// All operations on one Allocator run under its single lock.Mutex; the
// contention path yields through the capability given with WithYield. The
// allocator lock must never be held while acquiring the scheduler's queue
// lock (the scheduler allocates while holding its own lock, never the other
// way round).
package alloc
