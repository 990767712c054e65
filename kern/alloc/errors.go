package alloc

import "errors"

var (
	// ErrOutOfMemory indicates that no free block is large enough.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrBadAddr indicates an address outside the region or not on a block boundary.
	ErrBadAddr = errors.New("alloc: bad address")

	// ErrNotAllocated indicates a free of (or access to) a block that is not
	// currently allocated, double frees included.
	ErrNotAllocated = errors.New("alloc: block not allocated")

	// ErrRegionTooSmall indicates a region that cannot hold a header and one unit.
	ErrRegionTooSmall = errors.New("alloc: region too small")

	// ErrBadSize indicates a non-positive allocation size.
	ErrBadSize = errors.New("alloc: size must be > 0")

	// ErrCorrupt indicates a free-list link pointing outside the region.
	ErrCorrupt = errors.New("alloc: free list corrupt")
)
