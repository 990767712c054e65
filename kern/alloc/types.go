package alloc

// Addr is an address inside the heap region (region base + byte offset).
type Addr = uint32

// Null is the failure sentinel returned together with ErrOutOfMemory.
const Null Addr = 0

// HeaderSize is the size of a block header and the allocation unit.
const HeaderSize = 8

// Block describes one free block as seen by FreeBlocks.
type Block struct {
	Addr  Addr // address of the header
	Units int  // payload units, header excluded
}

// Bytes returns the payload size in bytes.
func (b Block) Bytes() int { return b.Units * HeaderSize }

// Stats holds allocator counters.
type Stats struct {
	AllocCalls  int // Alloc calls, failed ones included
	FreeCalls   int // successful Free calls
	Failures    int // Alloc calls that ran out of memory
	Splits      int // allocations carved from a larger block
	Coalesces   int // merges performed by Free
	TotalUnits  int // payload units available in an empty heap
	FreeUnits   int // payload units currently free
	FreeBlockCt int // number of blocks on the free list
}
