package alloc

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/joshuapare/kernkit/internal/buf"
	"github.com/joshuapare/kernkit/internal/logger"
	"github.com/joshuapare/kernkit/kern/lock"
)

// Runtime debug flag for allocation logging - controlled by KERNKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("KERNKIT_LOG_ALLOC") != ""

const (
	// allocMagic marks the next field of an allocated block header.
	allocMagic uint32 = 0xA110CA7E

	// noBlock is the head value of an exhausted free list.
	noBlock uint32 = math.MaxUint32
)

// Option configures an Allocator.
type Option func(*options)

type options struct {
	yield    lock.Yield
	log      *slog.Logger
	lockOpts []lock.Option
}

// WithYield sets the capability called when the allocator lock is contended.
func WithYield(y lock.Yield) Option {
	return func(o *options) { o.yield = y }
}

// WithLogger sets the logger. Default: logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithLockOptions passes options through to the allocator lock.
func WithLockOptions(opts ...lock.Option) Option {
	return func(o *options) { o.lockOpts = append(o.lockOpts, opts...) }
}

// Allocator is the heap. All methods are safe for concurrent use.
type Allocator struct {
	mu   *lock.Mutex[heap]
	base Addr
	size int
}

// heap is the lock-guarded allocator state.
type heap struct {
	mem   []byte
	base  Addr
	units uint32
	head  uint32
	ready bool
	stats Stats
	log   *slog.Logger
}

// New creates an allocator managing mem, whose first byte lives at address
// base. mem must be zeroed; it is truncated to a whole number of units.
func New(mem []byte, base Addr, opts ...Option) (*Allocator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	units := len(mem) / HeaderSize
	if units < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrRegionTooSmall, len(mem))
	}
	size := units * HeaderSize
	if uint64(base)+uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: region 0x%x+0x%x exceeds 32-bit space", ErrBadAddr, base, size)
	}
	if base%HeaderSize != 0 {
		return nil, fmt.Errorf("%w: base 0x%x not %d-aligned", ErrBadAddr, base, HeaderSize)
	}

	h := heap{
		mem:   mem[:size:size],
		base:  base,
		units: uint32(units),
		head:  0,
		log:   logger.Or(o.log),
	}
	return &Allocator{
		mu:   lock.New(h, o.yield, o.lockOpts...),
		base: base,
		size: size,
	}, nil
}

// Base returns the address of the first region byte.
func (a *Allocator) Base() Addr { return a.base }

// Len returns the region size in bytes.
func (a *Allocator) Len() int { return a.size }

// Alloc returns the address of a block with at least size bytes of payload.
// On exhaustion it returns Null and ErrOutOfMemory.
func (a *Allocator) Alloc(size int) (Addr, error) {
	g := a.mu.Lock()
	defer g.Unlock()
	return g.Value().alloc(size)
}

// Free returns the block at addr to the free list.
func (a *Allocator) Free(addr Addr) error {
	g := a.mu.Lock()
	defer g.Unlock()
	return g.Value().free(addr)
}

// Bytes returns the whole payload of the allocated block at addr.
func (a *Allocator) Bytes(addr Addr) ([]byte, error) {
	g := a.mu.Lock()
	defer g.Unlock()
	h := g.Value()
	u, err := h.allocated(addr)
	if err != nil {
		return nil, err
	}
	off := int(u+1) * HeaderSize
	p, ok := buf.Slice(h.mem, off, int(h.size(u))*HeaderSize)
	if !ok {
		return nil, fmt.Errorf("%w: block at 0x%x", ErrCorrupt, addr)
	}
	return p, nil
}

// Size returns the payload size in bytes of the allocated block at addr.
func (a *Allocator) Size(addr Addr) (int, error) {
	g := a.mu.Lock()
	defer g.Unlock()
	h := g.Value()
	u, err := h.allocated(addr)
	if err != nil {
		return 0, err
	}
	return int(h.size(u)) * HeaderSize, nil
}

// Stats returns a snapshot of the allocator counters. A broken free list
// yields the counters gathered so far and an ErrCorrupt.
func (a *Allocator) Stats() (Stats, error) {
	g := a.mu.Lock()
	defer g.Unlock()
	h := g.Value()
	h.init()
	st := h.stats
	st.TotalUnits = int(h.units) - 1
	blocks, err := h.freeBlocks()
	for _, b := range blocks {
		st.FreeUnits += b.Units
	}
	st.FreeBlockCt = len(blocks)
	if err != nil {
		h.log.Error("alloc: free list corrupt", "err", err)
	}
	return st, err
}

// FreeBlocks returns the free list in ascending address order.
func (a *Allocator) FreeBlocks() ([]Block, error) {
	g := a.mu.Lock()
	defer g.Unlock()
	h := g.Value()
	h.init()
	return h.freeBlocks()
}

// init lazily carves the region into one giant free block.
func (h *heap) init() {
	if h.ready {
		return
	}
	h.ready = true
	h.head = 0
	h.setNext(0, 0)
	h.setSize(0, h.units-1)
}

func (h *heap) alloc(size int) (Addr, error) {
	h.stats.AllocCalls++
	if size <= 0 {
		return Null, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	h.init()

	need64 := (uint64(size) + HeaderSize - 1) / HeaderSize
	if need64 >= uint64(h.units) || h.head == noBlock {
		return h.oom(size)
	}
	need := uint32(need64)

	prev := h.head
	curr := h.next(prev)
	for steps := uint32(0); ; steps++ {
		if !h.valid(curr) || steps > h.units {
			return Null, fmt.Errorf("%w: link %d", ErrCorrupt, curr)
		}

		sz := h.size(curr)
		if sz == need {
			if curr == prev {
				h.head = noBlock
			} else {
				h.setNext(prev, h.next(curr))
				if curr == h.head {
					h.head = prev
				}
			}
			h.setNext(curr, allocMagic)
			return h.granted(curr, size), nil
		}

		if sz > need {
			// shrink the free block and hand out its tail
			rest := sz - need - 1
			h.setSize(curr, rest)

			blk := curr + rest + 1
			h.setSize(blk, need)
			h.setNext(blk, allocMagic)
			h.stats.Splits++
			return h.granted(blk, size), nil
		}

		if curr == h.head {
			return h.oom(size)
		}
		prev = curr
		curr = h.next(curr)
	}
}

func (h *heap) granted(u uint32, size int) Addr {
	addr := h.addrOf(u)
	if logAlloc {
		h.log.Info("alloc", "size", size, "units", h.size(u), "addr", addr)
	}
	return addr
}

func (h *heap) oom(size int) (Addr, error) {
	h.stats.Failures++
	h.log.Debug("alloc: out of memory", "size", size)
	return Null, fmt.Errorf("%w: %d bytes", ErrOutOfMemory, size)
}

func (h *heap) free(addr Addr) error {
	d, err := h.allocated(addr)
	if err != nil {
		return err
	}
	h.stats.FreeCalls++
	if logAlloc {
		h.log.Info("free", "addr", addr, "units", h.size(d))
	}

	if h.head == noBlock {
		h.setNext(d, d)
		h.head = d
		return nil
	}

	// find p with p < d < next(p), or the wrap point of the list
	p := h.head
	for steps := uint32(0); ; steps++ {
		n := h.next(p)
		if !h.valid(n) || steps > h.units {
			return fmt.Errorf("%w: link %d", ErrCorrupt, n)
		}
		if d > p && d < n {
			break
		}
		if p >= n && (d > p || d < n) {
			break
		}
		p = n
	}
	curr := h.next(p)

	if d+h.size(d)+1 == curr {
		h.setSize(d, h.size(d)+h.size(curr)+1)
		if h.next(curr) == curr {
			h.setNext(d, d)
		} else {
			h.setNext(d, h.next(curr))
		}
		if curr == h.head {
			h.head = d
		}
		h.stats.Coalesces++
		if curr == p {
			return nil
		}
	} else {
		h.setNext(d, curr)
	}

	if p+h.size(p)+1 == d {
		h.setSize(p, h.size(p)+h.size(d)+1)
		h.setNext(p, h.next(d))
		if h.head == d {
			h.head = p
		}
		h.stats.Coalesces++
	} else {
		h.setNext(p, d)
	}
	return nil
}

// allocated resolves addr to the unit of its header and checks that the
// block is allocated.
func (h *heap) allocated(addr Addr) (uint32, error) {
	if addr < h.base+HeaderSize || addr%HeaderSize != 0 {
		return 0, fmt.Errorf("%w: 0x%x", ErrBadAddr, addr)
	}
	off := addr - h.base
	u := off/HeaderSize - 1
	if u >= h.units {
		return 0, fmt.Errorf("%w: 0x%x", ErrBadAddr, addr)
	}
	if !h.ready || h.next(u) != allocMagic {
		return 0, fmt.Errorf("%w: 0x%x", ErrNotAllocated, addr)
	}
	if uint64(u)+uint64(h.size(u))+1 > uint64(h.units) {
		return 0, fmt.Errorf("%w: block at 0x%x overruns region", ErrCorrupt, addr)
	}
	return u, nil
}

func (h *heap) freeBlocks() ([]Block, error) {
	if h.head == noBlock {
		return nil, nil
	}
	var out []Block
	u := h.head
	for steps := uint32(0); ; steps++ {
		if !h.valid(u) || steps > h.units {
			return out, fmt.Errorf("%w: link %d", ErrCorrupt, u)
		}
		out = append(out, Block{Addr: h.base + u*HeaderSize, Units: int(h.size(u))})
		u = h.next(u)
		if u == h.head {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}

func (h *heap) valid(u uint32) bool { return u < h.units }

func (h *heap) addrOf(u uint32) Addr { return h.base + (u+1)*HeaderSize }

func (h *heap) next(u uint32) uint32 {
	v, ok := buf.U32At(h.mem, int(u)*HeaderSize)
	if !ok {
		return noBlock
	}
	return v
}

func (h *heap) size(u uint32) uint32 {
	v, _ := buf.U32At(h.mem, int(u)*HeaderSize+4)
	return v
}

func (h *heap) setNext(u, v uint32) { buf.PutU32At(h.mem, int(u)*HeaderSize, v) }

func (h *heap) setSize(u, v uint32) { buf.PutU32At(h.mem, int(u)*HeaderSize+4, v) }
