package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/kern/alloc"
)

func newTestHeap(t testing.TB, size int) *alloc.Allocator {
	t.Helper()
	a, err := alloc.New(make([]byte, size), 0x20000)
	require.NoError(t, err)
	return a
}

func collect[T any](v *Vec[T]) []T {
	var out []T
	for _, x := range v.All() {
		out = append(out, x)
	}
	return out
}

func TestEmptyVecIsUnallocated(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[uint32](a, Uint32Codec{})

	require.Zero(t, v.Len())
	require.Zero(t, v.Cap())
	_, ok := v.Pop()
	require.False(t, ok)
	require.NoError(t, v.Release())
	st, err := a.Stats()
	require.NoError(t, err)
	require.Equal(t, 0, st.AllocCalls)
}

func TestPushGrowthPolicy(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[uint32](a, Uint32Codec{})

	var caps []int
	for i := uint32(0); i < 9; i++ {
		require.NoError(t, v.Push(i))
		caps = append(caps, v.Cap())
	}
	require.Equal(t, []int{2, 2, 4, 4, 8, 8, 8, 8, 16}, caps)
	require.Equal(t, 9, v.Len())
	require.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}, collect(v))
}

func TestGrowthFreesOldBuffer(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[byte](a, ByteCodec{})
	for i := 0; i < 100; i++ {
		require.NoError(t, v.Push(byte(i)))
	}

	st, err := a.Stats()
	require.NoError(t, err)
	require.Equal(t, st.AllocCalls-1, st.FreeCalls, "only the live buffer stays allocated")

	require.NoError(t, v.Release())
	blocks, err := a.FreeBlocks()
	require.NoError(t, err)
	require.Len(t, blocks, 1)
}

func TestPopAfterPush(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[uint32](a, Uint32Codec{})

	require.NoError(t, v.Push(10))
	require.NoError(t, v.Push(0xdeadbeef))
	x, ok := v.Pop()
	require.True(t, ok)
	require.Equal(t, uint32(0xdeadbeef), x)
	require.Equal(t, 1, v.Len())
	require.Equal(t, 2, v.Cap(), "pop never shrinks")
}

func TestSwapAndSwapRemove(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[uint32](a, Uint32Codec{})
	for _, x := range []uint32{1, 2, 3, 4, 5} {
		require.NoError(t, v.Push(x))
	}

	v.Swap(0, 4)
	v.Swap(1, 99) // ignored
	require.Equal(t, []uint32{5, 2, 3, 4, 1}, collect(v))

	x, ok := v.SwapRemove(1)
	require.True(t, ok)
	require.Equal(t, uint32(2), x)
	require.ElementsMatch(t, []uint32{5, 1, 3, 4}, collect(v))
	require.Equal(t, []uint32{5, 1, 3, 4}, collect(v))

	_, ok = v.SwapRemove(4)
	require.False(t, ok)
}

func TestRemovePreservesOrder(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[uint32](a, Uint32Codec{})
	for _, x := range []uint32{1, 2, 3, 4} {
		require.NoError(t, v.Push(x))
	}
	x, ok := v.Remove(0)
	require.True(t, ok)
	require.Equal(t, uint32(1), x)
	require.Equal(t, []uint32{2, 3, 4}, collect(v))

	x, ok = v.Remove(2)
	require.True(t, ok)
	require.Equal(t, uint32(4), x)
	require.Equal(t, []uint32{2, 3}, collect(v))
}

func TestAtSetClear(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v, err := WithCap[uint32](a, Uint32Codec{}, 3)
	require.NoError(t, err)
	require.Equal(t, 3, v.Cap())

	require.NoError(t, v.Push(7))
	require.True(t, v.Set(0, 8))
	require.False(t, v.Set(1, 9))
	got, ok := v.At(0)
	require.True(t, ok)
	require.Equal(t, uint32(8), got)
	_, ok = v.At(-1)
	require.False(t, ok)

	v.Clear()
	require.Zero(t, v.Len())
	require.Equal(t, 3, v.Cap())
}

func TestGrowthFailureSurfacesOutOfMemory(t *testing.T) {
	a := newTestHeap(t, 64)
	v := New[uint32](a, Uint32Codec{})

	var err error
	for i := uint32(0); err == nil; i++ {
		err = v.Push(i)
	}
	require.ErrorIs(t, err, alloc.ErrOutOfMemory)

	// the sequence keeps what it had
	n := v.Len()
	require.Equal(t, n, len(collect(v)))
	for i, x := range collect(v) {
		require.Equal(t, uint32(i), x)
	}
}

func TestCapacityOverflowIsFatal(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[uint32](a, Uint32Codec{})
	require.PanicsWithValue(t, ErrCapacityOverflow, func() {
		_ = v.Reserve(math.MaxInt / 2)
	})
}

func TestSlotPastCapacityPanics(t *testing.T) {
	a := newTestHeap(t, 0x1000)
	v := New[byte](a, ByteCodec{})
	require.NoError(t, v.Push(1))
	require.Equal(t, 2, v.Cap())

	// the heap block is a whole unit, wider than two bytes
	require.Len(t, v.slot(1), 1)
	require.Panics(t, func() { v.slot(v.Cap()) })
	require.Panics(t, func() { v.slot(-1) })
}
