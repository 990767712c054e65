package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testBase = 0x20000
	testSize = 0x10000
)

// newTestAllocator returns an allocator over a fresh zeroed region of size bytes.
func newTestAllocator(t testing.TB, size int) *Allocator {
	t.Helper()
	a, err := New(make([]byte, size), testBase)
	require.NoError(t, err)
	return a
}

// requireSingleFreeBlock asserts that the heap is back to one block spanning
// the whole region.
func requireSingleFreeBlock(t testing.TB, a *Allocator) {
	t.Helper()
	blocks, err := a.FreeBlocks()
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, Block{Addr: a.Base(), Units: a.Len()/HeaderSize - 1}, blocks[0])
}
