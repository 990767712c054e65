package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPopEmpty(t *testing.T) {
	var r Buf
	_, ok := r.PopFront()
	require.False(t, ok)
	require.Zero(t, r.Len())
}

func TestPushThenPop(t *testing.T) {
	var r Buf
	r.PushBack('k')
	require.Equal(t, 1, r.Len())
	b, ok := r.PopFront()
	require.True(t, ok)
	require.Equal(t, byte('k'), b)
	_, ok = r.PopFront()
	require.False(t, ok)
}

func TestFillToCapacityKeepsOrder(t *testing.T) {
	var r Buf
	for i := 0; i < Capacity; i++ {
		r.PushBack(byte(0x40 + i))
	}
	require.Equal(t, Capacity, r.Len())
	for i := 0; i < Capacity; i++ {
		b, ok := r.PopFront()
		require.True(t, ok, "pop %d", i)
		require.Equal(t, byte(0x40+i), b)
	}
	_, ok := r.PopFront()
	require.False(t, ok)
}

func TestWrapAround(t *testing.T) {
	var r Buf
	for round := 0; round < 5*Capacity; round++ {
		r.PushBack(byte(round))
		r.PushBack(byte(round + 1))
		b, ok := r.PopFront()
		require.True(t, ok)
		require.Equal(t, byte(round), b)
		b, ok = r.PopFront()
		require.True(t, ok)
		require.Equal(t, byte(round+1), b)
	}
}

// The 17th byte pushed before any pop lands in slot 0 and the oldest byte is lost.
func TestSeventeenthPushOverwritesSlotZero(t *testing.T) {
	var r Buf
	for i := 1; i <= Capacity; i++ {
		r.PushBack(byte(i))
	}
	r.PushBack(17)

	require.Equal(t, byte(17), r.buf[0])
	require.Equal(t, uint64(1), r.Overruns())
	require.Equal(t, Capacity, r.Len())

	for want := 2; want <= 17; want++ {
		b, ok := r.PopFront()
		require.True(t, ok)
		require.Equal(t, byte(want), b)
	}
	_, ok := r.PopFront()
	require.False(t, ok)
}

func TestTryPushBackRejectsWhenFull(t *testing.T) {
	var r Buf
	for i := 0; i < Capacity; i++ {
		require.NoError(t, r.TryPushBack(byte(i)))
	}
	require.ErrorIs(t, r.TryPushBack(0xff), ErrFull)
	require.Zero(t, r.Overruns())

	b, ok := r.PopFront()
	require.True(t, ok)
	require.Equal(t, byte(0), b)
	require.NoError(t, r.TryPushBack(0xff))
}

func TestSingleWriterSingleReader(t *testing.T) {
	var r Buf
	const n = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.TryPushBack(byte(i)) == nil {
				i++
			}
		}
	}()

	for i := 0; i < n; {
		if b, ok := r.PopFront(); ok {
			require.Equal(t, byte(i), b)
			i++
		}
	}
	wg.Wait()
}
