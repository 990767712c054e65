package machine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/kernkit/kern/alloc"
	"github.com/joshuapare/kernkit/kern/task"
)

func newSystem(t *testing.T) (*Machine, *task.Scheduler) {
	t.Helper()
	m, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	a, err := alloc.New(make([]byte, 0x10000), 0x20000)
	require.NoError(t, err)
	s, err := task.New(a, m)
	require.NoError(t, err)
	m.Attach(s)
	return m, s
}

func TestNewRejectsBadLayout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StackSize = 0x1800
	_, err := New(cfg, nil)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.InitialSP = cfg.StackTop + 4
	_, err = New(cfg, nil)
	require.Error(t, err)
}

func TestRunWithoutKernel(t *testing.T) {
	m, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	require.Error(t, m.Run(func() {}))
}

func TestSoleTaskYieldIsNoop(t *testing.T) {
	m, s := newSystem(t)

	var ids []task.ID
	err := m.Run(func() {
		for i := 0; i < 3; i++ {
			m.Trap()
			id, _ := s.CurrentID()
			ids = append(ids, id)
		}
	})
	require.NoError(t, err)
	require.Equal(t, []task.ID{0, 0, 0}, ids)
	require.Zero(t, m.Switches())
}

func TestFIFOOrderAndExit(t *testing.T) {
	m, s := newSystem(t)

	var trace []string
	err := m.Run(func() {
		_, err := s.Create(func() {
			trace = append(trace, "A")
			s.Suspend()
			trace = append(trace, "A exits")
		})
		require.NoError(t, err)
		_, err = s.Create(func() {
			for i := 0; i < 3; i++ {
				trace = append(trace, "B")
				s.Suspend()
			}
		})
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			s.Suspend()
			trace = append(trace, "root")
		}
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"A", "B", "root",
		"A exits", "B", "root",
		"B", "root",
	}, trace)

	snap := s.Snapshot()
	require.Equal(t, task.ID(0), snap.Current)
	require.Empty(t, snap.Ready)
}

func TestRoundRobinManyTasks(t *testing.T) {
	m, s := newSystem(t)

	const k = 5
	var order []task.ID
	err := m.Run(func() {
		for i := 0; i < k; i++ {
			_, err := s.Create(func() {
				for j := 0; j < 2; j++ {
					id, _ := s.CurrentID()
					order = append(order, id)
					s.Suspend()
				}
			})
			require.NoError(t, err)
		}
		s.Suspend()
		order = append(order, 0)
	})
	require.NoError(t, err)
	require.Equal(t, []task.ID{1, 2, 3, 4, 5, 0, 1, 2, 3, 4, 5}, order)
}

func TestTaskSeesItsOwnStack(t *testing.T) {
	m, s := newSystem(t)

	var sps []uint32
	err := m.Run(func() {
		for i := 0; i < 2; i++ {
			_, err := s.Create(func() {
				sps = append(sps, m.StackPointer())
			})
			require.NoError(t, err)
		}
		s.Suspend()
	})
	require.NoError(t, err)
	require.Equal(t, []uint32{0x8efec, 0x8dfec}, sps)

	entry, err := m.ReadWord(0x8effc)
	require.NoError(t, err)
	require.Equal(t, uint32(funcBase), entry)
}

func TestTasksCreatingTasks(t *testing.T) {
	m, s := newSystem(t)

	var trace []string
	err := m.Run(func() {
		_, err := s.Create(func() {
			trace = append(trace, "parent")
			_, err := s.Create(func() { trace = append(trace, "child") })
			require.NoError(t, err)
			s.Suspend()
			trace = append(trace, "parent again")
		})
		require.NoError(t, err)
		s.Suspend()
		trace = append(trace, "root")
	})
	require.NoError(t, err)
	require.Equal(t, []string{"parent", "root", "child", "parent again"}, trace)
}

func TestWriteWordBounds(t *testing.T) {
	m, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, m.WriteWord(0x80000, 1))
	require.NoError(t, m.WriteWord(0x8fffc, 2))
	require.ErrorIs(t, m.WriteWord(0x7fffc, 3), ErrBadAddress)
	require.ErrorIs(t, m.WriteWord(0x8fffe, 3), ErrBadAddress)

	v, err := m.ReadWord(0x8fffc)
	require.NoError(t, err)
	require.Equal(t, uint32(2), v)
}

func TestInterrupts(t *testing.T) {
	m, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	hits := 0
	m.Register(33, func() { hits++ })
	require.True(t, m.Raise(33))
	require.False(t, m.Raise(34))
	require.Equal(t, 1, hits)
}
