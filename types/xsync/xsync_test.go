package xsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	require.False(t, l.Test())

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Wait()
		}()
	}
	l.Trigger()
	wg.Wait()
	require.True(t, l.Test())

	// Re-triggering is a no-op.
	l.Trigger()
	require.True(t, l.Test())
}

func TestLatchWithValue(t *testing.T) {
	l := NewLatchWithValue[int]()
	require.False(t, l.Test())

	done := make(chan int)
	go func() { done <- l.Wait() }()
	l.Trigger(42)
	require.Equal(t, 42, <-done)

	// The first value wins.
	l.Trigger(99)
	require.Equal(t, 42, l.Wait())

	require.Equal(t, "ready", TriggeredLatchWithValue("ready").Wait())
}

func TestSyncMap(t *testing.T) {
	var m SyncMap[string, int]

	_, found := m.Load("a")
	require.False(t, found)

	m.Store("a", 1)
	v, found := m.Load("a")
	require.True(t, found)
	require.Equal(t, 1, v)

	actual, loaded := m.LoadOrStore("a", 2)
	require.True(t, loaded)
	require.Equal(t, 1, actual)
	actual, loaded = m.LoadOrStore("b", 2)
	require.False(t, loaded)
	require.Equal(t, 2, actual)

	total := 0
	m.Range(func(_ string, value int) bool {
		total += value
		return true
	})
	require.Equal(t, 3, total)

	m.Delete("a")
	_, found = m.Load("a")
	require.False(t, found)

	m.Clear()
	_, found = m.Load("b")
	require.False(t, found)
}
