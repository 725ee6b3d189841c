package runtimes

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eagerml/eager/types/dtypes"
)

const testDevice = "/job:localhost/replica:0/task:0/device:CPU:0"

func TestReadyHandle(t *testing.T) {
	h := NewReadyHandle(NewScalarBuffer(float32(3)), testDevice)
	require.Equal(t, testDevice, h.Device())
	require.True(t, h.Ready())

	buf, err := h.Buffer()
	require.NoError(t, err)
	require.Equal(t, float32(3), ScalarValue[float32](buf))
	require.Equal(t, dtypes.Float32, h.DType())

	h.Release()
	require.True(t, buf.IsReleased())
}

func TestPendingHandleMaterialize(t *testing.T) {
	h := NewPendingHandle(testDevice)
	require.False(t, h.Ready())

	type resolution struct {
		buf *Buffer
		err error
	}
	done := make(chan resolution)
	go func() {
		buf, err := h.Buffer() // blocks until materialized
		done <- resolution{buf, err}
	}()
	time.Sleep(time.Millisecond)
	h.Materialize(NewScalarBuffer(float64(7)))
	got := <-done
	require.NoError(t, got.err)
	require.Equal(t, float64(7), ScalarValue[float64](got.buf))
	require.True(t, h.Ready())

	// A second materialization has no owner and is dropped.
	extra := NewScalarBuffer(float64(8))
	h.Materialize(extra)
	require.True(t, extra.IsReleased())
	buf, err := h.Buffer()
	require.NoError(t, err)
	require.Equal(t, float64(7), ScalarValue[float64](buf))
}

func TestPendingHandlePoison(t *testing.T) {
	h := NewPendingHandle(testDevice)
	h.Poison(Internalf("node blew up"))

	_, err := h.Buffer()
	require.ErrorIs(t, err, ErrInternal)
	require.False(t, h.Shape().Ok())
}

func TestHandleRefCounting(t *testing.T) {
	var releases atomic.Int32
	data := make([]byte, 4)
	buf, err := NewExternalBuffer(dtypes.Float32, []int{1}, data, func([]byte, any) {
		releases.Add(1)
	}, nil)
	require.NoError(t, err)

	h := NewReadyHandle(buf, testDevice)
	h.Retain()
	h.Release()
	require.Equal(t, int32(0), releases.Load(), "still one reference out")
	h.Release()
	require.Equal(t, int32(1), releases.Load())

	require.Panics(t, func() { h.Retain() }, "retaining a dead handle is a programming error")
	require.Panics(t, func() { h.Release() })
}

func TestReleasePendingHandle(t *testing.T) {
	// Dropping the last reference before materialization releases the buffer
	// as soon as the node produces it.
	h := NewPendingHandle(testDevice)
	h.Release()

	buf := NewScalarBuffer(int32(1))
	h.Materialize(buf)
	require.True(t, buf.IsReleased())
}

func TestHandleString(t *testing.T) {
	h := NewPendingHandle(testDevice)
	require.Contains(t, h.String(), "pending")
	h.Materialize(NewScalarBuffer(int32(1)))
	require.Contains(t, h.String(), "Int32")
}
