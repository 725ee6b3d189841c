package runtimes

import (
	"fmt"
	"sync/atomic"

	"github.com/gomlx/exceptions"

	"github.com/eagerml/eager/types/dtypes"
	"github.com/eagerml/eager/types/shapes"
	"github.com/eagerml/eager/types/xsync"
)

// handleValue is the resolution of a handle's future: the materialized buffer
// or the error of the node that was supposed to produce it.
type handleValue struct {
	buffer *Buffer
	err    error
}

// Handle is a reference to a tensor value bound to a device. The value may
// not have been materialized yet: a handle returned by an asynchronous
// operation resolves only when its node completes, and accessors that need
// the data (Buffer, Shape, DType) block until then.
//
// Handles are reference counted and shared between the context and callers;
// the backing buffer is released exactly once, when the last reference is
// dropped.
type Handle struct {
	device string
	future *xsync.LatchWithValue[handleValue]
	refs   atomic.Int64

	// dropped is set when the refcount reached zero while the handle was
	// still pending, so materialization releases the buffer immediately.
	dropped atomic.Bool
}

// NewReadyHandle wraps an already-materialized buffer as a handle bound to
// the given device. The buffer is not copied; the handle takes ownership.
func NewReadyHandle(buffer *Buffer, device string) *Handle {
	buffer.AssertValid()
	h := &Handle{
		device: device,
		future: xsync.TriggeredLatchWithValue(handleValue{buffer: buffer}),
	}
	h.refs.Store(1)
	return h
}

// NewPendingHandle returns a handle whose value will be produced later by an
// operation node, via Materialize or Poison. For runtime implementations.
func NewPendingHandle(device string) *Handle {
	h := &Handle{
		device: device,
		future: xsync.NewLatchWithValue[handleValue](),
	}
	h.refs.Store(1)
	return h
}

// Materialize resolves a pending handle with its buffer. The handle takes
// ownership of the buffer. For runtime implementations; resolving twice is a
// no-op (the second buffer is released).
func (h *Handle) Materialize(buffer *Buffer) {
	if h.future.Test() {
		// Already resolved, the extra buffer has no owner.
		buffer.Release()
		return
	}
	h.future.Trigger(handleValue{buffer: buffer})
	if h.dropped.Load() {
		// All references were dropped while the handle was pending.
		buffer.Release()
	}
}

// Poison resolves a pending handle with the error of the node that failed to
// produce it. For runtime implementations.
func (h *Handle) Poison(err error) {
	h.future.Trigger(handleValue{err: err})
}

// Device returns the name of the device the handle is bound to. Always
// available, even while the value is pending.
func (h *Handle) Device() string { return h.device }

// Ready reports whether the handle's value has been materialized (or its
// producing node failed), without blocking.
func (h *Handle) Ready() bool { return h.future.Test() }

// Buffer returns the materialized buffer, blocking until the producing node
// completes. If the node failed, it returns the node's error.
//
// The buffer remains owned by the handle.
func (h *Handle) Buffer() (*Buffer, error) {
	v := h.future.Wait()
	return v.buffer, v.err
}

// Shape of the handle's tensor. Blocks until materialized; returns an
// invalid shape if the producing node failed.
func (h *Handle) Shape() shapes.Shape {
	v := h.future.Wait()
	if v.err != nil {
		return shapes.Invalid()
	}
	return v.buffer.Shape()
}

// DType of the handle's tensor. Blocks until materialized.
func (h *Handle) DType() dtypes.DType {
	return h.Shape().DType
}

// Retain adds a reference to the handle.
func (h *Handle) Retain() *Handle {
	if h.refs.Add(1) <= 1 {
		exceptions.Panicf("Handle.Retain on a fully released handle (device=%s)", h.device)
	}
	return h
}

// Release drops one reference. When the last reference is dropped the
// backing buffer is released -- firing the external MemoryReleaser, if any,
// exactly once. Releasing a pending handle is safe: the buffer is released
// as soon as the node materializes it.
func (h *Handle) Release() {
	refs := h.refs.Add(-1)
	if refs > 0 {
		return
	}
	if refs < 0 {
		exceptions.Panicf("Handle.Release called more times than Retain (device=%s)", h.device)
	}
	h.dropped.Store(true)
	if h.future.Test() {
		if buffer := h.future.Wait().buffer; buffer != nil {
			buffer.Release()
		}
	}
}

// String implements fmt.Stringer. It does not block: a pending handle prints
// as pending.
func (h *Handle) String() string {
	if !h.Ready() {
		return fmt.Sprintf("Handle[pending, device=%s]", h.device)
	}
	v := h.future.Wait()
	if v.err != nil {
		return fmt.Sprintf("Handle[error=%v, device=%s]", v.err, h.device)
	}
	return fmt.Sprintf("Handle[%s, device=%s]", v.buffer.Shape(), h.device)
}
