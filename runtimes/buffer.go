package runtimes

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/x448/float16"

	"github.com/eagerml/eager/types/dtypes"
	"github.com/eagerml/eager/types/shapes"
)

// MemoryReleaser is the callback registered with an externally-owned buffer.
// It receives the original data slice and the opaque arg given at creation.
// The runtime guarantees exactly-once invocation, at buffer release, and
// never touches arg otherwise.
type MemoryReleaser func(data []byte, arg any)

// Buffer is the raw storage of a tensor: a shape plus a flat slice of the
// corresponding Go type.
//
// A Buffer is exclusively owned: either by the Handle that wraps it, or by
// the caller that created it and has not wrapped it yet. Release frees the
// storage and, for externally-owned buffers, fires the MemoryReleaser --
// exactly once, no matter how many paths race to release it.
type Buffer struct {
	shape shapes.Shape

	// flat is a slice of shape.DType's Go type with shape.Size() elements.
	// For externally-owned buffers it aliases the external bytes.
	flat any

	// Externally-owned storage, nil for runtime-allocated buffers.
	external    []byte
	releaser    MemoryReleaser
	releaserArg any

	released atomic.Bool
}

// NewBuffer allocates an uninitialized (zero-valued) buffer of the given
// shape. It returns ErrInvalidArgument if any dimension is negative or the
// dtype is invalid; nothing is allocated in that case.
func NewBuffer(dtype dtypes.DType, dims ...int) (*Buffer, error) {
	if !dtype.Ok() {
		return nil, InvalidArgumentf("cannot create tensor with dtype %s", dtype)
	}
	for _, dim := range dims {
		if dim < 0 {
			return nil, InvalidArgumentf("cannot create tensor with negative dimension, got %v", dims)
		}
	}
	shape := shapes.Make(dtype, dims...)
	flat := reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), shape.Size(), shape.Size())
	return &Buffer{shape: shape, flat: flat.Interface()}, nil
}

// NewScalarBuffer returns a rank-0 buffer holding the given value.
// One typed Context factory per supported primitive type delegates here, so
// a dtype mismatch is structurally impossible.
func NewScalarBuffer[T dtypes.Supported](value T) *Buffer {
	return &Buffer{
		shape: shapes.Scalar[T](),
		flat:  []T{value},
	}
}

// BufferFromFlatData returns a buffer of the given dimensions wrapping a copy
// of the flat data. The flat length must match the product of the
// dimensions.
func BufferFromFlatData[T dtypes.Supported](flat []T, dims ...int) (*Buffer, error) {
	buf, err := NewBuffer(dtypes.FromGenericsType[T](), dims...)
	if err != nil {
		return nil, err
	}
	if len(flat) != buf.shape.Size() {
		return nil, InvalidArgumentf("flat data has %d elements, shape %s requires %d",
			len(flat), buf.shape, buf.shape.Size())
	}
	copy(buf.flat.([]T), flat)
	return buf, nil
}

// NewExternalBuffer wraps externally-owned memory as a buffer without
// copying. data must remain valid until releaser fires; releaser is invoked
// exactly once, at buffer release, with the original data slice and arg.
//
// String tensors have no flat byte representation and cannot wrap external
// memory.
func NewExternalBuffer(dtype dtypes.DType, dims []int, data []byte, releaser MemoryReleaser, arg any) (*Buffer, error) {
	if !dtype.Ok() || dtype == dtypes.String {
		return nil, InvalidArgumentf("cannot wrap external memory with dtype %s", dtype)
	}
	for _, dim := range dims {
		if dim < 0 {
			return nil, InvalidArgumentf("cannot create tensor with negative dimension, got %v", dims)
		}
	}
	shape := shapes.Make(dtype, dims...)
	if len(data) != int(shape.Memory()) {
		return nil, InvalidArgumentf("external data has %d bytes, shape %s requires %d",
			len(data), shape, shape.Memory())
	}
	flat, err := viewBytesAs(dtype, data, shape.Size())
	if err != nil {
		return nil, err
	}
	return &Buffer{
		shape:       shape,
		flat:        flat,
		external:    data,
		releaser:    releaser,
		releaserArg: arg,
	}, nil
}

// viewBytesAs reinterprets data as a flat slice of the dtype's Go type with
// size elements, without copying.
func viewBytesAs(dtype dtypes.DType, data []byte, size int) (any, error) {
	if size == 0 {
		return reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), 0, 0).Interface(), nil
	}
	ptr := unsafe.Pointer(&data[0])
	switch dtype {
	case dtypes.Bool:
		return unsafe.Slice((*bool)(ptr), size), nil
	case dtypes.Int8:
		return unsafe.Slice((*int8)(ptr), size), nil
	case dtypes.Int16:
		return unsafe.Slice((*int16)(ptr), size), nil
	case dtypes.Int32:
		return unsafe.Slice((*int32)(ptr), size), nil
	case dtypes.Int64:
		return unsafe.Slice((*int64)(ptr), size), nil
	case dtypes.Uint8:
		return unsafe.Slice((*uint8)(ptr), size), nil
	case dtypes.Uint16:
		return unsafe.Slice((*uint16)(ptr), size), nil
	case dtypes.Uint32:
		return unsafe.Slice((*uint32)(ptr), size), nil
	case dtypes.Uint64:
		return unsafe.Slice((*uint64)(ptr), size), nil
	case dtypes.Float16:
		return unsafe.Slice((*float16.Float16)(ptr), size), nil
	case dtypes.Float32:
		return unsafe.Slice((*float32)(ptr), size), nil
	case dtypes.Float64:
		return unsafe.Slice((*float64)(ptr), size), nil
	case dtypes.Complex64:
		return unsafe.Slice((*complex64)(ptr), size), nil
	case dtypes.Complex128:
		return unsafe.Slice((*complex128)(ptr), size), nil
	}
	return nil, InvalidArgumentf("dtype %s has no flat byte representation", dtype)
}

// Shape of the buffer, including its DType.
func (b *Buffer) Shape() shapes.Shape { return b.shape }

// DType of the buffer's elements.
func (b *Buffer) DType() dtypes.DType { return b.shape.DType }

// Size returns the number of elements held.
func (b *Buffer) Size() int { return b.shape.Size() }

// IsReleased reports whether the buffer storage was already released.
func (b *Buffer) IsReleased() bool { return b.released.Load() }

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	if b.IsReleased() {
		return fmt.Sprintf("Buffer[%s, released]", b.shape)
	}
	return fmt.Sprintf("Buffer[%s]", b.shape)
}

// AssertValid panics (with a stack trace) if the buffer is nil or released.
// Using a released buffer is a programming error, not a recoverable status.
func (b *Buffer) AssertValid() {
	if b == nil {
		exceptions.Panicf("Buffer is nil")
	}
	if b.released.Load() {
		exceptions.Panicf("Buffer[%s] was already released", b.shape)
	}
}

// Flat returns the flat slice of the dtype's Go type backing the buffer.
// The slice is owned by the buffer and becomes invalid after Release.
func (b *Buffer) Flat() any {
	b.AssertValid()
	return b.flat
}

// FlatData returns the flat data as a typed slice. It panics if T does not
// correspond to the buffer's dtype -- the typed call per dtype makes a
// mismatch a programming error.
func FlatData[T dtypes.Supported](b *Buffer) []T {
	b.AssertValid()
	flat, ok := b.flat.([]T)
	if !ok {
		var v T
		exceptions.Panicf("FlatData[%T] is incompatible with buffer dtype %s", v, b.shape.DType)
	}
	return flat
}

// ScalarValue returns the value of a rank-0 buffer. It panics if the buffer
// is not a scalar of the matching dtype.
func ScalarValue[T dtypes.Supported](b *Buffer) T {
	if !b.Shape().IsScalar() {
		exceptions.Panicf("ScalarValue on non-scalar buffer %s", b)
	}
	return FlatData[T](b)[0]
}

// Clone returns a new runtime-owned buffer with a copy of the data.
func (b *Buffer) Clone() *Buffer {
	b.AssertValid()
	clone, err := NewBuffer(b.shape.DType, b.shape.Dimensions...)
	if err != nil {
		// The source shape was already validated.
		exceptions.Panicf("Buffer.Clone: %v", err)
	}
	reflect.Copy(reflect.ValueOf(clone.flat), reflect.ValueOf(b.flat))
	return clone
}

// Release frees the buffer storage. For externally-owned buffers it invokes
// the MemoryReleaser with the original data slice and arg. Release is
// idempotent: racing releases (handle teardown vs. explicit caller release)
// fire the releaser exactly once.
func (b *Buffer) Release() {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}
	if b.releaser != nil {
		b.releaser(b.external, b.releaserArg)
	}
	b.flat = nil
	b.external = nil
	b.releaser = nil
	b.releaserArg = nil
}
