// Package shapes defines Shape, the combination of a DType and the dimensions
// of a tensor.
//
// A scalar has rank 0 (no dimensions). Dimensions of size zero are valid and
// describe empty tensors; negative dimensions are not.
package shapes

import (
	"fmt"
	"slices"

	"github.com/eagerml/eager/types/dtypes"
	"github.com/gomlx/exceptions"
)

// Shape represents the shape of a tensor: its data type and the dimension of
// each of its axes.
//
// Use Make to create one. The zero value is invalid (Ok() == false).
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape with the given dtype and dimensions.
//
// It panics on a negative dimension -- that is a programming error, callers
// building shapes from user input should validate first. Zero-sized
// dimensions are fine.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): dimensions cannot be negative, got %v", dtype, dimensions)
		}
	}
	return s
}

// Scalar returns a rank-0 shape for the Go type given.
func Scalar[T dtypes.Supported]() Shape {
	return Shape{DType: dtypes.FromGenericsType[T]()}
}

// Invalid returns an invalid shape: Invalid().Ok() == false.
func Invalid() Shape { return Shape{DType: dtypes.InvalidDType} }

// Ok returns whether this is a valid shape.
func (s Shape) Ok() bool { return s.DType.Ok() }

// Rank of the shape: the number of axes. Scalars have rank 0.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape is valid with rank 0.
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. Negative axis counts from the
// end, like slice indexing in numpy. It panics on an out-of-bounds axis.
func (s Shape) Dim(axis int) int {
	adjusted := axis
	if adjusted < 0 {
		adjusted += s.Rank()
	}
	if adjusted < 0 || adjusted >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjusted]
}

// Shape returns a shallow copy of itself, implementing the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer, pretty-printing the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType this shape holds: the product
// of all dimensions, 1 for scalars.
func (s Shape) Size() (size int) {
	size = 1
	for _, dim := range s.Dimensions {
		size *= dim
	}
	return
}

// Memory returns the bytes needed to store a tensor of this shape.
// It is zero for String shapes, whose elements have no fixed size.
func (s Shape) Memory() uintptr {
	return uintptr(s.DType.Size()) * uintptr(s.Size())
}

// Equal compares dtype and dimensions.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType || s.Rank() != s2.Rank() {
		return false
	}
	if s.IsScalar() {
		return true
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares dimensions only; dtypes may differ.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return s.Rank() == s2.Rank() && (s.IsScalar() || slices.Equal(s.Dimensions, s2.Dimensions))
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// HasShape is anything that can report its own shape: tensors, buffers,
// handles.
type HasShape interface {
	Shape() Shape
}
