// Package dtypes enumerates the data types supported by the eager runtime and
// the mapping to their Go representation.
//
// Float16 (a reduced-precision float, commonly used by accelerators) is
// represented with github.com/x448/float16. String tensors hold Go strings and
// have no fixed per-element byte size.
package dtypes

import (
	"math"
	"reflect"

	"github.com/x448/float16"
)

// DType indicates the type of the unit element of a tensor.
type DType int32

const (
	InvalidDType DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
	Complex64
	Complex128
	String
)

// Aliases in common use.
const (
	I32 = Int32
	I64 = Int64
	F32 = Float32
	F64 = Float64
)

// Supported lists the Go types that have a corresponding DType.
// Used as a generics constraint by the tensor factories.
type Supported interface {
	bool | int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float16.Float16 | float32 | float64 |
		complex64 | complex128 | string
}

// Number lists the Go types on which the builtin kernels can do arithmetic
// natively. Float16 is excluded: kernels compute it through float32.
type Number interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

var dtypeNames = map[DType]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
	Complex64:    "Complex64",
	Complex128:   "Complex128",
	String:       "String",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if name, found := dtypeNames[dtype]; found {
		return name
	}
	return "DType(?)"
}

// Ok returns whether dtype is one of the supported data types.
func (dtype DType) Ok() bool {
	return dtype > InvalidDType && dtype <= String
}

// IsFloat returns whether dtype is a floating point type, including Float16.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// IsInt returns whether dtype is a signed or unsigned integer type.
func (dtype DType) IsInt() bool {
	return dtype >= Int8 && dtype <= Uint64
}

// IsComplex returns whether dtype is a complex number type.
func (dtype DType) IsComplex() bool {
	return dtype == Complex64 || dtype == Complex128
}

// IsNumeric returns whether arithmetic is defined for dtype.
func (dtype DType) IsNumeric() bool {
	return dtype.IsInt() || dtype.IsFloat() || dtype.IsComplex()
}

// Size returns the number of bytes used per element.
// String has no fixed element size and returns 0.
func (dtype DType) Size() int {
	switch dtype {
	case Bool, Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64, Complex64:
		return 8
	case Complex128:
		return 16
	}
	return 0
}

var (
	dtypeToGoType = map[DType]reflect.Type{
		Bool:       reflect.TypeOf(false),
		Int8:       reflect.TypeOf(int8(0)),
		Int16:      reflect.TypeOf(int16(0)),
		Int32:      reflect.TypeOf(int32(0)),
		Int64:      reflect.TypeOf(int64(0)),
		Uint8:      reflect.TypeOf(uint8(0)),
		Uint16:     reflect.TypeOf(uint16(0)),
		Uint32:     reflect.TypeOf(uint32(0)),
		Uint64:     reflect.TypeOf(uint64(0)),
		Float16:    reflect.TypeOf(float16.Float16(0)),
		Float32:    reflect.TypeOf(float32(0)),
		Float64:    reflect.TypeOf(float64(0)),
		Complex64:  reflect.TypeOf(complex64(0)),
		Complex128: reflect.TypeOf(complex128(0)),
		String:     reflect.TypeOf(""),
	}
	goTypeToDType = func() map[reflect.Type]DType {
		m := make(map[reflect.Type]DType, len(dtypeToGoType))
		for dtype, t := range dtypeToGoType {
			m[t] = dtype
		}
		return m
	}()
)

// GoType returns the Go type used to represent one element of dtype.
// Returns nil for an invalid DType.
func (dtype DType) GoType() reflect.Type {
	return dtypeToGoType[dtype]
}

// FromGoType returns the DType for the given Go type, or InvalidDType if the
// type is not supported. The match is exact: float16.Float16 maps to Float16,
// a plain uint16 maps to Uint16.
func FromGoType(t reflect.Type) DType {
	return goTypeToDType[t]
}

// FromGenericsType returns the DType for the Go type parameter.
func FromGenericsType[T Supported]() DType {
	var t T
	return FromGoType(reflect.TypeOf(t))
}

// FromAnyValue returns the DType of a value, or InvalidDType if its type has
// no corresponding DType.
func FromAnyValue(value any) DType {
	return FromGoType(reflect.TypeOf(value))
}

// LowestValue returns the lowest representable value of dtype, as the
// corresponding Go type. For floats it is -Inf. Returns nil for non-numeric
// dtypes.
//
// Together with HighestValue this feeds the fixed-point metadata consumed by
// hardware op builders downstream.
func (dtype DType) LowestValue() any {
	switch dtype {
	case Int8:
		return int8(math.MinInt8)
	case Int16:
		return int16(math.MinInt16)
	case Int32:
		return int32(math.MinInt32)
	case Int64:
		return int64(math.MinInt64)
	case Uint8:
		return uint8(0)
	case Uint16:
		return uint16(0)
	case Uint32:
		return uint32(0)
	case Uint64:
		return uint64(0)
	case Float16:
		return float16.Inf(-1)
	case Float32:
		return float32(math.Inf(-1))
	case Float64:
		return math.Inf(-1)
	}
	return nil
}

// HighestValue returns the highest representable value of dtype, as the
// corresponding Go type. For floats it is +Inf. Returns nil for non-numeric
// dtypes.
func (dtype DType) HighestValue() any {
	switch dtype {
	case Int8:
		return int8(math.MaxInt8)
	case Int16:
		return int16(math.MaxInt16)
	case Int32:
		return int32(math.MaxInt32)
	case Int64:
		return int64(math.MaxInt64)
	case Uint8:
		return uint8(math.MaxUint8)
	case Uint16:
		return uint16(math.MaxUint16)
	case Uint32:
		return uint32(math.MaxUint32)
	case Uint64:
		return uint64(math.MaxUint64)
	case Float16:
		return float16.Inf(1)
	case Float32:
		return float32(math.Inf(1))
	case Float64:
		return math.Inf(1)
	}
	return nil
}
