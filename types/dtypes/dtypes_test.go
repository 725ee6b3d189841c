package dtypes

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestDTypePredicates(t *testing.T) {
	require.False(t, InvalidDType.Ok())
	require.False(t, DType(255).Ok())

	for dtype := Bool; dtype <= String; dtype++ {
		require.True(t, dtype.Ok(), "dtype %s", dtype)
	}

	require.True(t, Float16.IsFloat())
	require.True(t, Float64.IsFloat())
	require.False(t, Int32.IsFloat())

	require.True(t, Int8.IsInt())
	require.True(t, Uint64.IsInt())
	require.False(t, Bool.IsInt())
	require.False(t, Float32.IsInt())

	require.True(t, Complex64.IsComplex())
	require.False(t, Float64.IsComplex())

	require.True(t, Int32.IsNumeric())
	require.True(t, Complex128.IsNumeric())
	require.False(t, Bool.IsNumeric())
	require.False(t, String.IsNumeric())
}

func TestDTypeSize(t *testing.T) {
	require.Equal(t, 1, Bool.Size())
	require.Equal(t, 2, Float16.Size())
	require.Equal(t, 4, Float32.Size())
	require.Equal(t, 8, Int64.Size())
	require.Equal(t, 8, Complex64.Size())
	require.Equal(t, 16, Complex128.Size())
	require.Equal(t, 0, String.Size())
}

func TestGoTypeMapping(t *testing.T) {
	require.Equal(t, Float32, FromGoType(reflect.TypeOf(float32(0))))
	require.Equal(t, Float32, FromGenericsType[float32]())
	require.Equal(t, Int64, FromAnyValue(int64(7)))
	require.Equal(t, String, FromAnyValue("x"))
	require.Equal(t, InvalidDType, FromAnyValue(struct{}{}))

	// Float16 and Uint16 share the underlying representation but must map to
	// distinct dtypes.
	require.Equal(t, Float16, FromGenericsType[float16.Float16]())
	require.Equal(t, Uint16, FromGenericsType[uint16]())

	for dtype := Bool; dtype <= String; dtype++ {
		require.Equal(t, dtype, FromGoType(dtype.GoType()), "round-trip of %s", dtype)
	}
}

func TestLowestHighestValue(t *testing.T) {
	require.Equal(t, int8(math.MinInt8), Int8.LowestValue())
	require.Equal(t, int8(math.MaxInt8), Int8.HighestValue())
	require.Equal(t, uint32(0), Uint32.LowestValue())
	require.Equal(t, uint64(math.MaxUint64), Uint64.HighestValue())
	require.Equal(t, math.Inf(-1), Float64.LowestValue())
	require.Equal(t, float32(math.Inf(1)), Float32.HighestValue())
	require.Equal(t, float16.Inf(-1), Float16.LowestValue())
	require.Nil(t, Bool.LowestValue())
	require.Nil(t, String.HighestValue())
}
