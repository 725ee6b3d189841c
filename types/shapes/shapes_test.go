package shapes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eagerml/eager/types/dtypes"
)

func TestMake(t *testing.T) {
	s := Make(dtypes.Float32, 2, 3)
	require.True(t, s.Ok())
	require.Equal(t, 2, s.Rank())
	require.Equal(t, 6, s.Size())
	require.Equal(t, uintptr(24), s.Memory())
	require.Equal(t, "(Float32)[2 3]", s.String())

	// Zero-sized dimensions are valid, negative ones panic.
	require.Equal(t, 0, Make(dtypes.Int32, 0, 5).Size())
	require.Panics(t, func() { Make(dtypes.Float32, 2, -1) })

	// Make clones the dimensions.
	dims := []int{4}
	s = Make(dtypes.Int8, dims...)
	dims[0] = 99
	require.Equal(t, 4, s.Dim(0))
}

func TestScalar(t *testing.T) {
	s := Scalar[float64]()
	require.True(t, s.IsScalar())
	require.Equal(t, dtypes.Float64, s.DType)
	require.Equal(t, 0, s.Rank())
	require.Equal(t, 1, s.Size())
	require.Equal(t, "(Float64)", s.String())
}

func TestDim(t *testing.T) {
	s := Make(dtypes.Float32, 2, 3, 5)
	require.Equal(t, 2, s.Dim(0))
	require.Equal(t, 5, s.Dim(2))
	require.Equal(t, 5, s.Dim(-1))
	require.Equal(t, 2, s.Dim(-3))
	require.Panics(t, func() { s.Dim(3) })
	require.Panics(t, func() { s.Dim(-4) })
}

func TestEqual(t *testing.T) {
	require.True(t, Make(dtypes.F32, 2, 3).Equal(Make(dtypes.F32, 2, 3)))
	require.False(t, Make(dtypes.F32, 2, 3).Equal(Make(dtypes.F64, 2, 3)))
	require.False(t, Make(dtypes.F32, 2, 3).Equal(Make(dtypes.F32, 3, 2)))
	require.True(t, Make(dtypes.F32, 2, 3).EqualDimensions(Make(dtypes.I64, 2, 3)))
	require.True(t, Scalar[int32]().Equal(Scalar[int32]()))
	require.False(t, Invalid().Ok())
}

func TestClone(t *testing.T) {
	s := Make(dtypes.Int32, 7)
	clone := s.Clone()
	clone.Dimensions[0] = 1
	require.Equal(t, 7, s.Dim(0))
	require.True(t, s.Equal(Make(dtypes.Int32, 7)))
}
