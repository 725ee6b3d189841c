package kernels

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/eagerml/eager/runtimes"
	"github.com/eagerml/eager/types/dtypes"
)

func run(t *testing.T, opName string, inputs ...*runtimes.Buffer) *runtimes.Buffer {
	t.Helper()
	kernel, found := Lookup(opName)
	require.True(t, found, "kernel %s", opName)
	outputs, err := kernel(&Call{OpName: opName, Inputs: inputs})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	return outputs[0]
}

func fromFlat[T dtypes.Supported](t *testing.T, flat []T, dims ...int) *runtimes.Buffer {
	t.Helper()
	buf, err := runtimes.BufferFromFlatData(flat, dims...)
	require.NoError(t, err)
	return buf
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	Register("test.Dup", identityKernel)
	require.Panics(t, func() { Register("test.Dup", identityKernel) })
}

func TestIdentity(t *testing.T) {
	in := fromFlat(t, []int32{1, 2, 3}, 3)
	out := run(t, "Identity", in)
	require.Equal(t, []int32{1, 2, 3}, runtimes.FlatData[int32](out))

	// The output is an independent copy.
	runtimes.FlatData[int32](out)[0] = 99
	require.Equal(t, int32(1), runtimes.FlatData[int32](in)[0])
}

func TestAdd(t *testing.T) {
	out := run(t, "Add", fromFlat(t, []float32{1, 2, 3}, 3), fromFlat(t, []float32{10, 20, 30}, 3))
	require.Equal(t, []float32{11, 22, 33}, runtimes.FlatData[float32](out))

	out = run(t, "Add", runtimes.NewScalarBuffer(int64(40)), runtimes.NewScalarBuffer(int64(2)))
	require.Equal(t, int64(42), runtimes.ScalarValue[int64](out))

	out = run(t, "Add", runtimes.NewScalarBuffer(complex64(1+2i)), runtimes.NewScalarBuffer(complex64(3-1i)))
	require.Equal(t, complex64(4+1i), runtimes.ScalarValue[complex64](out))
}

func TestAddFloat16(t *testing.T) {
	a := runtimes.NewScalarBuffer(float16.Fromfloat32(1.5))
	b := runtimes.NewScalarBuffer(float16.Fromfloat32(2.25))
	out := run(t, "Add", a, b)
	require.Equal(t, dtypes.Float16, out.DType())
	require.Equal(t, float32(3.75), runtimes.ScalarValue[float16.Float16](out).Float32())
}

func TestSubMul(t *testing.T) {
	a, b := fromFlat(t, []float64{5, 6}, 2), fromFlat(t, []float64{2, 3}, 2)
	require.Equal(t, []float64{3, 3}, runtimes.FlatData[float64](run(t, "Sub", a, b)))
	require.Equal(t, []float64{10, 18}, runtimes.FlatData[float64](run(t, "Mul", a, b)))
}

func TestNeg(t *testing.T) {
	out := run(t, "Neg", fromFlat(t, []int32{1, -2, 3}, 3))
	require.Equal(t, []int32{-1, 2, -3}, runtimes.FlatData[int32](out))
}

func TestSum(t *testing.T) {
	out := run(t, "Sum", fromFlat(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3))
	require.True(t, out.Shape().IsScalar())
	require.Equal(t, float32(21), runtimes.ScalarValue[float32](out))
}

func TestMatMul(t *testing.T) {
	a := fromFlat(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := fromFlat(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)
	out := run(t, "MatMul", a, b)
	require.Equal(t, []int{2, 2}, out.Shape().Dimensions)
	require.Equal(t, []float32{58, 64, 139, 154}, runtimes.FlatData[float32](out))
}

func TestKernelErrors(t *testing.T) {
	add, _ := Lookup("Add")

	_, err := add(&Call{OpName: "Add", Inputs: []*runtimes.Buffer{runtimes.NewScalarBuffer(int32(1))}})
	require.ErrorIs(t, err, runtimes.ErrInvalidArgument, "arity")

	_, err = add(&Call{OpName: "Add", Inputs: []*runtimes.Buffer{
		fromFlat(t, []int32{1, 2}, 2), fromFlat(t, []int32{1, 2, 3}, 3)}})
	require.ErrorIs(t, err, runtimes.ErrInvalidArgument, "shape mismatch")

	_, err = add(&Call{OpName: "Add", Inputs: []*runtimes.Buffer{
		runtimes.NewScalarBuffer("a"), runtimes.NewScalarBuffer("b")}})
	require.ErrorIs(t, err, runtimes.ErrInvalidArgument, "non-numeric dtype")

	matmul, _ := Lookup("MatMul")
	_, err = matmul(&Call{OpName: "MatMul", Inputs: []*runtimes.Buffer{
		fromFlat(t, []float32{1, 2}, 2, 1), fromFlat(t, []float32{1, 2}, 2, 1)}})
	require.ErrorIs(t, err, runtimes.ErrInvalidArgument, "inner dimensions")

	_, err = matmul(&Call{OpName: "MatMul", Inputs: []*runtimes.Buffer{
		fromFlat(t, []int32{1}, 1, 1), fromFlat(t, []int32{1}, 1, 1)}})
	require.ErrorIs(t, err, runtimes.ErrUnimplemented, "int32 MatMul")
}

func TestCast(t *testing.T) {
	kernel, _ := Lookup("Cast")
	cast := func(in *runtimes.Buffer, target dtypes.DType) (*runtimes.Buffer, error) {
		outputs, err := kernel(&Call{
			OpName: "Cast",
			Attrs:  map[string]any{"dtype": target},
			Inputs: []*runtimes.Buffer{in},
		})
		if err != nil {
			return nil, err
		}
		return outputs[0], nil
	}

	out, err := cast(fromFlat(t, []float32{1.5, -2.5, 3}, 3), dtypes.Int32)
	require.NoError(t, err)
	require.Equal(t, []int32{1, -2, 3}, runtimes.FlatData[int32](out))

	out, err = cast(fromFlat(t, []int32{1, 2}, 2), dtypes.Float64)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, runtimes.FlatData[float64](out))

	out, err = cast(runtimes.NewScalarBuffer(float16.Fromfloat32(1.5)), dtypes.Float32)
	require.NoError(t, err)
	require.Equal(t, float32(1.5), runtimes.ScalarValue[float32](out))

	// Same-dtype cast is a copy.
	in := fromFlat(t, []int64{7}, 1)
	out, err = cast(in, dtypes.Int64)
	require.NoError(t, err)
	runtimes.FlatData[int64](out)[0] = 8
	require.Equal(t, int64(7), runtimes.FlatData[int64](in)[0])

	_, err = cast(runtimes.NewScalarBuffer("x"), dtypes.Int32)
	require.ErrorIs(t, err, runtimes.ErrUnimplemented)
	_, err = cast(runtimes.NewScalarBuffer(int32(1)), dtypes.Complex64)
	require.ErrorIs(t, err, runtimes.ErrUnimplemented)

	_, err = kernel(&Call{OpName: "Cast", Inputs: []*runtimes.Buffer{in}})
	require.ErrorIs(t, err, runtimes.ErrInvalidArgument, "missing dtype attribute")
	_, err = kernel(&Call{OpName: "Cast", Attrs: map[string]any{"dtype": "Int32"},
		Inputs: []*runtimes.Buffer{in}})
	require.ErrorIs(t, err, runtimes.ErrInvalidArgument, "dtype attribute of the wrong type")
}

func TestCallAttr(t *testing.T) {
	call := &Call{Attrs: map[string]any{"transpose_a": true}}
	v, found := call.Attr("transpose_a")
	require.True(t, found)
	require.Equal(t, true, v)
	_, found = call.Attr("missing")
	require.False(t, found)
}
