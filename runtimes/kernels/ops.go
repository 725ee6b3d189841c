package kernels

import (
	"github.com/x448/float16"

	"github.com/eagerml/eager/runtimes"
	"github.com/eagerml/eager/types/dtypes"
)

func init() {
	Register("Identity", identityKernel)
	Register("Add", arithKernel(opAdd))
	Register("Sub", arithKernel(opSub))
	Register("Mul", arithKernel(opMul))
	Register("Neg", negKernel)
	Register("Sum", sumKernel)
	Register("MatMul", matMulKernel)
	Register("Cast", castKernel)
}

// arithmetic lists the Go types the builtin element-wise kernels operate on
// natively. Float16 goes through float32.
type arithmetic interface {
	dtypes.Number | complex64 | complex128
}

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
)

func identityKernel(call *Call) ([]*runtimes.Buffer, error) {
	if len(call.Inputs) != 1 {
		return nil, runtimes.InvalidArgumentf("Identity takes 1 input, got %d", len(call.Inputs))
	}
	return []*runtimes.Buffer{call.Inputs[0].Clone()}, nil
}

// binaryArgs validates an element-wise binary call and allocates the output.
func binaryArgs(call *Call) (a, b, out *runtimes.Buffer, err error) {
	if len(call.Inputs) != 2 {
		return nil, nil, nil, runtimes.InvalidArgumentf("%s takes 2 inputs, got %d", call.OpName, len(call.Inputs))
	}
	a, b = call.Inputs[0], call.Inputs[1]
	if !a.Shape().Equal(b.Shape()) {
		return nil, nil, nil, runtimes.InvalidArgumentf("%s inputs must have the same shape, got %s and %s",
			call.OpName, a.Shape(), b.Shape())
	}
	if !a.DType().IsNumeric() {
		return nil, nil, nil, runtimes.InvalidArgumentf("%s is not defined for dtype %s", call.OpName, a.DType())
	}
	out, err = runtimes.NewBuffer(a.DType(), a.Shape().Dimensions...)
	return
}

func arithKernel(op arithOp) Kernel {
	return func(call *Call) ([]*runtimes.Buffer, error) {
		a, b, out, err := binaryArgs(call)
		if err != nil {
			return nil, err
		}
		switch a.DType() {
		case dtypes.Int8:
			arith[int8](op, a, b, out)
		case dtypes.Int16:
			arith[int16](op, a, b, out)
		case dtypes.Int32:
			arith[int32](op, a, b, out)
		case dtypes.Int64:
			arith[int64](op, a, b, out)
		case dtypes.Uint8:
			arith[uint8](op, a, b, out)
		case dtypes.Uint16:
			arith[uint16](op, a, b, out)
		case dtypes.Uint32:
			arith[uint32](op, a, b, out)
		case dtypes.Uint64:
			arith[uint64](op, a, b, out)
		case dtypes.Float32:
			arith[float32](op, a, b, out)
		case dtypes.Float64:
			arith[float64](op, a, b, out)
		case dtypes.Complex64:
			arith[complex64](op, a, b, out)
		case dtypes.Complex128:
			arith[complex128](op, a, b, out)
		case dtypes.Float16:
			arithFloat16(op, a, b, out)
		default:
			return nil, runtimes.Unimplementedf("%s for dtype %s", call.OpName, a.DType())
		}
		return []*runtimes.Buffer{out}, nil
	}
}

func arith[T arithmetic](op arithOp, a, b, out *runtimes.Buffer) {
	aFlat, bFlat, outFlat := runtimes.FlatData[T](a), runtimes.FlatData[T](b), runtimes.FlatData[T](out)
	switch op {
	case opAdd:
		for i := range outFlat {
			outFlat[i] = aFlat[i] + bFlat[i]
		}
	case opSub:
		for i := range outFlat {
			outFlat[i] = aFlat[i] - bFlat[i]
		}
	case opMul:
		for i := range outFlat {
			outFlat[i] = aFlat[i] * bFlat[i]
		}
	}
}

// arithFloat16 computes through float32, rounding back per element.
func arithFloat16(op arithOp, a, b, out *runtimes.Buffer) {
	aFlat := runtimes.FlatData[float16.Float16](a)
	bFlat := runtimes.FlatData[float16.Float16](b)
	outFlat := runtimes.FlatData[float16.Float16](out)
	for i := range outFlat {
		x, y := aFlat[i].Float32(), bFlat[i].Float32()
		var r float32
		switch op {
		case opAdd:
			r = x + y
		case opSub:
			r = x - y
		case opMul:
			r = x * y
		}
		outFlat[i] = float16.Fromfloat32(r)
	}
}

func negKernel(call *Call) ([]*runtimes.Buffer, error) {
	if len(call.Inputs) != 1 {
		return nil, runtimes.InvalidArgumentf("Neg takes 1 input, got %d", len(call.Inputs))
	}
	in := call.Inputs[0]
	if !in.DType().IsNumeric() {
		return nil, runtimes.InvalidArgumentf("Neg is not defined for dtype %s", in.DType())
	}
	out, err := runtimes.NewBuffer(in.DType(), in.Shape().Dimensions...)
	if err != nil {
		return nil, err
	}
	switch in.DType() {
	case dtypes.Int8:
		neg[int8](in, out)
	case dtypes.Int16:
		neg[int16](in, out)
	case dtypes.Int32:
		neg[int32](in, out)
	case dtypes.Int64:
		neg[int64](in, out)
	case dtypes.Uint8:
		neg[uint8](in, out)
	case dtypes.Uint16:
		neg[uint16](in, out)
	case dtypes.Uint32:
		neg[uint32](in, out)
	case dtypes.Uint64:
		neg[uint64](in, out)
	case dtypes.Float32:
		neg[float32](in, out)
	case dtypes.Float64:
		neg[float64](in, out)
	case dtypes.Complex64:
		neg[complex64](in, out)
	case dtypes.Complex128:
		neg[complex128](in, out)
	case dtypes.Float16:
		inFlat, outFlat := runtimes.FlatData[float16.Float16](in), runtimes.FlatData[float16.Float16](out)
		for i := range outFlat {
			outFlat[i] = float16.Fromfloat32(-inFlat[i].Float32())
		}
	default:
		return nil, runtimes.Unimplementedf("Neg for dtype %s", in.DType())
	}
	return []*runtimes.Buffer{out}, nil
}

func neg[T arithmetic](in, out *runtimes.Buffer) {
	inFlat, outFlat := runtimes.FlatData[T](in), runtimes.FlatData[T](out)
	for i := range outFlat {
		outFlat[i] = -inFlat[i]
	}
}

// sumKernel reduces all elements to a scalar of the same dtype.
func sumKernel(call *Call) ([]*runtimes.Buffer, error) {
	if len(call.Inputs) != 1 {
		return nil, runtimes.InvalidArgumentf("Sum takes 1 input, got %d", len(call.Inputs))
	}
	in := call.Inputs[0]
	if !in.DType().IsNumeric() {
		return nil, runtimes.InvalidArgumentf("Sum is not defined for dtype %s", in.DType())
	}
	out, err := runtimes.NewBuffer(in.DType())
	if err != nil {
		return nil, err
	}
	switch in.DType() {
	case dtypes.Int8:
		sum[int8](in, out)
	case dtypes.Int16:
		sum[int16](in, out)
	case dtypes.Int32:
		sum[int32](in, out)
	case dtypes.Int64:
		sum[int64](in, out)
	case dtypes.Uint8:
		sum[uint8](in, out)
	case dtypes.Uint16:
		sum[uint16](in, out)
	case dtypes.Uint32:
		sum[uint32](in, out)
	case dtypes.Uint64:
		sum[uint64](in, out)
	case dtypes.Float32:
		sum[float32](in, out)
	case dtypes.Float64:
		sum[float64](in, out)
	case dtypes.Complex64:
		sum[complex64](in, out)
	case dtypes.Complex128:
		sum[complex128](in, out)
	case dtypes.Float16:
		inFlat := runtimes.FlatData[float16.Float16](in)
		var acc float32
		for _, v := range inFlat {
			acc += v.Float32()
		}
		runtimes.FlatData[float16.Float16](out)[0] = float16.Fromfloat32(acc)
	default:
		return nil, runtimes.Unimplementedf("Sum for dtype %s", in.DType())
	}
	return []*runtimes.Buffer{out}, nil
}

func sum[T arithmetic](in, out *runtimes.Buffer) {
	var acc T
	for _, v := range runtimes.FlatData[T](in) {
		acc += v
	}
	runtimes.FlatData[T](out)[0] = acc
}

// matMulKernel multiplies two rank-2 tensors. Only Float32 and Float64 for
// now; the interesting dtypes live on real accelerators anyway.
func matMulKernel(call *Call) ([]*runtimes.Buffer, error) {
	if len(call.Inputs) != 2 {
		return nil, runtimes.InvalidArgumentf("MatMul takes 2 inputs, got %d", len(call.Inputs))
	}
	a, b := call.Inputs[0], call.Inputs[1]
	if a.Shape().Rank() != 2 || b.Shape().Rank() != 2 {
		return nil, runtimes.InvalidArgumentf("MatMul requires rank-2 inputs, got %s and %s", a.Shape(), b.Shape())
	}
	if a.DType() != b.DType() {
		return nil, runtimes.InvalidArgumentf("MatMul inputs must share a dtype, got %s and %s", a.DType(), b.DType())
	}
	m, k := a.Shape().Dim(0), a.Shape().Dim(1)
	k2, n := b.Shape().Dim(0), b.Shape().Dim(1)
	if k != k2 {
		return nil, runtimes.InvalidArgumentf("MatMul inner dimensions mismatch: %s x %s", a.Shape(), b.Shape())
	}
	out, err := runtimes.NewBuffer(a.DType(), m, n)
	if err != nil {
		return nil, err
	}
	switch a.DType() {
	case dtypes.Float32:
		matMul[float32](a, b, out, m, k, n)
	case dtypes.Float64:
		matMul[float64](a, b, out, m, k, n)
	default:
		return nil, runtimes.Unimplementedf("MatMul for dtype %s", a.DType())
	}
	return []*runtimes.Buffer{out}, nil
}

func matMul[T dtypes.Number](a, b, out *runtimes.Buffer, m, k, n int) {
	aFlat, bFlat, outFlat := runtimes.FlatData[T](a), runtimes.FlatData[T](b), runtimes.FlatData[T](out)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var acc T
			for l := 0; l < k; l++ {
				acc += aFlat[i*k+l] * bFlat[l*n+j]
			}
			outFlat[i*n+j] = acc
		}
	}
}

// castKernel converts element types. The target dtype comes from the "dtype"
// attribute. Conversion goes through float64, which is exact for every
// supported type except the extreme ends of the 64-bit integer ranges.
func castKernel(call *Call) ([]*runtimes.Buffer, error) {
	if len(call.Inputs) != 1 {
		return nil, runtimes.InvalidArgumentf("Cast takes 1 input, got %d", len(call.Inputs))
	}
	attr, found := call.Attr("dtype")
	if !found {
		return nil, runtimes.InvalidArgumentf(`Cast requires the "dtype" attribute`)
	}
	target, ok := attr.(dtypes.DType)
	if !ok {
		return nil, runtimes.InvalidArgumentf(`Cast "dtype" attribute must be a DType, got %T`, attr)
	}
	in := call.Inputs[0]
	if in.DType() == target {
		return []*runtimes.Buffer{in.Clone()}, nil
	}
	if !in.DType().IsNumeric() || in.DType().IsComplex() ||
		!target.IsNumeric() || target.IsComplex() {
		return nil, runtimes.Unimplementedf("Cast from %s to %s", in.DType(), target)
	}
	widened, err := asFloat64(in)
	if err != nil {
		return nil, err
	}
	out, err := runtimes.NewBuffer(target, in.Shape().Dimensions...)
	if err != nil {
		return nil, err
	}
	if err := fromFloat64(widened, out); err != nil {
		return nil, err
	}
	return []*runtimes.Buffer{out}, nil
}

func asFloat64(in *runtimes.Buffer) ([]float64, error) {
	widened := make([]float64, in.Size())
	switch in.DType() {
	case dtypes.Int8:
		widen(runtimes.FlatData[int8](in), widened)
	case dtypes.Int16:
		widen(runtimes.FlatData[int16](in), widened)
	case dtypes.Int32:
		widen(runtimes.FlatData[int32](in), widened)
	case dtypes.Int64:
		widen(runtimes.FlatData[int64](in), widened)
	case dtypes.Uint8:
		widen(runtimes.FlatData[uint8](in), widened)
	case dtypes.Uint16:
		widen(runtimes.FlatData[uint16](in), widened)
	case dtypes.Uint32:
		widen(runtimes.FlatData[uint32](in), widened)
	case dtypes.Uint64:
		widen(runtimes.FlatData[uint64](in), widened)
	case dtypes.Float32:
		widen(runtimes.FlatData[float32](in), widened)
	case dtypes.Float64:
		copy(widened, runtimes.FlatData[float64](in))
	case dtypes.Float16:
		for i, v := range runtimes.FlatData[float16.Float16](in) {
			widened[i] = float64(v.Float32())
		}
	default:
		return nil, runtimes.Unimplementedf("Cast from %s", in.DType())
	}
	return widened, nil
}

func fromFloat64(widened []float64, out *runtimes.Buffer) error {
	switch out.DType() {
	case dtypes.Int8:
		narrow[int8](widened, out)
	case dtypes.Int16:
		narrow[int16](widened, out)
	case dtypes.Int32:
		narrow[int32](widened, out)
	case dtypes.Int64:
		narrow[int64](widened, out)
	case dtypes.Uint8:
		narrow[uint8](widened, out)
	case dtypes.Uint16:
		narrow[uint16](widened, out)
	case dtypes.Uint32:
		narrow[uint32](widened, out)
	case dtypes.Uint64:
		narrow[uint64](widened, out)
	case dtypes.Float32:
		narrow[float32](widened, out)
	case dtypes.Float64:
		copy(runtimes.FlatData[float64](out), widened)
	case dtypes.Float16:
		outFlat := runtimes.FlatData[float16.Float16](out)
		for i, v := range widened {
			outFlat[i] = float16.Fromfloat32(float32(v))
		}
	default:
		return runtimes.Unimplementedf("Cast to %s", out.DType())
	}
	return nil
}

func widen[T dtypes.Number](flat []T, widened []float64) {
	for i, v := range flat {
		widened[i] = float64(v)
	}
}

func narrow[T dtypes.Number](widened []float64, out *runtimes.Buffer) {
	outFlat := runtimes.FlatData[T](out)
	for i, v := range widened {
		outFlat[i] = T(v)
	}
}
