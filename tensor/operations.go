package tensor

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// Add computes a + b. Shapes must match exactly, except that a 1D tensor b
// of length n is broadcast across the rows of a 2D tensor a with n columns
// (the bias-add case).
func Add(a, b *Tensor) (*Tensor, error) {
	return elementwiseBinary(a, b, "add",
		func(x, y float64) float64 { return x + y },
		func(x, y complex128) complex128 { return x + y })
}

// Sub computes a - b under the same shape rules as Add.
func Sub(a, b *Tensor) (*Tensor, error) {
	return elementwiseBinary(a, b, "sub",
		func(x, y float64) float64 { return x - y },
		func(x, y complex128) complex128 { return x - y })
}

// Mul computes the elementwise product under the same shape rules as Add.
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementwiseBinary(a, b, "mul",
		func(x, y float64) float64 { return x * y },
		func(x, y complex128) complex128 { return x * y })
}

func elementwiseBinary(a, b *Tensor, op string,
	ff func(float64, float64) float64,
	fc func(complex128, complex128) complex128) (*Tensor, error) {

	if a.DType != b.DType {
		return nil, errors.Errorf("%s dtype mismatch: %s vs %s", op, a.DType, b.DType)
	}

	broadcastRow := false
	if !shapesEqual(a.Shape, b.Shape) {
		if len(a.Shape) == 2 && len(b.Shape) == 1 && b.Shape[0] == a.Shape[1] {
			broadcastRow = true
		} else {
			return nil, errors.Errorf("%s shape mismatch: %v vs %v", op, a.Shape, b.Shape)
		}
	}

	out := a.Clone()
	switch a.DType {
	case Float64:
		ad := out.Data.([]float64)
		bd := b.Data.([]float64)
		if broadcastRow {
			n := a.Shape[1]
			for i := range ad {
				ad[i] = ff(ad[i], bd[i%n])
			}
		} else {
			for i := range ad {
				ad[i] = ff(ad[i], bd[i])
			}
		}
	case Complex128:
		ad := out.Data.([]complex128)
		bd := b.Data.([]complex128)
		if broadcastRow {
			n := a.Shape[1]
			for i := range ad {
				ad[i] = fc(ad[i], bd[i%n])
			}
		} else {
			for i := range ad {
				ad[i] = fc(ad[i], bd[i])
			}
		}
	}
	return out, nil
}

// Scale multiplies every element by the real scalar s.
func Scale(t *Tensor, s float64) *Tensor {
	out := t.Clone()
	switch t.DType {
	case Float64:
		d := out.Data.([]float64)
		for i := range d {
			d[i] *= s
		}
	case Complex128:
		d := out.Data.([]complex128)
		c := complex(s, 0)
		for i := range d {
			d[i] *= c
		}
	}
	return out
}

// AXPYInPlace performs dst += alpha * src in place. Shapes and dtypes must
// match; this is the primitive behind the parameter update rule.
func AXPYInPlace(dst, src *Tensor, alpha float64) error {
	if dst.DType != src.DType {
		return errors.Errorf("axpy dtype mismatch: %s vs %s", dst.DType, src.DType)
	}
	if !shapesEqual(dst.Shape, src.Shape) {
		return errors.Errorf("axpy shape mismatch: %v vs %v", dst.Shape, src.Shape)
	}
	switch dst.DType {
	case Float64:
		dd := dst.Data.([]float64)
		sd := src.Data.([]float64)
		for i := range dd {
			dd[i] += alpha * sd[i]
		}
	case Complex128:
		dd := dst.Data.([]complex128)
		sd := src.Data.([]complex128)
		a := complex(alpha, 0)
		for i := range dd {
			dd[i] += a * sd[i]
		}
	}
	return nil
}

// Abs returns the elementwise magnitude as a Float64 tensor. This is the
// modulus projection used to coerce a complex pre-output to a real output.
func Abs(t *Tensor) *Tensor {
	out, _ := Zeros(t.Shape, Float64)
	od := out.Data.([]float64)
	switch t.DType {
	case Float64:
		d := t.Data.([]float64)
		for i := range d {
			od[i] = math.Abs(d[i])
		}
	case Complex128:
		d := t.Data.([]complex128)
		for i := range d {
			od[i] = cmplx.Abs(d[i])
		}
	}
	return out
}

// Conj returns the elementwise complex conjugate.
func Conj(t *Tensor) *Tensor {
	out := t.Clone()
	if t.DType == Complex128 {
		d := out.Data.([]complex128)
		for i := range d {
			d[i] = complex(real(d[i]), -imag(d[i]))
		}
	}
	return out
}
