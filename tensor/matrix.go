package tensor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// MatMul computes the matrix product of two 2D tensors of the same dtype.
// Float64 products go through gonum's Dense, Complex128 through CDense.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, errors.Errorf("matmul requires 2D tensors, got %v and %v", a.Shape, b.Shape)
	}
	if a.DType != b.DType {
		return nil, errors.Errorf("matmul dtype mismatch: %s vs %s", a.DType, b.DType)
	}
	m, k := a.Shape[0], a.Shape[1]
	k2, n := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, errors.Errorf("matmul inner dimension mismatch: %v x %v", a.Shape, b.Shape)
	}

	switch a.DType {
	case Float64:
		am := mat.NewDense(m, k, a.Data.([]float64))
		bm := mat.NewDense(k, n, b.Data.([]float64))
		out := mat.NewDense(m, n, nil)
		out.Mul(am, bm)
		return New([]int{m, n}, Float64, out.RawMatrix().Data)
	case Complex128:
		am := mat.NewCDense(m, k, a.Data.([]complex128))
		bm := mat.NewCDense(k, n, b.Data.([]complex128))
		out := mat.NewCDense(m, n, nil)
		cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, am.RawCMatrix(), bm.RawCMatrix(), 0, out.RawCMatrix())
		return New([]int{m, n}, Complex128, out.RawCMatrix().Data)
	default:
		return nil, errors.Errorf("unsupported dtype %s", a.DType)
	}
}

// Transpose returns the transpose of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, errors.Errorf("transpose requires a 2D tensor, got %v", t.Shape)
	}
	m, n := t.Shape[0], t.Shape[1]
	out, err := Zeros([]int{n, m}, t.DType)
	if err != nil {
		return nil, err
	}
	switch t.DType {
	case Float64:
		src := t.Data.([]float64)
		dst := out.Data.([]float64)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				dst[j*m+i] = src[i*n+j]
			}
		}
	case Complex128:
		src := t.Data.([]complex128)
		dst := out.Data.([]complex128)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				dst[j*m+i] = src[i*n+j]
			}
		}
	}
	return out, nil
}

// ConjTranspose returns the conjugate transpose of a 2D tensor. For Float64
// tensors this is a plain transpose.
func ConjTranspose(t *Tensor) (*Tensor, error) {
	out, err := Transpose(t)
	if err != nil {
		return nil, err
	}
	if t.DType == Complex128 {
		d := out.Data.([]complex128)
		for i := range d {
			d[i] = complex(real(d[i]), -imag(d[i]))
		}
	}
	return out, nil
}
