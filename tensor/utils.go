package tensor

import (
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ArgMaxRows returns, for each row of a 2D tensor, the column index of the
// maximum value. Complex values are compared by magnitude.
func ArgMaxRows(t *Tensor) ([]int, error) {
	if len(t.Shape) != 2 {
		return nil, errors.Errorf("argmax requires a 2D tensor, got %v", t.Shape)
	}
	m, n := t.Shape[0], t.Shape[1]
	out := make([]int, m)

	switch t.DType {
	case Float64:
		d := t.Data.([]float64)
		for i := 0; i < m; i++ {
			out[i] = floats.MaxIdx(d[i*n : (i+1)*n])
		}
	case Complex128:
		d := t.Data.([]complex128)
		for i := 0; i < m; i++ {
			best, bestAbs := 0, cmplx.Abs(d[i*n])
			for j := 1; j < n; j++ {
				if a := cmplx.Abs(d[i*n+j]); a > bestAbs {
					best, bestAbs = j, a
				}
			}
			out[i] = best
		}
	}
	return out, nil
}

// MeanAll returns the mean of all elements of a Float64 tensor.
func MeanAll(t *Tensor) (float64, error) {
	d, err := t.Float64s()
	if err != nil {
		return 0, err
	}
	if len(d) == 0 {
		return 0, nil
	}
	return floats.Sum(d) / float64(len(d)), nil
}

// SumColumns reduces an [m, n] tensor to an [n] tensor by summing rows.
func SumColumns(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, errors.Errorf("column sum requires a 2D tensor, got %v", t.Shape)
	}
	m, n := t.Shape[0], t.Shape[1]
	out, err := Zeros([]int{n}, t.DType)
	if err != nil {
		return nil, err
	}
	switch t.DType {
	case Float64:
		src := t.Data.([]float64)
		dst := out.Data.([]float64)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				dst[j] += src[i*n+j]
			}
		}
	case Complex128:
		src := t.Data.([]complex128)
		dst := out.Data.([]complex128)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				dst[j] += src[i*n+j]
			}
		}
	}
	return out, nil
}

// SliceRows returns rows [start, end) of a 2D tensor as a copy. An empty
// range with start equal to end yields a zero-row tensor.
func SliceRows(t *Tensor, start, end int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, errors.Errorf("row slice requires a 2D tensor, got %v", t.Shape)
	}
	m, n := t.Shape[0], t.Shape[1]
	if start < 0 || end > m || start > end {
		return nil, errors.Errorf("row slice [%d, %d) out of range for %d rows", start, end, m)
	}
	rows := end - start
	switch t.DType {
	case Float64:
		src := t.Data.([]float64)
		return New([]int{rows, n}, Float64, append([]float64{}, src[start*n:end*n]...))
	case Complex128:
		src := t.Data.([]complex128)
		return New([]int{rows, n}, Complex128, append([]complex128{}, src[start*n:end*n]...))
	default:
		return nil, errors.Errorf("unsupported dtype %s", t.DType)
	}
}

// GatherRows builds a new 2D tensor whose row i is t's row perm[i].
func GatherRows(t *Tensor, perm []int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, errors.Errorf("row gather requires a 2D tensor, got %v", t.Shape)
	}
	m, n := t.Shape[0], t.Shape[1]
	if len(perm) != m {
		return nil, errors.Errorf("permutation length %d does not match %d rows", len(perm), m)
	}
	out, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}
	switch t.DType {
	case Float64:
		src := t.Data.([]float64)
		dst := out.Data.([]float64)
		for i, p := range perm {
			copy(dst[i*n:(i+1)*n], src[p*n:(p+1)*n])
		}
	case Complex128:
		src := t.Data.([]complex128)
		dst := out.Data.([]complex128)
		for i, p := range perm {
			copy(dst[i*n:(i+1)*n], src[p*n:(p+1)*n])
		}
	}
	return out, nil
}
