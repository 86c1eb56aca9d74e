package activations

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"github.com/yonikl/cvnn/tensor"
)

// rowSoftmax applies a numerically stable softmax to each length-n row.
func rowSoftmax(data []float64, rows, n int) {
	for i := 0; i < rows; i++ {
		row := data[i*n : (i+1)*n]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		sum := 0.0
		for j, v := range row {
			row[j] = math.Exp(v - max)
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

// rowSoftmaxBackward computes the softmax Jacobian-vector product per row:
// ga = s * (g - <g, s>).
func rowSoftmaxBackward(s, g []float64, rows, n int) []float64 {
	out := make([]float64, len(g))
	for i := 0; i < rows; i++ {
		srow := s[i*n : (i+1)*n]
		grow := g[i*n : (i+1)*n]
		dot := 0.0
		for j := range srow {
			dot += grow[j] * srow[j]
		}
		orow := out[i*n : (i+1)*n]
		for j := range srow {
			orow[j] = srow[j] * (grow[j] - dot)
		}
	}
	return out
}

func matrixDims(t *tensor.Tensor) (int, int, error) {
	if len(t.Shape) != 2 {
		return 0, 0, errors.Errorf("softmax requires a 2D tensor, got %v", t.Shape)
	}
	return t.Shape[0], t.Shape[1], nil
}

// cartSoftmax applies the softmax independently to the real and imaginary
// parts of each row, preserving the input domain.
func cartSoftmax() Activation {
	apply := func(t *tensor.Tensor) (*tensor.Tensor, error) {
		rows, n, err := matrixDims(t)
		if err != nil {
			return nil, err
		}
		out := t.Clone()
		switch t.DType {
		case tensor.Float64:
			rowSoftmax(out.Data.([]float64), rows, n)
		case tensor.Complex128:
			d := out.Data.([]complex128)
			re := make([]float64, len(d))
			im := make([]float64, len(d))
			for i, v := range d {
				re[i], im[i] = real(v), imag(v)
			}
			rowSoftmax(re, rows, n)
			rowSoftmax(im, rows, n)
			for i := range d {
				d[i] = complex(re[i], im[i])
			}
		}
		return out, nil
	}
	backward := func(preact, grad *tensor.Tensor) (*tensor.Tensor, error) {
		rows, n, err := matrixDims(preact)
		if err != nil {
			return nil, err
		}
		s, err := apply(preact)
		if err != nil {
			return nil, err
		}
		switch preact.DType {
		case tensor.Float64:
			g, err := grad.Float64s()
			if err != nil {
				return nil, err
			}
			out := rowSoftmaxBackward(s.Data.([]float64), g, rows, n)
			return tensor.New(preact.Shape, tensor.Float64, out)
		case tensor.Complex128:
			g, err := grad.Complex128s()
			if err != nil {
				return nil, err
			}
			sd := s.Data.([]complex128)
			sre := make([]float64, len(sd))
			sim := make([]float64, len(sd))
			gre := make([]float64, len(g))
			gim := make([]float64, len(g))
			for i := range sd {
				sre[i], sim[i] = real(sd[i]), imag(sd[i])
				gre[i], gim[i] = real(g[i]), imag(g[i])
			}
			ore := rowSoftmaxBackward(sre, gre, rows, n)
			oim := rowSoftmaxBackward(sim, gim, rows, n)
			out := make([]complex128, len(sd))
			for i := range out {
				out[i] = complex(ore[i], oim[i])
			}
			return tensor.New(preact.Shape, tensor.Complex128, out)
		default:
			return nil, errors.Errorf("unsupported dtype %s", preact.DType)
		}
	}
	return Activation{name: "cart_softmax", apply: apply, backward: backward}
}

// cartSoftmaxReal applies the softmax to the elementwise magnitudes,
// producing a real tensor from either a real or a complex input. It is the
// conventional output activation for classification on complex features.
func cartSoftmaxReal() Activation {
	apply := func(t *tensor.Tensor) (*tensor.Tensor, error) {
		rows, n, err := matrixDims(t)
		if err != nil {
			return nil, err
		}
		out := tensor.Abs(t)
		rowSoftmax(out.Data.([]float64), rows, n)
		return out, nil
	}
	backward := func(preact, grad *tensor.Tensor) (*tensor.Tensor, error) {
		rows, n, err := matrixDims(preact)
		if err != nil {
			return nil, err
		}
		g, err := grad.Float64s()
		if err != nil {
			return nil, errors.Wrap(err, "cart_softmax_real expects a real output gradient")
		}
		mag := tensor.Abs(preact)
		s := mag.Clone()
		rowSoftmax(s.Data.([]float64), rows, n)
		gu := rowSoftmaxBackward(s.Data.([]float64), g, rows, n)

		// Chain through the magnitude: d|z| flows along z/|z|.
		switch preact.DType {
		case tensor.Float64:
			x := preact.Data.([]float64)
			out := make([]float64, len(gu))
			for i := range out {
				if x[i] < 0 {
					out[i] = -gu[i]
				} else {
					out[i] = gu[i]
				}
			}
			return tensor.New(preact.Shape, tensor.Float64, out)
		case tensor.Complex128:
			z := preact.Data.([]complex128)
			out := make([]complex128, len(gu))
			for i := range out {
				a := cmplx.Abs(z[i])
				if a == 0 {
					continue
				}
				out[i] = complex(gu[i]/a, 0) * z[i]
			}
			return tensor.New(preact.Shape, tensor.Complex128, out)
		default:
			return nil, errors.Errorf("unsupported dtype %s", preact.DType)
		}
	}
	return Activation{name: "cart_softmax_real", apply: apply, backward: backward}
}
