package tensor

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// GlorotUniform creates a [fanIn, fanOut] weight matrix drawn from the
// Glorot (Xavier) uniform distribution over [-limit, limit] with
// limit = sqrt(6 / (fanIn + fanOut)). For Complex128 the real and
// imaginary parts are drawn independently from the same distribution.
func GlorotUniform(fanIn, fanOut int, dtype DType, src rand.Source) (*Tensor, error) {
	if fanIn <= 0 || fanOut <= 0 {
		return nil, errors.Errorf("invalid fan sizes %d x %d", fanIn, fanOut)
	}
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}

	shape := []int{fanIn, fanOut}
	n := fanIn * fanOut
	switch dtype {
	case Float64:
		data := make([]float64, n)
		for i := range data {
			data[i] = dist.Rand()
		}
		return New(shape, dtype, data)
	case Complex128:
		data := make([]complex128, n)
		for i := range data {
			data[i] = complex(dist.Rand(), dist.Rand())
		}
		return New(shape, dtype, data)
	default:
		return nil, errors.Errorf("unsupported dtype %d", int(dtype))
	}
}

// FromScalar creates a 1-element tensor holding v.
func FromScalar(v float64, dtype DType) *Tensor {
	switch dtype {
	case Complex128:
		t, _ := New([]int{1}, dtype, []complex128{complex(v, 0)})
		return t
	default:
		t, _ := New([]int{1}, Float64, []float64{v})
		return t
	}
}
