// Package losses holds the closed catalog of training objectives. As with
// activations, a Loss value can only originate here; there is no identity
// fallback because an undefined objective has no safe default.
package losses

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"github.com/yonikl/cvnn/tensor"
)

const epsilon = 1e-12

// Loss pairs a scalar objective with its gradient w.r.t. the prediction.
type Loss struct {
	name     string
	forward  func(pred, target *tensor.Tensor) (float64, error)
	backward func(pred, target *tensor.Tensor) (*tensor.Tensor, error)
}

// Name returns the catalog name of the loss.
func (l Loss) Name() string { return l.name }

// Valid reports whether the loss was obtained from the catalog.
func (l Loss) Valid() bool { return l.forward != nil }

// Forward evaluates the objective, always returning a real scalar.
func (l Loss) Forward(pred, target *tensor.Tensor) (float64, error) {
	if !l.Valid() {
		return 0, errors.New("invalid loss")
	}
	return l.forward(pred, target)
}

// Backward returns the gradient of the objective w.r.t. pred.
func (l Loss) Backward(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
	if !l.Valid() {
		return nil, errors.New("invalid loss")
	}
	return l.backward(pred, target)
}

// Resolve looks up a loss by name. Unknown names are an error: there is no
// fallback objective.
func Resolve(name string) (Loss, error) {
	switch name {
	case "mean_square":
		return MeanSquare(), nil
	case "categorical_crossentropy":
		return CategoricalCrossentropy(), nil
	default:
		return Loss{}, errors.Errorf("unknown loss function %q", name)
	}
}

func checkPair(pred, target *tensor.Tensor) error {
	if pred.DType != target.DType {
		return errors.Errorf("prediction dtype %s does not match target dtype %s", pred.DType, target.DType)
	}
	if pred.NumElems != target.NumElems {
		return errors.Errorf("prediction shape %v does not match target shape %v", pred.Shape, target.Shape)
	}
	return nil
}

// MeanSquare is the mean squared magnitude of the prediction error,
// defined for both real and complex predictions.
func MeanSquare() Loss {
	return Loss{
		name: "mean_square",
		forward: func(pred, target *tensor.Tensor) (float64, error) {
			if err := checkPair(pred, target); err != nil {
				return 0, err
			}
			sum := 0.0
			switch pred.DType {
			case tensor.Float64:
				p := pred.Data.([]float64)
				t := target.Data.([]float64)
				for i := range p {
					d := p[i] - t[i]
					sum += d * d
				}
			case tensor.Complex128:
				p := pred.Data.([]complex128)
				t := target.Data.([]complex128)
				for i := range p {
					a := cmplx.Abs(p[i] - t[i])
					sum += a * a
				}
			}
			return sum / float64(pred.NumElems), nil
		},
		backward: func(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
			if err := checkPair(pred, target); err != nil {
				return nil, err
			}
			diff, err := tensor.Sub(pred, target)
			if err != nil {
				return nil, err
			}
			return tensor.Scale(diff, 2/float64(pred.NumElems)), nil
		},
	}
}

// CategoricalCrossentropy expects a real post-softmax prediction and a
// one-hot target, averaged over the batch dimension.
func CategoricalCrossentropy() Loss {
	return Loss{
		name: "categorical_crossentropy",
		forward: func(pred, target *tensor.Tensor) (float64, error) {
			p, err := pred.Float64s()
			if err != nil {
				return 0, errors.Wrap(err, "categorical_crossentropy requires a real prediction")
			}
			t, err := target.Float64s()
			if err != nil {
				return 0, errors.Wrap(err, "categorical_crossentropy requires a real target")
			}
			if len(p) != len(t) {
				return 0, errors.Errorf("prediction shape %v does not match target shape %v", pred.Shape, target.Shape)
			}
			rows := pred.Rows()
			if rows == 0 {
				return 0, errors.New("empty prediction")
			}
			sum := 0.0
			for i := range p {
				if t[i] != 0 {
					sum -= t[i] * math.Log(math.Max(p[i], epsilon))
				}
			}
			return sum / float64(rows), nil
		},
		backward: func(pred, target *tensor.Tensor) (*tensor.Tensor, error) {
			p, err := pred.Float64s()
			if err != nil {
				return nil, errors.Wrap(err, "categorical_crossentropy requires a real prediction")
			}
			t, err := target.Float64s()
			if err != nil {
				return nil, errors.Wrap(err, "categorical_crossentropy requires a real target")
			}
			if len(p) != len(t) {
				return nil, errors.Errorf("prediction shape %v does not match target shape %v", pred.Shape, target.Shape)
			}
			rows := float64(pred.Rows())
			out := make([]float64, len(p))
			for i := range p {
				if t[i] != 0 {
					out[i] = -t[i] / math.Max(p[i], epsilon) / rows
				}
			}
			return tensor.New(pred.Shape, tensor.Float64, out)
		},
	}
}
