// Package activations holds the closed catalog of activation functions the
// graph builder may apply. Functions outside this catalog cannot be wired
// into a graph: an Activation value can only be produced by this package,
// which stands in for the original allow-list of approved modules.
package activations

import (
	"math"

	"github.com/pkg/errors"
	"github.com/yonikl/cvnn/tensor"
)

// Activation pairs a forward application with its gradient rule. The zero
// value is invalid; obtain instances through Resolve or the exported
// constructors.
type Activation struct {
	name     string
	apply    func(*tensor.Tensor) (*tensor.Tensor, error)
	backward func(preact, grad *tensor.Tensor) (*tensor.Tensor, error)
}

// Name returns the catalog name of the activation.
func (a Activation) Name() string { return a.name }

// Valid reports whether the activation was obtained from the catalog.
func (a Activation) Valid() bool { return a.apply != nil }

// Apply runs the activation on t.
func (a Activation) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	if !a.Valid() {
		return nil, errors.New("invalid activation")
	}
	return a.apply(t)
}

// Backward chains grad (the gradient w.r.t. the activation output) through
// the activation evaluated at preact, returning the gradient w.r.t. preact.
func (a Activation) Backward(preact, grad *tensor.Tensor) (*tensor.Tensor, error) {
	if !a.Valid() {
		return nil, errors.New("invalid activation")
	}
	return a.backward(preact, grad)
}

var catalog map[string]Activation

func init() {
	catalog = map[string]Activation{}
	for _, a := range []Activation{
		Linear(),
		cartesian("cart_sigmoid", sigmoid, dSigmoid),
		cartesian("cart_elu", elu, dELU),
		cartesian("cart_exponential", math.Exp, math.Exp),
		cartesian("cart_hard_sigmoid", hardSigmoid, dHardSigmoid),
		cartesian("cart_relu", relu, dReLU),
		cartesian("cart_selu", selu, dSELU),
		cartesian("cart_softplus", softplus, sigmoid),
		cartesian("cart_softsign", softsign, dSoftsign),
		cartesian("cart_tanh", math.Tanh, dTanh),
		cartSoftmax(),
		cartSoftmaxReal(),
	} {
		catalog[a.name] = a
	}
}

// Resolve looks up an activation by name. The second return value is false
// for unknown names; the caller decides whether to fall back to identity.
func Resolve(name string) (Activation, bool) {
	a, ok := catalog[name]
	return a, ok
}

// Names returns the catalog names, for diagnostics.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	return out
}

// Linear is the identity activation, also used as the fallback for unknown
// activation names.
func Linear() Activation {
	return Activation{
		name: "linear",
		apply: func(t *tensor.Tensor) (*tensor.Tensor, error) {
			return t.Clone(), nil
		},
		backward: func(_, grad *tensor.Tensor) (*tensor.Tensor, error) {
			return grad.Clone(), nil
		},
	}
}

// cartesian lifts a real scalar function to the complex plane by applying it
// independently to the real and imaginary parts. The gradient rule follows
// the same split.
func cartesian(name string, f, df func(float64) float64) Activation {
	return Activation{
		name: name,
		apply: func(t *tensor.Tensor) (*tensor.Tensor, error) {
			out := t.Clone()
			switch t.DType {
			case tensor.Float64:
				d := out.Data.([]float64)
				for i := range d {
					d[i] = f(d[i])
				}
			case tensor.Complex128:
				d := out.Data.([]complex128)
				for i := range d {
					d[i] = complex(f(real(d[i])), f(imag(d[i])))
				}
			}
			return out, nil
		},
		backward: func(preact, grad *tensor.Tensor) (*tensor.Tensor, error) {
			if preact.DType != grad.DType {
				return nil, errors.Errorf("%s backward dtype mismatch: %s vs %s", name, preact.DType, grad.DType)
			}
			out := grad.Clone()
			switch preact.DType {
			case tensor.Float64:
				x := preact.Data.([]float64)
				g := out.Data.([]float64)
				for i := range g {
					g[i] *= df(x[i])
				}
			case tensor.Complex128:
				x := preact.Data.([]complex128)
				g := out.Data.([]complex128)
				for i := range g {
					g[i] = complex(df(real(x[i]))*real(g[i]), df(imag(x[i]))*imag(g[i]))
				}
			}
			return out, nil
		},
	}
}

const (
	seluAlpha  = 1.6732632423543772848170429916717
	seluLambda = 1.0507009873554804934193349852946
)

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func dSigmoid(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func dReLU(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func elu(x float64) float64 {
	if x > 0 {
		return x
	}
	return math.Exp(x) - 1
}

func dELU(x float64) float64 {
	if x > 0 {
		return 1
	}
	return math.Exp(x)
}

func selu(x float64) float64 {
	if x > 0 {
		return seluLambda * x
	}
	return seluLambda * seluAlpha * (math.Exp(x) - 1)
}

func dSELU(x float64) float64 {
	if x > 0 {
		return seluLambda
	}
	return seluLambda * seluAlpha * math.Exp(x)
}

func hardSigmoid(x float64) float64 {
	v := 0.2*x + 0.5
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dHardSigmoid(x float64) float64 {
	if x > -2.5 && x < 2.5 {
		return 0.2
	}
	return 0
}

func softplus(x float64) float64 { return math.Log1p(math.Exp(x)) }

func softsign(x float64) float64 { return x / (1 + math.Abs(x)) }

func dSoftsign(x float64) float64 {
	d := 1 + math.Abs(x)
	return 1 / (d * d)
}

func dTanh(x float64) float64 {
	t := math.Tanh(x)
	return 1 - t*t
}
