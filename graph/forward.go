package graph

import (
	"math/cmplx"

	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/tensor"
)

// forwardCache holds the intermediate tensors of one forward pass, in the
// order backward needs them.
type forwardCache struct {
	layerInputs []*tensor.Tensor // input to each dense transform
	preacts     []*tensor.Tensor // dense output before activation
	preOutput   *tensor.Tensor   // final activation output before any modulus projection
	output      *tensor.Tensor
	absApplied  bool
}

func (g *Graph) checkInput(x *tensor.Tensor) error {
	if x.DType != g.inputDType {
		return errors.Errorf("input dtype %s does not match graph input domain %s", x.DType, g.inputDType)
	}
	if x.Cols() != g.InputWidth() {
		return errors.Errorf("input has %d features, graph expects %d", x.Cols(), g.InputWidth())
	}
	return nil
}

func (g *Graph) checkTarget(y *tensor.Tensor) error {
	if y.DType != g.outputDType {
		return errors.Errorf("target dtype %s does not match graph output domain %s", y.DType, g.outputDType)
	}
	if y.Cols() != g.OutputWidth() {
		return errors.Errorf("target has %d columns, graph expects %d", y.Cols(), g.OutputWidth())
	}
	return nil
}

// forward runs the full chain: input activation, then each dense transform
// with its activation. If the declared output domain is real but the chain
// ends complex, the modulus is taken as the final projection.
func (g *Graph) forward(x *tensor.Tensor) (*forwardCache, error) {
	if err := g.checkInput(x); err != nil {
		return nil, err
	}
	out, err := g.inputAct.Apply(x)
	if err != nil {
		return nil, errors.Wrap(err, "input activation")
	}

	c := &forwardCache{}
	for i := range g.weights {
		c.layerInputs = append(c.layerInputs, out)
		z, err := tensor.MatMul(out, g.weights[i])
		if err != nil {
			return nil, errors.Wrapf(err, "dense layer %d", i+1)
		}
		z, err = tensor.Add(z, g.biases[i])
		if err != nil {
			return nil, errors.Wrapf(err, "bias for layer %d", i+1)
		}
		c.preacts = append(c.preacts, z)
		out, err = g.acts[i].Apply(z)
		if err != nil {
			return nil, errors.Wrapf(err, "activation for layer %d", i+1)
		}
	}

	c.preOutput = out
	if !g.outputDType.IsComplex() && out.DType.IsComplex() {
		out = tensor.Abs(out)
		c.absApplied = true
	}
	if out.DType != g.outputDType {
		return nil, errors.Errorf("forward produced %s output, graph declares %s", out.DType, g.outputDType)
	}
	c.output = out
	return c, nil
}

// Output runs a forward pass and returns the prediction tensor.
func (g *Graph) Output(x *tensor.Tensor) (*tensor.Tensor, error) {
	c, err := g.forward(x)
	if err != nil {
		return nil, err
	}
	return c.output, nil
}

// Loss evaluates the training objective for one input/target pair without
// touching any parameter.
func (g *Graph) Loss(x, y *tensor.Tensor) (float64, error) {
	if err := g.checkTarget(y); err != nil {
		return 0, err
	}
	c, err := g.forward(x)
	if err != nil {
		return 0, err
	}
	return g.loss.Forward(c.output, y)
}

// Accuracy evaluates categorical accuracy for one input/target pair.
func (g *Graph) Accuracy(x, y *tensor.Tensor) (float64, error) {
	if err := g.checkTarget(y); err != nil {
		return 0, err
	}
	c, err := g.forward(x)
	if err != nil {
		return 0, err
	}
	return CategoricalAccuracy(c.output, y)
}

// Evaluate returns loss and accuracy from a single forward pass.
func (g *Graph) Evaluate(x, y *tensor.Tensor) (loss, acc float64, err error) {
	if err := g.checkTarget(y); err != nil {
		return 0, 0, err
	}
	c, err := g.forward(x)
	if err != nil {
		return 0, 0, err
	}
	loss, err = g.loss.Forward(c.output, y)
	if err != nil {
		return 0, 0, err
	}
	acc, err = CategoricalAccuracy(c.output, y)
	if err != nil {
		return 0, 0, err
	}
	return loss, acc, nil
}

// CategoricalAccuracy is the fraction of rows whose predicted argmax
// matches the target argmax. Complex entries compare by modulus.
func CategoricalAccuracy(pred, target *tensor.Tensor) (float64, error) {
	p, err := tensor.ArgMaxRows(pred)
	if err != nil {
		return 0, err
	}
	t, err := tensor.ArgMaxRows(target)
	if err != nil {
		return 0, err
	}
	if len(p) != len(t) {
		return 0, errors.Errorf("prediction has %d rows, target has %d", len(p), len(t))
	}
	if len(p) == 0 {
		return 0, errors.New("accuracy of an empty batch is undefined")
	}
	hits := 0
	for i := range p {
		if p[i] == t[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(p)), nil
}

// absBackward propagates a real gradient through the modulus projection
// back into the complex domain: gz = g * z/|z|, zero where z is zero.
func absBackward(z *tensor.Tensor, g *tensor.Tensor) (*tensor.Tensor, error) {
	zd, err := z.Complex128s()
	if err != nil {
		return nil, err
	}
	gd, err := g.Float64s()
	if err != nil {
		return nil, err
	}
	if len(zd) != len(gd) {
		return nil, errors.Errorf("modulus backward: %d complex values, %d gradients", len(zd), len(gd))
	}
	out := make([]complex128, len(zd))
	for i, v := range zd {
		m := cmplx.Abs(v)
		if m == 0 {
			continue
		}
		out[i] = complex(gd[i]/m, 0) * v
	}
	return tensor.New(append([]int(nil), z.Shape...), tensor.Complex128, out)
}
