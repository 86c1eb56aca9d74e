package graph

import (
	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/tensor"
)

// gradients pairs each learnable tensor with its gradient for one batch,
// ordered to match the update ops.
type gradients struct {
	weights []*tensor.Tensor
	biases  []*tensor.Tensor
}

// backward runs reverse-mode differentiation through the cached forward
// pass. Complex layers use the conjugate-transpose chain rule so that the
// returned gradients are direct descent directions for the real loss.
func (g *Graph) backward(c *forwardCache, y *tensor.Tensor) (*gradients, error) {
	grad, err := g.loss.Backward(c.output, y)
	if err != nil {
		return nil, errors.Wrap(err, "loss backward")
	}
	if c.absApplied {
		grad, err = absBackward(c.preOutput, grad)
		if err != nil {
			return nil, errors.Wrap(err, "modulus backward")
		}
	}

	gs := &gradients{
		weights: make([]*tensor.Tensor, len(g.weights)),
		biases:  make([]*tensor.Tensor, len(g.biases)),
	}
	for i := len(g.weights) - 1; i >= 0; i-- {
		grad, err = g.acts[i].Backward(c.preacts[i], grad)
		if err != nil {
			return nil, errors.Wrapf(err, "activation backward for layer %d", i+1)
		}
		xh, err := tensor.ConjTranspose(c.layerInputs[i])
		if err != nil {
			return nil, err
		}
		gs.weights[i], err = tensor.MatMul(xh, grad)
		if err != nil {
			return nil, errors.Wrapf(err, "weight gradient for layer %d", i+1)
		}
		gs.biases[i], err = tensor.SumColumns(grad)
		if err != nil {
			return nil, errors.Wrapf(err, "bias gradient for layer %d", i+1)
		}
		if i > 0 {
			wh, err := tensor.ConjTranspose(g.weights[i])
			if err != nil {
				return nil, err
			}
			grad, err = tensor.MatMul(grad, wh)
			if err != nil {
				return nil, errors.Wrapf(err, "input gradient for layer %d", i+1)
			}
		}
	}
	return gs, nil
}

// applyUpdates runs every update op: param <- param - lr * gradient.
func (g *Graph) applyUpdates(gs *gradients) error {
	for i := range g.weights {
		if err := tensor.AXPYInPlace(g.weights[i], gs.weights[i], -g.lr); err != nil {
			return errors.Wrapf(err, "updating weights%d", i+1)
		}
		if err := tensor.AXPYInPlace(g.biases[i], gs.biases[i], -g.lr); err != nil {
			return errors.Wrapf(err, "updating bias%d", i+1)
		}
	}
	return nil
}

// Step runs one training iteration on a batch: forward, backward, and the
// plain gradient descent update on every parameter.
func (g *Graph) Step(x, y *tensor.Tensor) error {
	if err := g.checkTarget(y); err != nil {
		return err
	}
	c, err := g.forward(x)
	if err != nil {
		return err
	}
	gs, err := g.backward(c, y)
	if err != nil {
		return err
	}
	return g.applyUpdates(gs)
}
