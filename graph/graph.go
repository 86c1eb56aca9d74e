// Package graph builds and evaluates layered feed-forward computation
// graphs over real- or complex-valued parameters. A Graph is an explicit,
// per-instance object: two models never share graph state.
package graph

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/yonikl/cvnn/activations"
	"github.com/yonikl/cvnn/logging"
	"github.com/yonikl/cvnn/losses"
	"github.com/yonikl/cvnn/tensor"
)

// UpdateOpPrefix is the naming convention for parameter update operations.
// Restored graphs identify their update ops by this prefix.
const UpdateOpPrefix = "learning_rule/assign_"

var (
	// ErrShapeTooShort is returned when a shape spec has fewer than two layers.
	ErrShapeTooShort = errors.New("shape spec must contain at least two layers")
	// ErrDomainMismatch is returned when a complex output is requested for a
	// real-valued input domain.
	ErrDomainMismatch = errors.New("complex output domain requires a complex input domain")
)

// Layer is one entry of a shape spec: a width plus an activation, given
// either as a catalog name or as an activations.Activation value.
type Layer struct {
	Width      int
	Activation interface{}
}

// LayerDescription is the human-readable record of one layer, appended to
// the run metadata when the graph is built.
type LayerDescription struct {
	Role       string // "input", "hidden" or "output"
	Index      int
	Width      int
	Activation string
}

func (d LayerDescription) String() string {
	if d.Role == "hidden" {
		return fmt.Sprintf("hidden layer: %d, %d; act_fun = %s", d.Index, d.Width, d.Activation)
	}
	return fmt.Sprintf("%s layer: %d; act_fun = %s", d.Role, d.Width, d.Activation)
}

// StructureSink receives the layer descriptions of a freshly built graph.
// The run context implements this to append to its metadata file.
type StructureSink interface {
	AppendGraphStructure([]LayerDescription) error
}

// Config carries the graph-wide build settings.
type Config struct {
	InputDType   tensor.DType
	OutputDType  tensor.DType
	LearningRate float64
	Seed         uint64
	Logger       *logging.Logger
}

// DefaultConfig matches the conventional complex-in, real-out classifier.
func DefaultConfig() Config {
	return Config{
		InputDType:   tensor.Complex128,
		OutputDType:  tensor.Float64,
		LearningRate: 0.001,
	}
}

type updateOp struct {
	name  string
	param *tensor.Tensor
}

// Graph is the full set of constructed tensors and operations: layer
// parameters, forward chain, loss, accuracy, and per-parameter update ops.
// Topology is fixed after construction; only parameter values change.
type Graph struct {
	widths      []int
	inputDType  tensor.DType
	outputDType tensor.DType
	lr          float64

	inputAct activations.Activation
	acts     []activations.Activation
	actNames []string

	weights []*tensor.Tensor
	biases  []*tensor.Tensor
	updates []updateOp

	loss losses.Loss

	logger *logging.Logger
}

// Build constructs a graph from a shape spec. The first layer entry is the
// input layer; each following entry adds one dense transform plus its
// activation. When sink is non-nil, the layer descriptions are appended to
// it; a sink failure aborts the build.
func Build(shape []Layer, lossFn interface{}, cfg Config, sink StructureSink) (*Graph, error) {
	if len(shape) < 2 {
		return nil, ErrShapeTooShort
	}
	for i, l := range shape {
		if l.Width <= 0 {
			return nil, errors.Errorf("layer %d has non-positive width %d", i, l.Width)
		}
	}
	if cfg.OutputDType.IsComplex() && !cfg.InputDType.IsComplex() {
		return nil, ErrDomainMismatch
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.Errorf("learning rate must be positive, got %g", cfg.LearningRate)
	}

	loss, err := resolveLoss(lossFn)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		inputDType:  cfg.InputDType,
		outputDType: cfg.OutputDType,
		lr:          cfg.LearningRate,
		loss:        loss,
		logger:      cfg.Logger,
	}
	if g.logger == nil {
		g.logger = logging.Default()
	}

	g.inputAct, _, err = g.resolveActivation(shape[0].Activation)
	if err != nil {
		return nil, err
	}

	src := rand.NewSource(cfg.Seed)
	for i := 0; i < len(shape)-1; i++ {
		act, name, err := g.resolveActivation(shape[i+1].Activation)
		if err != nil {
			return nil, err
		}
		g.acts = append(g.acts, act)
		g.actNames = append(g.actNames, name)

		w, err := tensor.GlorotUniform(shape[i].Width, shape[i+1].Width, cfg.InputDType, src)
		if err != nil {
			return nil, errors.Wrapf(err, "initializing weights for layer %d", i+1)
		}
		b, err := tensor.Zeros([]int{shape[i+1].Width}, cfg.InputDType)
		if err != nil {
			return nil, errors.Wrapf(err, "initializing bias for layer %d", i+1)
		}
		g.weights = append(g.weights, w)
		g.biases = append(g.biases, b)
	}
	for i := range shape {
		g.widths = append(g.widths, shape[i].Width)
	}
	g.buildUpdateOps()

	if sink != nil {
		if err := sink.AppendGraphStructure(g.Describe()); err != nil {
			return nil, errors.Wrap(err, "recording graph structure")
		}
	}
	return g, nil
}

// resolveActivation accepts a catalog name or an Activation value. Unknown
// names fall back to identity with a warning; values not originating from
// the activations package are a fatal error.
func (g *Graph) resolveActivation(v interface{}) (activations.Activation, string, error) {
	switch a := v.(type) {
	case nil:
		return activations.Linear(), "linear", nil
	case string:
		if act, ok := activations.Resolve(a); ok {
			return act, a, nil
		}
		g.logger.Warningf("activation %q is not in the catalog, using identity", a)
		return activations.Linear(), a, nil
	case activations.Activation:
		if !a.Valid() {
			return activations.Activation{}, "", errors.New("activation does not originate from the activations catalog")
		}
		return a, a.Name(), nil
	default:
		return activations.Activation{}, "", errors.Errorf("unsupported activation specifier %T", v)
	}
}

// resolveLoss accepts a catalog name or a Loss value. Unknown names have no
// fallback and are fatal.
func resolveLoss(v interface{}) (losses.Loss, error) {
	switch l := v.(type) {
	case string:
		return losses.Resolve(l)
	case losses.Loss:
		if !l.Valid() {
			return losses.Loss{}, errors.New("loss does not originate from the losses catalog")
		}
		return l, nil
	default:
		return losses.Loss{}, errors.Errorf("unsupported loss specifier %T", v)
	}
}

func (g *Graph) buildUpdateOps() {
	g.updates = g.updates[:0]
	for i := range g.weights {
		g.updates = append(g.updates,
			updateOp{name: fmt.Sprintf("%sweights%d", UpdateOpPrefix, i+1), param: g.weights[i]},
			updateOp{name: fmt.Sprintf("%sbias%d", UpdateOpPrefix, i+1), param: g.biases[i]},
		)
	}
}

// InputWidth returns the declared width of the input layer.
func (g *Graph) InputWidth() int { return g.widths[0] }

// OutputWidth returns the declared width of the output layer.
func (g *Graph) OutputWidth() int { return g.widths[len(g.widths)-1] }

// InputDType returns the numeric domain of the input placeholder.
func (g *Graph) InputDType() tensor.DType { return g.inputDType }

// OutputDType returns the numeric domain of the output.
func (g *Graph) OutputDType() tensor.DType { return g.outputDType }

// LossName returns the catalog name of the training objective.
func (g *Graph) LossName() string { return g.loss.Name() }

// LearningRate returns the fixed scalar learning rate of the update rule.
func (g *Graph) LearningRate() float64 { return g.lr }

// UpdateOpNames lists the named per-parameter update operations.
func (g *Graph) UpdateOpNames() []string {
	names := make([]string, len(g.updates))
	for i, op := range g.updates {
		names[i] = op.name
	}
	return names
}

// Describe returns the per-layer descriptions in declaration order.
func (g *Graph) Describe() []LayerDescription {
	descs := make([]LayerDescription, 0, len(g.widths))
	for i, w := range g.widths {
		d := LayerDescription{Index: i, Width: w}
		switch i {
		case 0:
			d.Role = "input"
			d.Activation = g.inputAct.Name()
		case len(g.widths) - 1:
			d.Role = "output"
			d.Activation = g.actNames[i-1]
		default:
			d.Role = "hidden"
			d.Activation = g.actNames[i-1]
		}
		descs = append(descs, d)
	}
	return descs
}

// NamedParameter exposes one learnable tensor under its graph name.
type NamedParameter struct {
	Name   string
	Tensor *tensor.Tensor
}

// Parameters returns all learnable tensors in a stable order. The tensors
// are the live graph parameters, not copies.
func (g *Graph) Parameters() []NamedParameter {
	params := make([]NamedParameter, 0, 2*len(g.weights))
	for i := range g.weights {
		params = append(params,
			NamedParameter{Name: fmt.Sprintf("weights%d", i+1), Tensor: g.weights[i]},
			NamedParameter{Name: fmt.Sprintf("bias%d", i+1), Tensor: g.biases[i]},
		)
	}
	return params
}

// SetParameter overwrites a parameter's values by name. Shape and dtype
// must match the constructed graph.
func (g *Graph) SetParameter(name string, t *tensor.Tensor) error {
	for _, p := range g.Parameters() {
		if p.Name != name {
			continue
		}
		if p.Tensor.DType != t.DType {
			return errors.Errorf("parameter %s dtype mismatch: graph %s, checkpoint %s", name, p.Tensor.DType, t.DType)
		}
		if p.Tensor.NumElems != t.NumElems {
			return errors.Errorf("parameter %s shape mismatch: graph %v, checkpoint %v", name, p.Tensor.Shape, t.Shape)
		}
		switch p.Tensor.DType {
		case tensor.Float64:
			copy(p.Tensor.Data.([]float64), t.Data.([]float64))
		case tensor.Complex128:
			copy(p.Tensor.Data.([]complex128), t.Data.([]complex128))
		}
		return nil
	}
	return errors.Errorf("graph has no parameter named %q", name)
}
