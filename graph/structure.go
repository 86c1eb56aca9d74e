package graph

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/logging"
	"github.com/yonikl/cvnn/tensor"
)

// StructureLayer is one layer entry of a serialized topology.
type StructureLayer struct {
	Width      int    `json:"width"`
	Activation string `json:"activation"`
}

// Structure is the JSON-serializable topology of a graph: everything
// needed to rebuild an equivalent graph before loading weights into it.
type Structure struct {
	Layers       []StructureLayer `json:"layers"`
	InputDType   string           `json:"input_dtype"`
	OutputDType  string           `json:"output_dtype"`
	Loss         string           `json:"loss"`
	LearningRate float64          `json:"learning_rate"`
	UpdateOps    []string         `json:"update_ops"`
}

// Structure captures the graph topology for serialization.
func (g *Graph) Structure() Structure {
	s := Structure{
		InputDType:   g.inputDType.String(),
		OutputDType:  g.outputDType.String(),
		Loss:         g.loss.Name(),
		LearningRate: g.lr,
		UpdateOps:    g.UpdateOpNames(),
	}
	s.Layers = append(s.Layers, StructureLayer{Width: g.widths[0], Activation: g.inputAct.Name()})
	for i := 1; i < len(g.widths); i++ {
		s.Layers = append(s.Layers, StructureLayer{Width: g.widths[i], Activation: g.actNames[i-1]})
	}
	return s
}

// FromStructure rebuilds a graph from a serialized topology. Parameters
// are freshly initialized; the caller loads checkpoint weights afterwards.
// Update ops are recognized by their naming convention, so structures
// written by older runs with extra ops still restore cleanly.
func FromStructure(s Structure, logger *logging.Logger) (*Graph, error) {
	if len(s.Layers) < 2 {
		return nil, ErrShapeTooShort
	}
	inDT, err := tensor.ParseDType(s.InputDType)
	if err != nil {
		return nil, errors.Wrap(err, "restoring input dtype")
	}
	outDT, err := tensor.ParseDType(s.OutputDType)
	if err != nil {
		return nil, errors.Wrap(err, "restoring output dtype")
	}
	for _, op := range s.UpdateOps {
		if !strings.HasPrefix(op, UpdateOpPrefix) {
			return nil, errors.Errorf("update op %q does not follow the %s naming convention", op, UpdateOpPrefix)
		}
	}
	shape := make([]Layer, len(s.Layers))
	for i, l := range s.Layers {
		shape[i] = Layer{Width: l.Width, Activation: l.Activation}
	}
	cfg := Config{
		InputDType:   inDT,
		OutputDType:  outDT,
		LearningRate: s.LearningRate,
		Logger:       logger,
	}
	return Build(shape, s.Loss, cfg, nil)
}
