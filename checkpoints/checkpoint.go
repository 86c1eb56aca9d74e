package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/graph"
	"github.com/yonikl/cvnn/tensor"
)

const (
	// CheckpointExt is the extension of a saved checkpoint.
	CheckpointExt = ".ckpt"
	// StructureExt is the extension of the topology file written next to
	// each checkpoint.
	StructureExt = ".ckpt.meta"
)

// WeightTensor is one serialized parameter. Complex parameters store the
// real and imaginary parts as parallel slices.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	DType string    `json:"dtype"`
	Real  []float64 `json:"real"`
	Imag  []float64 `json:"imag,omitempty"`
}

// TrainingState captures training progress at save time. Epoch and
// Iteration are strings because the final checkpoint of a run uses the
// literal markers "final" and "valid_loss" instead of counters.
type TrainingState struct {
	Epoch     string  `json:"epoch"`
	Iteration string  `json:"iteration"`
	Loss      float64 `json:"loss"`
}

// CheckpointMetadata identifies the model a checkpoint belongs to.
type CheckpointMetadata struct {
	ModelName string    `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
	Version   string    `json:"version"`
}

// Checkpoint is the full serialized model state.
type Checkpoint struct {
	Metadata CheckpointMetadata `json:"metadata"`
	State    TrainingState      `json:"training_state"`
	Weights  []WeightTensor     `json:"weights"`
}

// FormatCheckpointName builds the checkpoint file stem from the training
// state. Dots in the loss are replaced with commas so the loss never
// collides with the file extension.
func FormatCheckpointName(epoch, iteration string, loss float64) string {
	lossStr := strings.ReplaceAll(strconv.FormatFloat(loss, 'f', -1, 64), ".", ",")
	return fmt.Sprintf("epoch%s-iteration%s-loss%s", epoch, iteration, lossStr)
}

// Saver writes checkpoints for one model into a run's saved_models
// directory.
type Saver struct {
	SaveDir   string
	ModelName string
}

// NewSaver returns a Saver targeting the run context's save directory.
func NewSaver(rc *RunContext) *Saver {
	return &Saver{SaveDir: rc.SaveDir, ModelName: rc.Name}
}

// Save serializes the graph's parameters and training state. It writes
// the checkpoint file plus a topology file, and returns the checkpoint
// path.
func (s *Saver) Save(g *graph.Graph, state TrainingState) (string, error) {
	ckpt := &Checkpoint{
		Metadata: CheckpointMetadata{
			ModelName: s.ModelName,
			CreatedAt: time.Now(),
			Version:   "1.0",
		},
		State: state,
	}
	for _, p := range g.Parameters() {
		wt := WeightTensor{
			Name:  p.Name,
			Shape: append([]int(nil), p.Tensor.Shape...),
			DType: p.Tensor.DType.String(),
		}
		switch p.Tensor.DType {
		case tensor.Float64:
			data, err := p.Tensor.Float64s()
			if err != nil {
				return "", err
			}
			wt.Real = append([]float64(nil), data...)
		case tensor.Complex128:
			data, err := p.Tensor.Complex128s()
			if err != nil {
				return "", err
			}
			wt.Real = make([]float64, len(data))
			wt.Imag = make([]float64, len(data))
			for i, v := range data {
				wt.Real[i] = real(v)
				wt.Imag[i] = imag(v)
			}
		default:
			return "", errors.Errorf("parameter %s has unsupported dtype %s", p.Name, p.Tensor.DType)
		}
		ckpt.Weights = append(ckpt.Weights, wt)
	}

	stem := filepath.Join(s.SaveDir, FormatCheckpointName(state.Epoch, state.Iteration, state.Loss))
	if err := writeJSON(stem+CheckpointExt, ckpt); err != nil {
		return "", errors.Wrap(err, "writing checkpoint")
	}
	structure := g.Structure()
	if err := writeJSON(stem+StructureExt, &structure); err != nil {
		return "", errors.Wrap(err, "writing checkpoint topology")
	}
	return stem + CheckpointExt, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadCheckpoint loads a serialized checkpoint from disk.
func ReadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading checkpoint %s", path)
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, errors.Wrapf(err, "parsing checkpoint %s", path)
	}
	return &ckpt, nil
}

// ReadStructure loads the topology file written next to a checkpoint.
func ReadStructure(path string) (graph.Structure, error) {
	var s graph.Structure
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "reading checkpoint topology %s", path)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "parsing checkpoint topology %s", path)
	}
	return s, nil
}

// ApplyTo loads every stored parameter into a graph built with a matching
// topology.
func (c *Checkpoint) ApplyTo(g *graph.Graph) error {
	for _, wt := range c.Weights {
		dt, err := tensor.ParseDType(wt.DType)
		if err != nil {
			return errors.Wrapf(err, "parameter %s", wt.Name)
		}
		var t *tensor.Tensor
		switch dt {
		case tensor.Float64:
			t, err = tensor.New(wt.Shape, dt, append([]float64(nil), wt.Real...))
		case tensor.Complex128:
			if len(wt.Imag) != len(wt.Real) {
				return errors.Errorf("parameter %s has %d real but %d imaginary values", wt.Name, len(wt.Real), len(wt.Imag))
			}
			data := make([]complex128, len(wt.Real))
			for i := range data {
				data[i] = complex(wt.Real[i], wt.Imag[i])
			}
			t, err = tensor.New(wt.Shape, dt, data)
		}
		if err != nil {
			return errors.Wrapf(err, "rebuilding parameter %s", wt.Name)
		}
		if err := g.SetParameter(wt.Name, t); err != nil {
			return err
		}
	}
	return nil
}
