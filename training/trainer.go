// Package training drives the full model lifecycle: graph construction,
// the epoch/batch training loop, periodic checkpointing, per-epoch CSV
// results, and evaluation helpers.
package training

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/yonikl/cvnn/checkpoints"
	"github.com/yonikl/cvnn/dataset"
	"github.com/yonikl/cvnn/graph"
	"github.com/yonikl/cvnn/logging"
	"github.com/yonikl/cvnn/tensor"
)

// State tracks where a model is in its lifecycle.
type State int

const (
	// Unbuilt means no graph exists yet.
	Unbuilt State = iota
	// Built means the graph exists but training has not started.
	Built
	// Training means the training loop is running.
	Training
	// Idle means at least one training run has completed.
	Idle
	// Finalized means the model has been closed and accepts no more work.
	Finalized
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "Unbuilt"
	case Built:
		return "Built"
	case Training:
		return "Training"
	case Idle:
		return "Idle"
	case Finalized:
		return "Finalized"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ModelConfig contains the model-wide settings recorded in the run
// metadata.
type ModelConfig struct {
	Name             string
	BaseDir          string
	LearningRate     float64
	AutomaticRestore bool
	Tensorboard      bool
	Verbose          bool
	SaveLossAcc      bool
	LoggingLevel     string
	InputDType       tensor.DType
	OutputDType      tensor.DType
	Seed             uint64
}

// DefaultModelConfig returns the conventional settings for a named model.
func DefaultModelConfig(name string) ModelConfig {
	return ModelConfig{
		Name:             name,
		BaseDir:          "log",
		LearningRate:     0.001,
		AutomaticRestore: true,
		Tensorboard:      true,
		Verbose:          true,
		SaveLossAcc:      true,
		LoggingLevel:     "INFO",
		InputDType:       tensor.Complex128,
		OutputDType:      tensor.Float64,
	}
}

// Model owns one named model and its run directory. Each Model carries its
// own graph; two models never share state.
type Model struct {
	cfg    ModelConfig
	logger *logging.Logger
	run    *checkpoints.RunContext
	saver  *checkpoints.Saver
	graph  *graph.Graph
	state  State

	restoredFrom string

	events *EventWriter
	plots  *PlottingService

	trainLoss []float64
	trainAcc  []float64
	testLoss  []float64
	testAcc   []float64
}

// NewModel creates the run context for a new training run and, when
// automatic restore is on, loads the most recent checkpoint found under
// the base directory. A restored model starts Built; otherwise Unbuilt.
func NewModel(cfg ModelConfig) (*Model, error) {
	level, err := logging.ParseLevel(cfg.LoggingLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level, os.Stderr)

	run, err := checkpoints.NewRunContext(checkpoints.RunContextConfig{
		BaseDir:          cfg.BaseDir,
		Name:             cfg.Name,
		LearningRate:     cfg.LearningRate,
		AutomaticRestore: cfg.AutomaticRestore,
		Tensorboard:      cfg.Tensorboard,
	})
	if err != nil {
		return nil, err
	}

	m := &Model{
		cfg:    cfg,
		logger: logger,
		run:    run,
		saver:  checkpoints.NewSaver(run),
		state:  Unbuilt,
		plots:  NewPlottingService(DefaultPlottingServiceConfig()),
	}

	if cfg.AutomaticRestore {
		g, ckptPath, err := checkpoints.Restore(cfg.BaseDir, run.RootDir, logger)
		if err != nil {
			return nil, errors.Wrap(err, "automatic restore")
		}
		if g != nil {
			m.graph = g
			m.restoredFrom = ckptPath
			m.state = Built
			if err := run.MarkRestored(ckptPath); err != nil {
				return nil, err
			}
			logger.Infof("restored model %s from %s", cfg.Name, ckptPath)
		}
	}

	if cfg.Tensorboard {
		ev, err := NewEventWriter(run.EventDir)
		if err != nil {
			return nil, err
		}
		m.events = ev
	}
	return m, nil
}

// State reports the model's lifecycle state.
func (m *Model) State() State { return m.state }

// RestoredFrom returns the checkpoint path this model was restored from,
// or an empty string for a fresh model.
func (m *Model) RestoredFrom() string { return m.restoredFrom }

// RunDir returns the root of this run's directory tree.
func (m *Model) RunDir() string { return m.run.RootDir }

// Graph exposes the underlying computation graph, nil while Unbuilt.
func (m *Model) Graph() *graph.Graph { return m.graph }

// CreateMLPGraph builds a multilayer perceptron from a shape spec. When
// the model was restored from a checkpoint the call is a no-op with a
// warning: the restored topology wins.
func (m *Model) CreateMLPGraph(shape []graph.Layer, loss interface{}) error {
	if m.state == Finalized {
		return errors.New("model is finalized")
	}
	if m.restoredFrom != "" {
		m.logger.Warningf("model %s was restored from %s, ignoring new graph definition", m.cfg.Name, m.restoredFrom)
		return nil
	}
	if m.graph != nil {
		return errors.New("model already has a graph")
	}
	g, err := graph.Build(shape, loss, graph.Config{
		InputDType:   m.cfg.InputDType,
		OutputDType:  m.cfg.OutputDType,
		LearningRate: m.cfg.LearningRate,
		Seed:         m.cfg.Seed,
		Logger:       m.logger,
	}, m.run)
	if err != nil {
		return err
	}
	m.graph = g
	m.state = Built
	return nil
}

// CreateLinearRegressionGraph builds the degenerate single-transform
// graph: identity activations and the mean square objective.
func (m *Model) CreateLinearRegressionGraph(inputSize, outputSize int) error {
	shape := []graph.Layer{
		{Width: inputSize, Activation: "linear"},
		{Width: outputSize, Activation: "linear"},
	}
	return m.CreateMLPGraph(shape, "mean_square")
}

// Predict runs a forward pass on new data.
func (m *Model) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	if m.graph == nil {
		return nil, errors.New("predict requires a built graph")
	}
	return m.graph.Output(x)
}

// ComputeLoss evaluates the training objective without updating weights.
func (m *Model) ComputeLoss(x, y *tensor.Tensor) (float64, error) {
	if m.graph == nil {
		return 0, errors.New("loss requires a built graph")
	}
	return m.graph.Loss(x, y)
}

// ComputeAccuracy evaluates categorical accuracy without updating weights.
func (m *Model) ComputeAccuracy(x, y *tensor.Tensor) (float64, error) {
	if m.graph == nil {
		return 0, errors.New("accuracy requires a built graph")
	}
	return m.graph.Accuracy(x, y)
}

// ConfusionMatrix evaluates predictions against labels class by class.
func (m *Model) ConfusionMatrix(x, y *tensor.Tensor) (*ConfusionMatrix, error) {
	if m.graph == nil {
		return nil, errors.New("confusion matrix requires a built graph")
	}
	pred, err := m.graph.Output(x)
	if err != nil {
		return nil, err
	}
	cm := NewConfusionMatrix(m.graph.OutputWidth())
	if err := cm.Update(pred, y); err != nil {
		return nil, err
	}
	return cm, nil
}

// Train runs the full training loop: per-epoch shuffling, full batches
// only, periodic checkpoints and events, per-epoch CSV results, and a
// final validation checkpoint. When normalize is set, both datasets are
// rescaled in place before training; by default the data is used as given.
func (m *Model) Train(trainSet, testSet *dataset.Dataset, epochs, batchSize, displayFreq int, normalize bool) error {
	switch m.state {
	case Unbuilt:
		return errors.New("train requires a built graph")
	case Training:
		return errors.New("model is already training")
	case Finalized:
		return errors.New("model is finalized")
	}
	if epochs <= 0 {
		return errors.Errorf("epochs must be positive, got %d", epochs)
	}
	if batchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if batchSize > trainSet.Rows() {
		return errors.Errorf("batch size %d exceeds training set size %d", batchSize, trainSet.Rows())
	}
	if displayFreq <= 0 {
		displayFreq = 1000
	}
	m.state = Training
	// A failed run must not wedge the model in Training; the success path
	// below moves to Idle before returning.
	defer func() {
		if m.state == Training {
			m.state = Built
		}
	}()

	if normalize {
		if err := trainSet.Normalize(); err != nil {
			return err
		}
		if err := testSet.Normalize(); err != nil {
			return err
		}
	}

	// A run that already holds checkpoints resumes from its newest one
	// instead of the in-memory weights.
	if ckptPath, ok, err := checkpoints.FindLatestIn(m.run.SaveDir); err != nil {
		return err
	} else if ok {
		ckpt, err := checkpoints.ReadCheckpoint(ckptPath)
		if err != nil {
			return err
		}
		if err := ckpt.ApplyTo(m.graph); err != nil {
			return errors.Wrapf(err, "loading initial weights from %s", ckptPath)
		}
		m.logger.Infof("loaded initial weights from %s", ckptPath)
	}

	// Initial checkpoint before any update, so a run that dies early can
	// still be restored at its starting weights.
	loss, acc, err := m.graph.Evaluate(testSet.X, testSet.Y)
	if err != nil {
		return errors.Wrap(err, "initial validation")
	}
	if _, err := m.saver.Save(m.graph, checkpoints.TrainingState{Epoch: "0", Iteration: "0", Loss: loss}); err != nil {
		return err
	}
	m.logger.Infof("initial validation: loss %g, accuracy %g", loss, acc)

	src := rand.NewSource(m.cfg.Seed + 1)
	numTrIter := trainSet.Rows() / batchSize
	for epoch := 0; epoch < epochs; epoch++ {
		if err := trainSet.Shuffle(src); err != nil {
			return err
		}
		var pb *ProgressBar
		if m.cfg.Verbose {
			pb = NewProgressBar(fmt.Sprintf("Epoch %d/%d", epoch+1, epochs), numTrIter)
		}
		for it := 0; it < numTrIter; it++ {
			x, y, err := trainSet.Batch(it, batchSize)
			if err != nil {
				return err
			}
			step := epoch*numTrIter + it
			if step%displayFreq == 0 {
				batchLoss, batchAcc, err := m.graph.Evaluate(x, y)
				if err != nil {
					return err
				}
				state := checkpoints.TrainingState{
					Epoch:     fmt.Sprintf("%d", epoch),
					Iteration: fmt.Sprintf("%d", it),
					Loss:      batchLoss,
				}
				if _, err := m.saver.Save(m.graph, state); err != nil {
					return err
				}
				if m.events != nil {
					if err := m.events.WriteScalar("train/loss", step, batchLoss); err != nil {
						return err
					}
					if err := m.events.WriteScalar("train/accuracy", step, batchAcc); err != nil {
						return err
					}
				}
				if pb != nil {
					pb.Update(it, map[string]float64{"loss": batchLoss, "accuracy": batchAcc})
				}
			}
			if err := m.graph.Step(x, y); err != nil {
				return errors.Wrapf(err, "epoch %d iteration %d", epoch, it)
			}
			if pb != nil {
				pb.Update(it+1, nil)
			}
		}
		if pb != nil {
			pb.Finish()
		}
		if err := m.recordEpoch(trainSet, testSet); err != nil {
			return err
		}
	}

	finalLoss, finalAcc, err := m.graph.Evaluate(testSet.X, testSet.Y)
	if err != nil {
		return errors.Wrap(err, "final validation")
	}
	state := checkpoints.TrainingState{Epoch: "final", Iteration: "valid_loss", Loss: finalLoss}
	if _, err := m.saver.Save(m.graph, state); err != nil {
		return err
	}
	m.logger.Infof("final validation: loss %g, accuracy %g", finalLoss, finalAcc)
	m.state = Idle
	return nil
}

// recordEpoch evaluates both sets, appends a CSV row, and extends the
// in-memory history used for plotting.
func (m *Model) recordEpoch(trainSet, testSet *dataset.Dataset) error {
	trLoss, trAcc, err := m.graph.Evaluate(trainSet.X, trainSet.Y)
	if err != nil {
		return err
	}
	teLoss, teAcc, err := m.graph.Evaluate(testSet.X, testSet.Y)
	if err != nil {
		return err
	}
	m.trainLoss = append(m.trainLoss, trLoss)
	m.trainAcc = append(m.trainAcc, trAcc)
	m.testLoss = append(m.testLoss, teLoss)
	m.testAcc = append(m.testAcc, teAcc)
	if !m.cfg.SaveLossAcc {
		return nil
	}
	return m.appendCSV(trLoss, trAcc, teLoss, teAcc)
}

func (m *Model) appendCSV(trLoss, trAcc, teLoss, teAcc float64) error {
	needHeader := false
	if _, err := os.Stat(m.run.CSVPath); os.IsNotExist(err) {
		needHeader = true
	}
	f, err := os.OpenFile(m.run.CSVPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening results CSV")
	}
	defer f.Close()
	if needHeader {
		if _, err := f.WriteString("train loss,train acc,test loss,test acc\n"); err != nil {
			return errors.Wrap(err, "writing CSV header")
		}
	}
	if _, err := fmt.Fprintf(f, "%g,%g,%g,%g\n", trLoss, trAcc, teLoss, teAcc); err != nil {
		return errors.Wrap(err, "writing CSV row")
	}
	return nil
}

// PlotLoss sends the loss history to the plotting sidecar. Without
// SaveLossAcc there is no history to plot, so the call only warns.
func (m *Model) PlotLoss() error {
	if !m.cfg.SaveLossAcc {
		m.logger.Warningf("loss history was not kept, nothing to plot")
		return nil
	}
	return m.plots.SendCurves(m.cfg.Name+" loss", "loss", m.trainLoss, m.testLoss)
}

// PlotAcc sends the accuracy history to the plotting sidecar.
func (m *Model) PlotAcc() error {
	if !m.cfg.SaveLossAcc {
		m.logger.Warningf("accuracy history was not kept, nothing to plot")
		return nil
	}
	return m.plots.SendCurves(m.cfg.Name+" accuracy", "accuracy", m.trainAcc, m.testAcc)
}

// History returns the per-epoch loss and accuracy vectors in the order
// train loss, train accuracy, test loss, test accuracy.
func (m *Model) History() (trainLoss, trainAcc, testLoss, testAcc []float64) {
	return m.trainLoss, m.trainAcc, m.testLoss, m.testAcc
}

// Close finalizes the model. Cleanup failures are logged, not returned:
// a model that trained successfully should not fail at the very end.
func (m *Model) Close() {
	if m.state == Finalized {
		return
	}
	if m.events != nil {
		if err := m.events.Close(); err != nil {
			m.logger.Errorf("closing event log: %v", err)
		}
	}
	m.state = Finalized
}
