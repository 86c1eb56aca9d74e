// Package checkpoints manages the on-disk run hierarchy and model
// checkpoints. Every training run owns a directory under
// <base>/<model-name>/run-<timestamp>/ holding a metadata file, a CSV of
// per-epoch results, an event log directory, and saved model checkpoints.
package checkpoints

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/graph"
)

const (
	// MetadataFileName is the per-run metadata file inside the run directory.
	MetadataFileName = "metadata.txt"
	// SavedModelsDirName holds the run's checkpoints.
	SavedModelsDirName = "saved_models"
	// EventLogDirName holds the run's training event log.
	EventLogDirName = "tensorboard_logs"
	// RunDirPrefix prefixes every run directory name.
	RunDirPrefix = "run-"
	// runTimestampLayout is the compact timestamp in run directory names.
	runTimestampLayout = "20060102150405"
)

// RunContextConfig carries the settings recorded in the run metadata.
type RunContextConfig struct {
	BaseDir          string
	Name             string
	LearningRate     float64
	AutomaticRestore bool
	Tensorboard      bool
	Now              time.Time // zero means time.Now
}

// RunContext is one training run's directory tree. Creating it is
// exclusive: a second run in the same second fails rather than mixing two
// runs' artifacts in one directory.
type RunContext struct {
	Name      string
	Timestamp time.Time
	RootDir   string // <base>/<name>/run-<timestamp>
	SaveDir   string
	EventDir  string
	CSVPath   string

	metadataPath string
}

// NewRunContext creates the run directory tree and writes the metadata
// file. The metadata file is created with O_EXCL so an already existing
// run directory for the same timestamp is a hard error.
func NewRunContext(cfg RunContextConfig) (*RunContext, error) {
	if cfg.Name == "" {
		return nil, errors.New("run context requires a model name")
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	root := filepath.Join(cfg.BaseDir, cfg.Name, RunDirPrefix+now.Format(runTimestampLayout))
	rc := &RunContext{
		Name:         cfg.Name,
		Timestamp:    now,
		RootDir:      root,
		SaveDir:      filepath.Join(root, SavedModelsDirName),
		EventDir:     filepath.Join(root, EventLogDirName),
		CSVPath:      filepath.Join(root, cfg.Name+".csv"),
		metadataPath: filepath.Join(root, MetadataFileName),
	}
	for _, dir := range []string{rc.RootDir, rc.SaveDir, rc.EventDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating run directory %s", dir)
		}
	}

	f, err := os.OpenFile(rc.metadataPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Errorf("run directory %s already holds a metadata file, refusing to reuse it", root)
		}
		return nil, errors.Wrap(err, "creating run metadata")
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s\n%s\nautomatic_restore, %t\nTensorboard enabled, %t\nLearning Rate, %g\nWeight initialization, glorot uniform\nRestored, false\n",
		cfg.Name, now.Format(time.RFC3339), cfg.AutomaticRestore, cfg.Tensorboard, cfg.LearningRate)
	if err != nil {
		return nil, errors.Wrap(err, "writing run metadata")
	}
	return rc, nil
}

// appendMetadata appends to an existing metadata file. A missing file is
// an error: metadata is only ever written inside a created run context.
func (rc *RunContext) appendMetadata(text string) error {
	if _, err := os.Stat(rc.metadataPath); err != nil {
		return errors.Wrapf(err, "run metadata missing at %s", rc.metadataPath)
	}
	f, err := os.OpenFile(rc.metadataPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening run metadata for append")
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return errors.Wrap(err, "appending run metadata")
	}
	return nil
}

// AppendGraphStructure records a freshly built graph's layer descriptions
// in the run metadata. It satisfies graph.StructureSink.
func (rc *RunContext) AppendGraphStructure(layers []graph.LayerDescription) error {
	text := ""
	for _, l := range layers {
		text += l.String() + "\n"
	}
	return rc.appendMetadata(text)
}

// MarkRestored records that this run continues from an earlier checkpoint.
func (rc *RunContext) MarkRestored(checkpointPath string) error {
	return rc.appendMetadata(fmt.Sprintf("Restored, %s\n", checkpointPath))
}
