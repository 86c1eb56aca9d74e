package checkpoints

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/graph"
	"github.com/yonikl/cvnn/logging"
)

// candidate is one restorable checkpoint found on disk.
type candidate struct {
	ckptPath string
	metaPath string
	modTime  time.Time
}

// findCandidates walks <base>/*/run-*/saved_models/ for checkpoints with a
// topology file, skipping the excluded run directory. Recency uses file
// modification time, the closest available proxy for save time.
func findCandidates(baseDir, excludeRunDir string) ([]candidate, error) {
	pattern := filepath.Join(baseDir, "*", RunDirPrefix+"*", SavedModelsDirName, "*"+CheckpointExt)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "scanning for checkpoints")
	}
	var out []candidate
	for _, m := range matches {
		if strings.HasSuffix(m, StructureExt) {
			continue
		}
		if excludeRunDir != "" {
			runDir := filepath.Dir(filepath.Dir(m))
			if sameFile(runDir, excludeRunDir) {
				continue
			}
		}
		metaPath := strings.TrimSuffix(m, CheckpointExt) + StructureExt
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if _, err := os.Stat(metaPath); err != nil {
			continue
		}
		out = append(out, candidate{ckptPath: m, metaPath: metaPath, modTime: info.ModTime()})
	}
	return out, nil
}

func sameFile(a, b string) bool {
	aAbs, errA := filepath.Abs(a)
	bAbs, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return aAbs == bAbs
}

// FindLatest returns the most recent restorable checkpoint under baseDir,
// excluding the given run directory. ok is false when no checkpoint
// exists, which is not an error.
func FindLatest(baseDir, excludeRunDir string) (ckptPath string, ok bool, err error) {
	cands, err := findCandidates(baseDir, excludeRunDir)
	if err != nil || len(cands) == 0 {
		return "", false, err
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.modTime.After(best.modTime) {
			best = c
		}
	}
	return best.ckptPath, true, nil
}

// Restore rebuilds the most recent checkpointed graph under baseDir,
// excluding the current run directory. It returns (nil, "", nil) when
// there is nothing to restore.
func Restore(baseDir, excludeRunDir string, logger *logging.Logger) (*graph.Graph, string, error) {
	ckptPath, ok, err := FindLatest(baseDir, excludeRunDir)
	if err != nil || !ok {
		return nil, "", err
	}
	structure, err := ReadStructure(strings.TrimSuffix(ckptPath, CheckpointExt) + StructureExt)
	if err != nil {
		return nil, "", err
	}
	g, err := graph.FromStructure(structure, logger)
	if err != nil {
		return nil, "", errors.Wrapf(err, "rebuilding graph from %s", ckptPath)
	}
	ckpt, err := ReadCheckpoint(ckptPath)
	if err != nil {
		return nil, "", err
	}
	if err := ckpt.ApplyTo(g); err != nil {
		return nil, "", errors.Wrapf(err, "loading weights from %s", ckptPath)
	}
	return g, ckptPath, nil
}

// FindLatestIn returns the newest checkpoint inside a single saved_models
// directory, used to reload a run's own initial weights.
func FindLatestIn(saveDir string) (string, bool, error) {
	matches, err := filepath.Glob(filepath.Join(saveDir, "*"+CheckpointExt))
	if err != nil {
		return "", false, errors.Wrap(err, "scanning save directory")
	}
	var best string
	var bestTime time.Time
	for _, m := range matches {
		if strings.HasSuffix(m, StructureExt) {
			continue
		}
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best, bestTime = m, info.ModTime()
		}
	}
	return best, best != "", nil
}
