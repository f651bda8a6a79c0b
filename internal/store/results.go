// Package store persists task execution artifacts: a per-task output
// directory holding the state matrix and measurement log, and a SQLite run
// index used by reporting.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/argmaster/cssfinder/internal/model"
	"github.com/argmaster/cssfinder/internal/mtx"
)

// ErrNotFound is returned when no result exists for a task.
var ErrNotFound = errors.New("result not found")

// File names inside a task output directory.
const (
	stateFileName       = "state.mtx"
	correctionsFileName = "corrections.json"
	resultFileName      = "result.json"
)

// Results owns the filesystem layout of task outputs. Concurrent writers
// target disjoint task directories, so no cross-task locking is needed;
// within a task, writes are strictly sequential from the owning worker.
type Results struct {
	root string
}

// NewResults creates a result store rooted at the given output directory.
func NewResults(root string) *Results {
	return &Results{root: root}
}

// Root returns the output root directory.
func (s *Results) Root() string { return s.root }

// TaskWriter appends artifacts for a single task. It is owned by one worker
// and never shared.
type TaskWriter struct {
	dir string
}

// Begin prepares the output directory for a task run. Any artifacts from a
// prior run of the same task are removed wholesale, so a rerun can never
// leave stale partial data behind.
func (s *Results) Begin(dir string) (*TaskWriter, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear task output: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create task output: %w", err)
	}
	return &TaskWriter{dir: dir}, nil
}

// Checkpoint persists the current state matrix and the full measurement
// history. It is called every checkpoint interval and at termination, so
// partial progress stays on disk even when the task later fails.
func (w *TaskWriter) Checkpoint(state *mtx.Matrix, measurements []model.Measurement) error {
	if state != nil {
		if err := mtx.WriteFile(filepath.Join(w.dir, stateFileName), state); err != nil {
			return fmt.Errorf("checkpoint state: %w", err)
		}
	}
	if err := writeJSON(filepath.Join(w.dir, correctionsFileName), measurements); err != nil {
		return fmt.Errorf("checkpoint measurements: %w", err)
	}
	return nil
}

// Finalize writes the result summary after the last iteration.
func (w *TaskWriter) Finalize(res *model.ExecutionResult) error {
	if err := w.Checkpoint(res.FinalState, res.Measurements); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(w.dir, resultFileName), res); err != nil {
		return fmt.Errorf("finalize result: %w", err)
	}
	return nil
}

// Read loads a task's persisted result from its output directory. Returns
// ErrNotFound when the task has never produced a finalized result there.
func (s *Results) Read(dir string) (*model.ExecutionResult, error) {
	raw, err := os.ReadFile(filepath.Join(dir, resultFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no result in %s", ErrNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var res model.ExecutionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	// The final state matrix is optional; a failed run may not have one.
	state, err := mtx.ReadFile(filepath.Join(dir, stateFileName))
	if err == nil {
		res.FinalState = state
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read final state: %w", err)
	}
	return &res, nil
}

// writeJSON writes v through a temp file and rename so readers never observe
// a torn document.
func writeJSON(path string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cssf-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
