// Package executor drives a single task to completion: it constructs a job
// through the resolved backend handle, runs the iterative refinement loop,
// checkpoints progress, and records timing and termination metadata.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/argmaster/cssfinder/internal/backend"
	"github.com/argmaster/cssfinder/internal/model"
	"github.com/argmaster/cssfinder/internal/mtx"
	"github.com/argmaster/cssfinder/internal/project"
	"github.com/argmaster/cssfinder/internal/store"
)

// DefaultCheckpointInterval is the iteration count between durable
// checkpoints when the caller does not override it.
const DefaultCheckpointInterval = 50

// ExecutionError wraps a failure raised by the backend while constructing or
// stepping a job. It terminates only the task it belongs to.
type ExecutionError struct {
	TaskName string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %q: backend execution: %v", e.TaskName, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RunContext carries the per-run collaborators a task execution needs. It
// replaces ambient global state so tests can inject isolated contexts.
type RunContext struct {
	RunID   string
	Logger  *slog.Logger
	Results *store.Results

	// OnMeasurement, when set, receives every checkpointed measurement.
	OnMeasurement func(taskName string, m model.Measurement)
}

// Execute runs one task to completion through the given backend handle.
//
// The loop stops when the corrected value reaches the task's threshold
// (converged), when the iteration cap is hit (iteration-limit), or at the
// next checkpoint boundary after ctx is cancelled (cancelled). Cancelled
// tasks still return a result so their partial progress is reported rather
// than discarded. Backend failures return an *ExecutionError; anything
// already checkpointed stays on disk for inspection.
func Execute(ctx context.Context, rc RunContext, task *project.Task, handle *backend.Handle, checkpointInterval int) (*model.ExecutionResult, error) {
	if checkpointInterval < 1 {
		checkpointInterval = DefaultCheckpointInterval
	}
	logger := rc.Logger.With("task", task.Name, "run_id", rc.RunID)

	job, err := buildJob(task, handle)
	if err != nil {
		return nil, err
	}

	writer, err := rc.Results.Begin(task.OutputDir())
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", task.Name, err)
	}

	logger.Info("task started",
		"mode", task.Mode,
		"backend", handle.Name,
		"precision", task.Precision,
		"max_iterations", task.MaxIterations,
	)

	start := time.Now()
	var (
		measurements []model.Measurement
		value        float64
		iterations   int
	)
	termination := model.TerminationIterationLimit

	record := func(i int, v float64) model.Measurement {
		m := model.Measurement{Iteration: i, Timestamp: time.Now().UTC(), Value: v}
		measurements = append(measurements, m)
		if rc.OnMeasurement != nil {
			rc.OnMeasurement(task.Name, m)
		}
		return m
	}

loop:
	for i := 1; i <= task.MaxIterations; i++ {
		v, err := job.Step(ctx)
		if err != nil {
			logger.Error("backend step failed", "iteration", i, "error", err)
			return nil, &ExecutionError{TaskName: task.Name, Err: err}
		}
		value = v
		iterations = i

		switch {
		case v <= task.Threshold:
			termination = model.TerminationConverged
			record(i, v)
			break loop
		case i%checkpointInterval == 0:
			record(i, v)
			if err := writer.Checkpoint(job.State(), measurements); err != nil {
				return nil, fmt.Errorf("task %q: %w", task.Name, err)
			}
			logger.Debug("checkpoint",
				"iteration", i,
				"value", v,
				"progress_pct", float64(i)/float64(task.MaxIterations)*100,
			)
			// Cancellation is observed at checkpoint boundaries only, so a
			// cancelled task always leaves a consistent last checkpoint.
			if ctx.Err() != nil {
				termination = model.TerminationCancelled
				break loop
			}
		case i == task.MaxIterations:
			record(i, v)
		}
	}

	res := &model.ExecutionResult{
		TaskName:     task.Name,
		Termination:  termination,
		Value:        value,
		Iterations:   iterations,
		Elapsed:      time.Since(start),
		Measurements: measurements,
		FinalState:   job.State(),
	}
	if err := writer.Finalize(res); err != nil {
		return nil, fmt.Errorf("task %q: %w", task.Name, err)
	}

	logger.Info("task finished",
		"termination", termination,
		"iterations", iterations,
		"value", value,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// buildJob loads the task's matrix resources and constructs the backend job.
func buildJob(task *project.Task, handle *backend.Handle) (backend.Job, error) {
	state, err := mtx.ReadFile(task.StateFile)
	if err != nil {
		return nil, fmt.Errorf("task %q: load state: %w", task.Name, err)
	}

	depth, quantity := task.Depth, task.Quantity
	if depth == 0 {
		depth, quantity, err = deduceDimensions(task.Mode, state.Size)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", task.Name, err)
		}
	}

	symmetries := make([][]*mtx.Matrix, len(task.Symmetries))
	for i, row := range task.Symmetries {
		symmetries[i] = make([]*mtx.Matrix, len(row))
		for j, file := range row {
			symmetries[i][j], err = mtx.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("task %q: load symmetry: %w", task.Name, err)
			}
		}
	}
	var projection *mtx.Matrix
	if task.Projection != "" {
		projection, err = mtx.ReadFile(task.Projection)
		if err != nil {
			return nil, fmt.Errorf("task %q: load projection: %w", task.Name, err)
		}
	}

	job, err := handle.NewJob(backend.JobSpec{
		TaskName:   task.Name,
		Mode:       task.Mode,
		Precision:  task.Precision,
		State:      state,
		Depth:      depth,
		Quantity:   quantity,
		Visibility: task.Visibility,
		Symmetries: symmetries,
		Projection: projection,
	})
	if err != nil {
		return nil, &ExecutionError{TaskName: task.Name, Err: err}
	}
	return job, nil
}
