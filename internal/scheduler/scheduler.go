// Package scheduler fans a project's tasks out across a bounded worker pool,
// resolving backends up front and recording every outcome.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/argmaster/cssfinder/internal/backend"
	"github.com/argmaster/cssfinder/internal/executor"
	"github.com/argmaster/cssfinder/internal/model"
	"github.com/argmaster/cssfinder/internal/project"
	"github.com/argmaster/cssfinder/internal/store"
)

// Options tune one scheduling run.
type Options struct {
	// MaxWorkers bounds concurrent task executions. Zero means one worker per
	// logical CPU.
	MaxWorkers int
	// CheckpointInterval is passed through to the executor; zero selects the
	// executor default.
	CheckpointInterval int
	// ElevatePriority raises process CPU and IO priority once per run,
	// best-effort.
	ElevatePriority bool
}

// TaskOutcome is the terminal state of one scheduled task. Exactly one of
// Result and Err is set.
type TaskOutcome struct {
	Result *model.ExecutionResult
	Err    error
}

// Scheduler runs selected project tasks through resolved backends. One
// scheduler can serve many runs; all per-run state lives in Run.
type Scheduler struct {
	registry *backend.Registry
	index    *store.Index // optional
	broker   *Broker      // optional
	logger   *slog.Logger
}

// New creates a scheduler. index and broker may be nil when run recording or
// measurement streaming is not wanted.
func New(registry *backend.Registry, index *store.Index, broker *Broker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		registry: registry,
		index:    index,
		broker:   broker,
		logger:   logger,
	}
}

// Run executes the project tasks matching the given patterns and returns the
// run id with one outcome per selected task.
//
// Backends are resolved for every task before any task starts, so resolution
// failures surface immediately instead of mid-run. A failing task never
// affects its siblings; cancellation of ctx stops each running task at its
// next checkpoint boundary and skips tasks not yet started.
func (s *Scheduler) Run(ctx context.Context, p *project.Project, patterns []string, opts Options) (string, map[string]*TaskOutcome, error) {
	tasks, err := p.SelectTasks(patterns)
	if err != nil {
		return "", nil, err
	}
	if len(tasks) == 0 {
		return "", nil, fmt.Errorf("no tasks match %v", patterns)
	}

	workers := opts.MaxWorkers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	runID := model.NewID()
	logger := s.logger.With("run_id", runID, "project", p.Meta.Name)
	logger.Info("run started", "tasks", len(tasks), "workers", workers)

	if opts.ElevatePriority {
		elevatePriority(logger)
	}

	results := store.NewResults(p.OutputRoot())
	outcomes := make(map[string]*TaskOutcome, len(tasks))
	var mu sync.Mutex
	record := func(task *project.Task, res *model.ExecutionResult, err error) {
		mu.Lock()
		outcomes[task.Name] = &TaskOutcome{Result: res, Err: err}
		mu.Unlock()
		if s.broker != nil {
			s.broker.Close(task.Name)
		}
		s.observe(task, res, err)
		s.recordIndex(ctx, logger, runID, task, res, err)
	}

	// Resolve every backend up front. Unresolvable tasks fail here and never
	// occupy a worker.
	handles := make(map[string]*backend.Handle, len(tasks))
	runnable := tasks[:0:0]
	for _, task := range tasks {
		h, err := s.registry.Resolve(task.Mode, task.BackendName, task.Precision)
		if err != nil {
			logger.Error("backend resolution failed", "task", task.Name, "error", err)
			record(task, nil, err)
			continue
		}
		handles[task.Name] = h
		// A prior run may have closed the task's topic; reopen it so this
		// run's measurements reach subscribers.
		if s.broker != nil {
			s.broker.Open(task.Name)
		}
		runnable = append(runnable, task)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, task := range runnable {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("task panicked", "task", task.Name, "panic", r)
					record(task, nil, fmt.Errorf("task %q: panic: %v", task.Name, r))
				}
			}()

			if ctx.Err() != nil {
				record(task, nil, fmt.Errorf("task %q: %w", task.Name, ctx.Err()))
				return nil
			}

			activeTasks.Inc()
			defer activeTasks.Dec()

			rc := executor.RunContext{
				RunID:   runID,
				Logger:  logger,
				Results: results,
			}
			if s.broker != nil {
				rc.OnMeasurement = s.broker.Publish
			}
			res, err := executor.Execute(ctx, rc, task, handles[task.Name], opts.CheckpointInterval)
			record(task, res, err)
			return nil
		})
	}
	g.Wait()

	logger.Info("run finished", "tasks", len(tasks))
	return runID, outcomes, nil
}

// observe updates the run metrics for one finished task.
func (s *Scheduler) observe(task *project.Task, res *model.ExecutionResult, err error) {
	if err != nil {
		tasksTotal.WithLabelValues(string(task.Mode), model.TerminationError).Inc()
		return
	}
	tasksTotal.WithLabelValues(string(task.Mode), res.Termination).Inc()
	taskDuration.Observe(res.Elapsed.Seconds())
	taskIterations.Observe(float64(res.Iterations))
}

// recordIndex appends the outcome to the run index when one is configured.
// Index failures are logged, never propagated: losing a report row must not
// fail the task.
func (s *Scheduler) recordIndex(ctx context.Context, logger *slog.Logger, runID string, task *project.Task, res *model.ExecutionResult, err error) {
	if s.index == nil {
		return
	}
	// The run context may already be cancelled; the row should land anyway.
	var recErr error
	if err != nil {
		recErr = s.index.RecordFailure(context.WithoutCancel(ctx), runID, task.Name, err)
	} else {
		recErr = s.index.RecordResult(context.WithoutCancel(ctx), runID, res)
	}
	if recErr != nil {
		logger.Warn("cannot record execution in run index", "task", task.Name, "error", recErr)
	}
}
