package executor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/argmaster/cssfinder/internal/backend"
	"github.com/argmaster/cssfinder/internal/executor"
	"github.com/argmaster/cssfinder/internal/model"
	"github.com/argmaster/cssfinder/internal/mtx"
	"github.com/argmaster/cssfinder/internal/project"
	"github.com/argmaster/cssfinder/internal/store"
)

// scriptJob replays a fixed sequence of corrected values, repeating the last
// one once the script runs out.
type scriptJob struct {
	values []float64
	failAt int // iteration whose Step fails, 0 means never
	step   int
	state  *mtx.Matrix
}

func (j *scriptJob) Step(ctx context.Context) (float64, error) {
	j.step++
	if j.failAt != 0 && j.step >= j.failAt {
		return 0, errors.New("step diverged")
	}
	i := j.step - 1
	if i >= len(j.values) {
		i = len(j.values) - 1
	}
	return j.values[i], nil
}

func (j *scriptJob) State() *mtx.Matrix { return j.state }

type scriptProvider struct {
	values   []float64
	failAt   int
	lastSpec backend.JobSpec
	lastJob  *scriptJob
}

func (p *scriptProvider) Name() string                  { return "script" }
func (p *scriptProvider) Version() string               { return "1.0.0" }
func (p *scriptProvider) Modes() []model.Mode           { return model.Modes }
func (p *scriptProvider) Precisions() []model.Precision {
	return []model.Precision{model.PrecisionSingle, model.PrecisionDouble}
}

func (p *scriptProvider) NewJob(spec backend.JobSpec) (backend.Job, error) {
	p.lastSpec = spec
	p.lastJob = &scriptJob{values: p.values, failAt: p.failAt, state: spec.State.Clone()}
	return p.lastJob, nil
}

func writeState(t *testing.T, path string, size int) {
	t.Helper()
	m := mtx.New(size)
	for i := 0; i < size; i++ {
		m.Set(i, i, complex(1.0/float64(size), 0))
	}
	if err := mtx.WriteFile(path, m); err != nil {
		t.Fatalf("write state %s: %v", path, err)
	}
}

// newTask assembles a single-task project in a temp dir and returns the task
// together with the matching result store.
func newTask(t *testing.T, spec project.TaskSpec) (*project.Task, *store.Results) {
	t.Helper()
	dir := t.TempDir()
	writeState(t, filepath.Join(dir, "state.mtx"), 4)
	spec.StateFile = "state.mtx"

	p, err := project.NewBuilder(dir, project.Meta{Name: "exec_test", Version: "1.0.0"}).
		AddTask("sample", spec).
		Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	task, _ := p.Task("sample")
	return task, store.NewResults(p.OutputRoot())
}

func resolveHandle(t *testing.T, p backend.Provider, task *project.Task) *backend.Handle {
	t.Helper()
	reg := backend.NewRegistry(testLogger())
	if err := reg.Register(p); err != nil {
		t.Fatalf("register provider: %v", err)
	}
	h, err := reg.Resolve(task.Mode, task.BackendName, task.Precision)
	if err != nil {
		t.Fatalf("resolve backend: %v", err)
	}
	return h
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteConverges(t *testing.T) {
	task, results := newTask(t, project.TaskSpec{
		Mode:          model.ModeFSnQd,
		Visibility:    0.4,
		MaxIterations: 100,
		Threshold:     1e-3,
	})
	provider := &scriptProvider{values: []float64{0.5, 0.1, 1e-4}}
	handle := resolveHandle(t, provider, task)
	rc := executor.RunContext{RunID: model.NewID(), Logger: testLogger(), Results: results}

	res, err := executor.Execute(context.Background(), rc, task, handle, 10)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Termination != model.TerminationConverged {
		t.Errorf("Termination = %q, want converged", res.Termination)
	}
	if res.Iterations != 3 || res.Value != 1e-4 {
		t.Errorf("iterations/value = %d/%v, want 3/1e-4", res.Iterations, res.Value)
	}

	stored, err := results.Read(task.OutputDir())
	if err != nil {
		t.Fatalf("Read result: %v", err)
	}
	if stored.Termination != model.TerminationConverged {
		t.Errorf("stored termination = %q, want converged", stored.Termination)
	}
	last := stored.Measurements[len(stored.Measurements)-1]
	if last.Iteration != 3 {
		t.Errorf("last measurement iteration = %d, want 3", last.Iteration)
	}
}

func TestExecuteHitsIterationLimit(t *testing.T) {
	task, results := newTask(t, project.TaskSpec{
		Mode:          model.ModeFSnQd,
		MaxIterations: 5,
		Threshold:     1e-9,
	})
	provider := &scriptProvider{values: []float64{0.5, 0.4, 0.3, 0.2, 0.1}}
	handle := resolveHandle(t, provider, task)
	rc := executor.RunContext{RunID: model.NewID(), Logger: testLogger(), Results: results}

	res, err := executor.Execute(context.Background(), rc, task, handle, 10)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Termination != model.TerminationIterationLimit {
		t.Errorf("Termination = %q, want iteration-limit", res.Termination)
	}
	if res.Iterations != 5 || res.Value != 0.1 {
		t.Errorf("iterations/value = %d/%v, want 5/0.1", res.Iterations, res.Value)
	}
	last := res.Measurements[len(res.Measurements)-1]
	if last.Iteration != 5 {
		t.Errorf("last measurement iteration = %d, want 5", last.Iteration)
	}
}

func TestExecuteCheckpointCadence(t *testing.T) {
	task, results := newTask(t, project.TaskSpec{
		Mode:          model.ModeFSnQd,
		MaxIterations: 5,
		Threshold:     1e-9,
	})
	provider := &scriptProvider{values: []float64{0.5}}
	handle := resolveHandle(t, provider, task)

	var published []model.Measurement
	rc := executor.RunContext{
		RunID:   model.NewID(),
		Logger:  testLogger(),
		Results: results,
		OnMeasurement: func(task string, m model.Measurement) {
			published = append(published, m)
		},
	}

	res, err := executor.Execute(context.Background(), rc, task, handle, 2)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Checkpoints at 2 and 4, plus the terminal measurement at 5.
	want := []int{2, 4, 5}
	if len(res.Measurements) != len(want) {
		t.Fatalf("got %d measurements, want %d", len(res.Measurements), len(want))
	}
	for i, m := range res.Measurements {
		if m.Iteration != want[i] {
			t.Errorf("measurement %d at iteration %d, want %d", i, m.Iteration, want[i])
		}
	}
	if len(published) != len(res.Measurements) {
		t.Errorf("published %d measurements, want %d", len(published), len(res.Measurements))
	}
}

func TestExecuteBackendFailureKeepsCheckpoints(t *testing.T) {
	task, results := newTask(t, project.TaskSpec{
		Mode:          model.ModeFSnQd,
		MaxIterations: 100,
		Threshold:     1e-9,
	})
	provider := &scriptProvider{values: []float64{0.5}, failAt: 3}
	handle := resolveHandle(t, provider, task)
	rc := executor.RunContext{RunID: model.NewID(), Logger: testLogger(), Results: results}

	_, err := executor.Execute(context.Background(), rc, task, handle, 1)
	var execErr *executor.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Execute err = %v, want *ExecutionError", err)
	}
	if execErr.TaskName != "sample" {
		t.Errorf("ExecutionError task = %q, want sample", execErr.TaskName)
	}

	// No finalized result, but earlier checkpoints stay on disk.
	if _, err := results.Read(task.OutputDir()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Read err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(task.OutputDir(), "corrections.json")); err != nil {
		t.Errorf("checkpointed measurements missing: %v", err)
	}
}

func TestExecuteCancelledAtCheckpoint(t *testing.T) {
	task, results := newTask(t, project.TaskSpec{
		Mode:          model.ModeFSnQd,
		MaxIterations: 1000,
		Threshold:     1e-9,
	})
	provider := &scriptProvider{values: []float64{0.5}}
	handle := resolveHandle(t, provider, task)
	rc := executor.RunContext{RunID: model.NewID(), Logger: testLogger(), Results: results}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := executor.Execute(ctx, rc, task, handle, 4)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Termination != model.TerminationCancelled {
		t.Errorf("Termination = %q, want cancelled", res.Termination)
	}
	if res.Iterations != 4 {
		t.Errorf("Iterations = %d, want 4 (first checkpoint boundary)", res.Iterations)
	}

	stored, err := results.Read(task.OutputDir())
	if err != nil {
		t.Fatalf("Read cancelled result: %v", err)
	}
	if stored.Status() != model.StatusCancelled {
		t.Errorf("stored status = %q, want cancelled", stored.Status())
	}
}

func TestExecuteDeducesDimensions(t *testing.T) {
	dir := t.TempDir()
	writeState(t, filepath.Join(dir, "ghz.mtx"), 8)

	p, err := project.NewBuilder(dir, project.Meta{Name: "exec_test", Version: "1.0.0"}).
		AddTask("ghz", project.TaskSpec{
			Mode:          model.ModeFSnQd,
			StateFile:     "ghz.mtx",
			MaxIterations: 1,
			Threshold:     1.0,
		}).
		Build()
	if err != nil {
		t.Fatalf("build project: %v", err)
	}
	task, _ := p.Task("ghz")
	results := store.NewResults(p.OutputRoot())

	provider := &scriptProvider{values: []float64{0.5}}
	handle := resolveHandle(t, provider, task)
	rc := executor.RunContext{RunID: model.NewID(), Logger: testLogger(), Results: results}

	if _, err := executor.Execute(context.Background(), rc, task, handle, 10); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if provider.lastSpec.Depth != 2 || provider.lastSpec.Quantity != 3 {
		t.Errorf("deduced dims = (%d, %d), want (2, 3) for an 8x8 qubit state",
			provider.lastSpec.Depth, provider.lastSpec.Quantity)
	}
}
