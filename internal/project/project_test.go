package project_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/argmaster/cssfinder/internal/model"
	"github.com/argmaster/cssfinder/internal/mtx"
	"github.com/argmaster/cssfinder/internal/project"
)

// writeState drops a small valid density matrix at dir/name.
func writeState(t *testing.T, dir, name string) string {
	t.Helper()
	m := mtx.New(4)
	for i := 0; i < 4; i++ {
		m.Set(i, i, complex(0.25, 0))
	}
	path := filepath.Join(dir, name)
	if err := mtx.WriteFile(path, m); err != nil {
		t.Fatalf("write state matrix: %v", err)
	}
	return path
}

func writeProjectFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write project file: %v", err)
	}
}

const jsonProject = `{
  "meta": {
    "name": "5qubits",
    "author": "Jane Tester",
    "email": "jane@example.com",
    "description": "test project",
    "version": "1.0.0"
  },
  "tasks": {
    "fsnqd_double": {
      "mode": "FSnQd",
      "backend": {"name": "reference", "precision": "double"},
      "state": {"file": "state.mtx"},
      "runtime": {"visibility": 0.4, "max_iterations": 1000, "threshold": 1e-6}
    },
    "fsnqd_single": {
      "mode": "FSnQd",
      "backend": {"name": "reference", "precision": "single"},
      "state": "state.mtx",
      "runtime": {"visibility": 0.4, "max_iterations": 500, "threshold": 1e-5}
    }
  }
}`

func TestLoadJSONProject(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir, "state.mtx")
	writeProjectFile(t, dir, "cssfproject.json", jsonProject)

	p, err := project.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if p.Meta.Name != "5qubits" {
		t.Errorf("Meta.Name = %q, want 5qubits", p.Meta.Name)
	}
	tasks := p.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("Tasks() returned %d tasks, want 2", len(tasks))
	}

	outputs := make(map[string]bool)
	for _, task := range tasks {
		if outputs[task.OutputDir()] {
			t.Errorf("duplicate output directory %s", task.OutputDir())
		}
		outputs[task.OutputDir()] = true
		if task.Mode != model.ModeFSnQd {
			t.Errorf("task %s mode = %q, want FSnQd", task.Name, task.Mode)
		}
		if !filepath.IsAbs(task.StateFile) {
			t.Errorf("task %s state file %q is not absolute", task.Name, task.StateFile)
		}
	}

	double, ok := p.Task("fsnqd_double")
	if !ok {
		t.Fatal("task fsnqd_double missing")
	}
	if double.Precision != model.PrecisionDouble {
		t.Errorf("precision = %q, want double", double.Precision)
	}
	if double.MaxIterations != 1000 {
		t.Errorf("MaxIterations = %d, want 1000", double.MaxIterations)
	}
}

const yamlProject = `meta:
  name: 5qubits
  author: Jane Tester
  email: jane@example.com
  description: test project
  version: 1.0.0
tasks:
  fsnqd_double:
    mode: FSnQd
    backend:
      name: reference
      precision: double
    state:
      file: state.mtx
    runtime:
      visibility: 0.4
      max_iterations: 1000
      threshold: 1.0e-6
  fsnqd_single:
    mode: FSnQd
    backend:
      name: reference
      precision: single
    state: state.mtx
    runtime:
      visibility: 0.4
      max_iterations: 500
      threshold: 1.0e-5
`

func TestLoadYAMLMatchesJSON(t *testing.T) {
	jsonDir := t.TempDir()
	writeState(t, jsonDir, "state.mtx")
	writeProjectFile(t, jsonDir, "cssfproject.json", jsonProject)

	yamlDir := t.TempDir()
	writeState(t, yamlDir, "state.mtx")
	writeProjectFile(t, yamlDir, "cssfproject.yaml", yamlProject)

	fromJSON, err := project.Load(jsonDir)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	fromYAML, err := project.Load(yamlDir)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}

	jt := fromJSON.Tasks()
	yt := fromYAML.Tasks()
	if len(jt) != len(yt) {
		t.Fatalf("task counts differ: json %d, yaml %d", len(jt), len(yt))
	}
	for i := range jt {
		if jt[i].Name != yt[i].Name ||
			jt[i].Mode != yt[i].Mode ||
			jt[i].Precision != yt[i].Precision ||
			jt[i].MaxIterations != yt[i].MaxIterations ||
			jt[i].Threshold != yt[i].Threshold {
			t.Errorf("task %d differs between forms: %+v vs %+v", i, jt[i], yt[i])
		}
	}
}

const refProject = `{
  "meta": {
    "name": "refs",
    "author": "Jane Tester",
    "email": "jane@example.com",
    "description": "shared runtime via refs",
    "version": "0.1.0"
  },
  "shared": {
    "runtime": {"visibility": 0.5, "max_iterations": 100, "threshold": 1e-4}
  },
  "tasks": {
    "a": {
      "mode": "SBiPa",
      "state": "state.mtx",
      "runtime": {"$ref": "#/shared/runtime"}
    },
    "b": {
      "mode": "SBiPa",
      "state": "state.mtx",
      "runtime": {"$ref": "#/shared/runtime"}
    }
  }
}`

func TestLoadResolvesInternalReferences(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir, "state.mtx")
	writeProjectFile(t, dir, "cssfproject.json", refProject)

	p, err := project.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		task, ok := p.Task(name)
		if !ok {
			t.Fatalf("task %q missing", name)
		}
		if task.MaxIterations != 100 || task.Visibility != 0.5 {
			t.Errorf("task %q runtime not resolved from $ref: %+v", name, task)
		}
	}
}

const cyclicProject = `{
  "meta": {
    "name": "cyclic",
    "author": "Jane Tester",
    "email": "jane@example.com",
    "description": "",
    "version": "0.1.0"
  },
  "a": {"$ref": "#/b"},
  "b": {"$ref": "#/a"},
  "tasks": {
    "t": {
      "mode": "FSnQd",
      "state": "state.mtx",
      "runtime": {"$ref": "#/a"}
    }
  }
}`

func TestLoadReportsReferenceCycle(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir, "state.mtx")
	writeProjectFile(t, dir, "cssfproject.json", cyclicProject)

	_, err := project.Load(dir)
	if err == nil {
		t.Fatal("Load with cyclic references succeeded, want error")
	}
	var cycleErr *project.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("err = %v, want *CycleError", err)
	}
	var parseErr *project.ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("err = %v, want *ParseError wrapper", err)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "cssfproject.json", "{not valid json")

	_, err := project.Load(dir)
	var parseErr *project.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
}

func TestLoadRejectsMissingRuntime(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir, "state.mtx")
	writeProjectFile(t, dir, "cssfproject.json", `{
  "meta": {"name": "x", "author": "a", "email": "a@b.c", "description": "", "version": "1.0.0"},
  "tasks": {"t": {"mode": "FSnQd", "state": "state.mtx"}}
}`)

	_, err := project.Load(dir)
	if err == nil {
		t.Fatal("Load without runtime section succeeded, want error")
	}
}

func TestBuilderConvergesWithStaticForm(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir, "state.mtx")
	writeProjectFile(t, dir, "cssfproject.json", jsonProject)

	static, err := project.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	dynamic, err := project.NewBuilder(dir, project.Meta{
		Name:        "5qubits",
		Author:      "Jane Tester",
		Email:       "jane@example.com",
		Description: "test project",
		Version:     "1.0.0",
	}).
		AddTask("fsnqd_double", project.TaskSpec{
			Mode:          model.ModeFSnQd,
			BackendName:   "reference",
			Precision:     model.PrecisionDouble,
			StateFile:     "state.mtx",
			Visibility:    0.4,
			MaxIterations: 1000,
			Threshold:     1e-6,
		}).
		AddTask("fsnqd_single", project.TaskSpec{
			Mode:          model.ModeFSnQd,
			BackendName:   "reference",
			Precision:     model.PrecisionSingle,
			StateFile:     "state.mtx",
			Visibility:    0.4,
			MaxIterations: 500,
			Threshold:     1e-5,
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	st := static.Tasks()
	dt := dynamic.Tasks()
	if len(st) != len(dt) {
		t.Fatalf("task counts differ: static %d, dynamic %d", len(st), len(dt))
	}
	for i := range st {
		if st[i].Name != dt[i].Name ||
			st[i].Mode != dt[i].Mode ||
			st[i].Precision != dt[i].Precision ||
			st[i].StateFile != dt[i].StateFile ||
			st[i].OutputDir() != dt[i].OutputDir() ||
			st[i].MaxIterations != dt[i].MaxIterations {
			t.Errorf("task %d differs: static %+v, dynamic %+v", i, st[i], dt[i])
		}
	}
}

func TestBuilderRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	spec := project.TaskSpec{
		Mode:          model.ModeFSnQd,
		StateFile:     "state.mtx",
		Visibility:    0.5,
		MaxIterations: 10,
	}

	_, err := project.NewBuilder(dir, project.Meta{Name: "dup", Version: "1.0.0"}).
		AddTask("t", spec).
		AddTask("t", spec).
		Build()
	if err == nil {
		t.Fatal("Build with duplicate task names succeeded, want error")
	}
}

func TestSelectTasks(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir, "state.mtx")
	writeProjectFile(t, dir, "cssfproject.json", jsonProject)

	p, err := project.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	all, err := p.SelectTasks(nil)
	if err != nil {
		t.Fatalf("SelectTasks(nil): %v", err)
	}
	if len(all) != 2 {
		t.Errorf("SelectTasks(nil) returned %d tasks, want 2", len(all))
	}

	singles, err := p.SelectTasks([]string{"*_single"})
	if err != nil {
		t.Fatalf("SelectTasks: %v", err)
	}
	if len(singles) != 1 || singles[0].Name != "fsnqd_single" {
		t.Errorf("SelectTasks(*_single) = %v, want [fsnqd_single]", singles)
	}

	none, err := p.SelectTasks([]string{"nope*"})
	if err != nil {
		t.Fatalf("SelectTasks: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("SelectTasks(nope*) returned %d tasks, want 0", len(none))
	}
}
