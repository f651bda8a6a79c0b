// Package project implements the declarative project model: loading static
// cssfproject.json / cssfproject.yaml descriptions, building the same shape
// programmatically, and validating the result against the backend registry
// before any scheduling happens.
package project

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/argmaster/cssfinder/internal/model"
)

// semverPattern validates project versions, see https://semver.org/.
var semverPattern = regexp.MustCompile(
	`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-]` +
		`[0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+(` +
		`[0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`,
)

// Meta holds project identification.
type Meta struct {
	Name        string `json:"name"`
	Author      string `json:"author"`
	Email       string `json:"email"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Task is one schedulable unit of work. Tasks are created during project
// assembly and never mutated afterwards; the executor consumes each exactly
// once.
type Task struct {
	Name string

	Mode        model.Mode
	BackendName string // empty means any single matching backend
	Precision   model.Precision

	// StateFile is the absolute path of the input state matrix.
	StateFile string
	// Depth (d) and Quantity (n) pin the system dimensions; zero means
	// deduce from the matrix size at execution time.
	Depth    int
	Quantity int

	Visibility    float64
	MaxIterations int
	// Threshold is the corrected value at or below which the task counts as
	// converged.
	Threshold float64

	// Symmetries holds absolute paths of symmetry matrix sets; Projection an
	// optional projection matrix path.
	Symmetries [][]string
	Projection string

	outputDir string
}

// OutputDir is the absolute directory this task's artifacts are written to,
// unique per task within a validated project.
func (t *Task) OutputDir() string { return t.outputDir }

// Project is the immutable root entity: meta, a named task set and the
// output root they share.
type Project struct {
	Meta Meta

	dir        string
	outputRoot string
	tasks      map[string]*Task
}

// Directory returns the absolute project directory.
func (p *Project) Directory() string { return p.dir }

// OutputRoot returns the absolute directory task outputs live under.
func (p *Project) OutputRoot() string { return p.outputRoot }

// Task returns the named task.
func (p *Project) Task(name string) (*Task, bool) {
	t, ok := p.tasks[name]
	return t, ok
}

// Tasks returns all tasks sorted by name.
func (p *Project) Tasks() []*Task {
	out := make([]*Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SelectTasks returns tasks whose names match any of the glob patterns,
// sorted by name. A nil or empty pattern list selects every task.
func (p *Project) SelectTasks(patterns []string) ([]*Task, error) {
	if len(patterns) == 0 {
		return p.Tasks(), nil
	}

	selected := make(map[string]*Task)
	for _, pattern := range patterns {
		for name, t := range p.tasks {
			ok, err := path.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("task pattern %q: %w", pattern, err)
			}
			if ok {
				selected[name] = t
			}
		}
	}

	out := make([]*Task, 0, len(selected))
	for _, t := range selected {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TaskSpec is the input shape shared by the static and dynamic construction
// paths. Both converge to identical Task values.
type TaskSpec struct {
	Mode        model.Mode
	BackendName string
	Precision   model.Precision // empty defaults to double

	StateFile string
	Depth     int
	Quantity  int

	Visibility    float64
	MaxIterations int
	Threshold     float64

	Symmetries [][]string
	Projection string

	// Output overrides the default <output-root>/<task-name> directory,
	// resolved relative to the project directory.
	Output string
}

// assemble builds the immutable Project from normalized task specs. Both the
// static loader and the dynamic Builder funnel through here, so the rest of
// the system never sees which form was used.
func assemble(dir string, meta Meta, specs map[string]TaskSpec) (*Project, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}
	if err := validateMeta(meta); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("project %q defines no tasks", meta.Name)
	}

	p := &Project{
		Meta:       meta,
		dir:        absDir,
		outputRoot: filepath.Join(absDir, "output"),
		tasks:      make(map[string]*Task, len(specs)),
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		task, err := buildTask(p, name, specs[name])
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		p.tasks[name] = task
	}
	return p, nil
}

func buildTask(p *Project, name string, spec TaskSpec) (*Task, error) {
	if name == "" {
		return nil, fmt.Errorf("task name is empty")
	}
	if !spec.Mode.Valid() {
		return nil, fmt.Errorf("unknown algorithm mode %q", spec.Mode)
	}
	precision := spec.Precision
	if precision == "" {
		precision = model.PrecisionDouble
	}
	if !precision.Valid() {
		return nil, fmt.Errorf("unknown precision %q", precision)
	}
	if spec.StateFile == "" {
		return nil, fmt.Errorf("missing input state file")
	}
	if spec.Visibility < 0 || spec.Visibility > 1 {
		return nil, fmt.Errorf("visibility %v outside [0, 1]", spec.Visibility)
	}
	if spec.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1, got %d", spec.MaxIterations)
	}
	if spec.Threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative, got %v", spec.Threshold)
	}
	if (spec.Depth == 0) != (spec.Quantity == 0) {
		return nil, fmt.Errorf("depth and quantity must be pinned together or both deduced")
	}

	outputDir := filepath.Join(p.outputRoot, name)
	if spec.Output != "" {
		outputDir = p.resolvePath(spec.Output)
	}

	symmetries := make([][]string, len(spec.Symmetries))
	for i, row := range spec.Symmetries {
		symmetries[i] = make([]string, len(row))
		for j, file := range row {
			symmetries[i][j] = p.resolvePath(file)
		}
	}
	projection := ""
	if spec.Projection != "" {
		projection = p.resolvePath(spec.Projection)
	}

	return &Task{
		Name:          name,
		Mode:          spec.Mode,
		BackendName:   spec.BackendName,
		Precision:     precision,
		StateFile:     p.resolvePath(spec.StateFile),
		Depth:         spec.Depth,
		Quantity:      spec.Quantity,
		Visibility:    spec.Visibility,
		MaxIterations: spec.MaxIterations,
		Threshold:     spec.Threshold,
		Symmetries:    symmetries,
		Projection:    projection,
		outputDir:     outputDir,
	}, nil
}

// resolvePath makes a project-relative path absolute.
func (p *Project) resolvePath(file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(p.dir, file)
}

func validateMeta(meta Meta) error {
	if meta.Name == "" {
		return fmt.Errorf("project meta is missing a name")
	}
	if meta.Version == "" || !semverPattern.MatchString(meta.Version) {
		return fmt.Errorf("project version %q is not a semantic version", meta.Version)
	}
	if meta.Email != "" && !strings.Contains(meta.Email, "@") {
		return fmt.Errorf("project author email %q is malformed", meta.Email)
	}
	return nil
}
