package project

import (
	"errors"
	"fmt"
	"os"

	"github.com/argmaster/cssfinder/internal/backend"
	"github.com/argmaster/cssfinder/internal/mtx"
)

// Validate checks the whole project against the registry before any
// scheduling: every task's backend/mode/precision combination must resolve,
// every matrix resource must exist and parse, and output directories must
// not collide. All problems are collected and joined so users see everything
// up front rather than mid-batch.
func (p *Project) Validate(reg *backend.Registry) error {
	var errs []error

	outputs := make(map[string]string)
	for _, t := range p.Tasks() {
		if prev, taken := outputs[t.outputDir]; taken {
			errs = append(errs, fmt.Errorf(
				"task %q: output directory %s collides with task %q", t.Name, t.outputDir, prev))
		} else {
			outputs[t.outputDir] = t.Name
		}

		if _, err := reg.Resolve(t.Mode, t.BackendName, t.Precision); err != nil {
			errs = append(errs, fmt.Errorf("task %q: %w", t.Name, err))
		}

		if _, err := mtx.ReadFile(t.StateFile); err != nil {
			errs = append(errs, fmt.Errorf("task %q: input state: %w", t.Name, err))
		}

		for _, row := range t.Symmetries {
			for _, file := range row {
				if _, err := os.Stat(file); err != nil {
					errs = append(errs, fmt.Errorf("task %q: symmetry: %w", t.Name, err))
				}
			}
		}
		if t.Projection != "" {
			if _, err := os.Stat(t.Projection); err != nil {
				errs = append(errs, fmt.Errorf("task %q: projection: %w", t.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}
