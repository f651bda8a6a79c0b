package project

import "fmt"

// Builder is the dynamic construction form: programs assemble the same
// immutable Project shape the static files produce, through the same
// assembly and validation path.
type Builder struct {
	dir   string
	meta  Meta
	specs map[string]TaskSpec
	errs  []error
}

// NewBuilder starts a dynamic project rooted at dir.
func NewBuilder(dir string, meta Meta) *Builder {
	return &Builder{
		dir:   dir,
		meta:  meta,
		specs: make(map[string]TaskSpec),
	}
}

// AddTask registers a named task spec. Duplicate names are recorded as
// errors and surface from Build.
func (b *Builder) AddTask(name string, spec TaskSpec) *Builder {
	if _, exists := b.specs[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("duplicate task name %q", name))
		return b
	}
	b.specs[name] = spec
	return b
}

// Build assembles the Project. Failures are reported as *ParseError, the
// same contract the static Load has.
func (b *Builder) Build() (*Project, error) {
	if len(b.errs) > 0 {
		return nil, &ParseError{Path: b.dir, Err: b.errs[0]}
	}
	p, err := assemble(b.dir, b.meta, b.specs)
	if err != nil {
		return nil, &ParseError{Path: b.dir, Err: err}
	}
	return p, nil
}
