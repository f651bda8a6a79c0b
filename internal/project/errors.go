package project

import (
	"fmt"
	"strings"
)

// ParseError wraps any failure to locate, decode or assemble a project
// description. It is fatal to the whole run and reported before scheduling.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse project %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CycleError reports a reference cycle in a static project description.
// Chain holds the witness path of JSON pointers, first repeated last.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("reference cycle: %s", strings.Join(e.Chain, " -> "))
}
