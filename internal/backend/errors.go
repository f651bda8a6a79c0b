package backend

import "errors"

// Resolution and discovery errors. All are reported during validation, before
// any task starts.
var (
	// ErrNotFound is returned when no installed backend matches a task's
	// (mode, name, precision) selection.
	ErrNotFound = errors.New("backend not found")

	// ErrAmbiguous is returned when more than one installed backend matches
	// and the task did not name one explicitly.
	ErrAmbiguous = errors.New("backend selection ambiguous")

	// ErrIncompatible marks a provider that does not expose the full
	// capability set. Such providers are excluded from discovery without
	// failing discovery of others.
	ErrIncompatible = errors.New("backend incompatible")
)
