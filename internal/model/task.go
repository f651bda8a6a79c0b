package model

import (
	"fmt"
	"strings"
)

// Task status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Termination reasons reported by the executor.
const (
	TerminationConverged      = "converged"
	TerminationIterationLimit = "iteration-limit"
	TerminationCancelled      = "cancelled"
	TerminationError          = "error"
)

// Mode selects the separability search algorithm variant a backend runs.
type Mode string

// Algorithm mode constants.
const (
	// ModeFSnQd searches for full separability of an n-quDit state.
	ModeFSnQd Mode = "FSnQd"
	// ModeSBiPa searches for separability of a bipartite state.
	ModeSBiPa Mode = "SBiPa"
	// ModeG3PaE3qD detects genuine 3-partite entanglement of a 3-quDit state.
	ModeG3PaE3qD Mode = "G3PaE3qD"
	// ModeG4PaE3qD detects genuine 4-partite entanglement of a 3-quDit state.
	ModeG4PaE3qD Mode = "G4PaE3qD"
)

// Modes lists all known algorithm modes.
var Modes = []Mode{ModeFSnQd, ModeSBiPa, ModeG3PaE3qD, ModeG4PaE3qD}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown algorithm mode %q", s)
}

// Valid reports whether the mode is one of the known algorithm modes.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Precision selects the floating point width a backend computes with.
type Precision string

// Precision constants.
const (
	// PrecisionSingle uses 32 bit floats for both real and imaginary parts.
	PrecisionSingle Precision = "single"
	// PrecisionDouble uses 64 bit floats for both real and imaginary parts.
	PrecisionDouble Precision = "double"
)

// Precisions lists all known precisions.
var Precisions = []Precision{PrecisionSingle, PrecisionDouble}

// ParsePrecision parses a precision name case-insensitively.
func ParsePrecision(s string) (Precision, error) {
	for _, p := range Precisions {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown precision %q", s)
}

// Valid reports whether the precision is one of the known precisions.
func (p Precision) Valid() bool {
	return p == PrecisionSingle || p == PrecisionDouble
}

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
