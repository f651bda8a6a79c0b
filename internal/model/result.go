package model

import (
	"time"

	"github.com/argmaster/cssfinder/internal/mtx"
)

// Measurement is a single checkpoint record: the iteration it was taken at,
// when it was taken, and the corrected distance value at that point. The
// ordered sequence of measurements is enough to reconstruct a convergence
// curve without re-running the task.
type Measurement struct {
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ExecutionResult holds everything a finished task execution produced.
// It is created once by the executor and immutable thereafter.
type ExecutionResult struct {
	TaskName string `json:"task_name"`

	// Termination is one of the Termination* constants.
	Termination string `json:"termination"`

	// Value is the final corrected distance value.
	Value float64 `json:"value"`

	// Iterations is the number of backend steps actually performed.
	Iterations int `json:"iterations"`

	// Elapsed is the wall time spent in the iteration loop.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Measurements is the ordered checkpoint history.
	Measurements []Measurement `json:"measurements"`

	// FinalState is the state matrix after the last iteration. It may be nil
	// when execution failed before the first step completed.
	FinalState *mtx.Matrix `json:"-"`
}

// Status maps the termination reason onto a task status constant.
func (r *ExecutionResult) Status() string {
	switch r.Termination {
	case TerminationConverged, TerminationIterationLimit:
		return StatusCompleted
	case TerminationCancelled:
		return StatusCancelled
	default:
		return StatusFailed
	}
}
