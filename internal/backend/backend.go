package backend

import (
	"context"

	"github.com/argmaster/cssfinder/internal/model"
	"github.com/argmaster/cssfinder/internal/mtx"
)

// Provider is the capability interface a backend module must implement to be
// discoverable: enumerate supported algorithm modes, enumerate supported
// precisions, and construct a runnable job from a spec. Providers are shared
// read-only across concurrently executing tasks, so NewJob must be safe to
// call concurrently and jobs must not share mutable state.
type Provider interface {
	// Name identifies the provider, unique among installed backends.
	Name() string

	// Version reports the provider's semantic version.
	Version() string

	// Modes reports the algorithm modes this provider can run.
	Modes() []model.Mode

	// Precisions reports the floating point precisions this provider supports.
	Precisions() []model.Precision

	// NewJob constructs a runnable job for one task. The spec's matrices are
	// owned by the job after this call.
	NewJob(spec JobSpec) (Job, error)
}

// Job is one in-progress search. A job is owned by a single worker for its
// entire lifetime and is never invoked concurrently.
type Job interface {
	// Step performs one refinement iteration and returns the corrected
	// distance value after it. The context carries batch cancellation.
	Step(ctx context.Context) (float64, error)

	// State returns the current candidate state matrix.
	State() *mtx.Matrix
}

// JobSpec carries everything a provider needs to construct a job.
type JobSpec struct {
	TaskName  string
	Mode      model.Mode
	Precision model.Precision

	// State is the input state matrix.
	State *mtx.Matrix

	// Depth is the number of dimensions per quDit (d); Quantity is the number
	// of quDits (n). Both are always populated by the executor, deduced from
	// the matrix size when the task does not pin them.
	Depth    int
	Quantity int

	// Visibility is the assumed visibility against white noise, in [0, 1].
	Visibility float64

	// Symmetries are optional symmetry matrix sets applied during the search.
	Symmetries [][]*mtx.Matrix

	// Projection is an optional projection matrix, nil when unused.
	Projection *mtx.Matrix
}

// Handle is a resolved, validated backend implementation. Handles are owned
// by the registry and shared read-only across workers.
type Handle struct {
	Name       string
	Version    string
	Modes      []model.Mode
	Precisions []model.Precision

	provider Provider
}

// NewJob constructs a runnable job through the underlying provider.
func (h *Handle) NewJob(spec JobSpec) (Job, error) {
	return h.provider.NewJob(spec)
}

// SupportsMode reports whether the handle can run the given algorithm mode.
func (h *Handle) SupportsMode(mode model.Mode) bool {
	for _, m := range h.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// SupportsPrecision reports whether the handle supports the given precision.
func (h *Handle) SupportsPrecision(p model.Precision) bool {
	for _, known := range h.Precisions {
		if known == p {
			return true
		}
	}
	return false
}
