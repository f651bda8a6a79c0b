package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/argmaster/cssfinder/internal/model"
)

// installedMu guards the process-wide provider list populated by init-time
// RegisterProvider calls from backend modules.
var (
	installedMu sync.RWMutex
	installed   []Provider
)

// RegisterProvider makes a backend provider visible to Discover. Backend
// modules call this from an init function, mirroring database/sql driver
// registration.
func RegisterProvider(p Provider) {
	installedMu.Lock()
	defer installedMu.Unlock()
	installed = append(installed, p)
}

// installedProviders returns a snapshot of registered providers.
func installedProviders() []Provider {
	installedMu.RLock()
	defer installedMu.RUnlock()
	out := make([]Provider, len(installed))
	copy(out, installed)
	return out
}

// Info describes one discovered backend for listings.
type Info struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Modes      []model.Mode      `json:"modes"`
	Precisions []model.Precision `json:"precisions"`
}

// Registry holds discovered backend handles and resolves which one a task
// should use. Handles are read-only once discovered, so lookups are safe from
// concurrently executing tasks.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle // keyed by lower-cased provider name
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		logger:  logger,
	}
}

// Discover probes every process-registered provider for the required
// capability set and adds the compatible ones. An incompatible provider is
// logged and skipped; it never fails discovery of the others. Discover
// returns the number of handles available afterwards.
func (r *Registry) Discover() int {
	for _, p := range installedProviders() {
		if err := r.Register(p); err != nil {
			r.logger.Warn("backend excluded from discovery",
				"backend", p.Name(),
				"error", err,
			)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Register validates a single provider's capability set and adds it to the
// registry. Returns an error wrapping ErrIncompatible when the provider does
// not expose the full contract.
func (r *Registry) Register(p Provider) error {
	if err := probe(p); err != nil {
		return err
	}

	key := strings.ToLower(p.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[key]; exists {
		return fmt.Errorf("%w: duplicate backend name %q", ErrIncompatible, p.Name())
	}
	r.handles[key] = &Handle{
		Name:       p.Name(),
		Version:    p.Version(),
		Modes:      p.Modes(),
		Precisions: p.Precisions(),
		provider:   p,
	}
	return nil
}

// probe checks that a provider exposes the full required capability set.
func probe(p Provider) error {
	if p == nil {
		return fmt.Errorf("%w: nil provider", ErrIncompatible)
	}
	if p.Name() == "" {
		return fmt.Errorf("%w: provider has no name", ErrIncompatible)
	}
	modes := p.Modes()
	if len(modes) == 0 {
		return fmt.Errorf("%w: backend %q declares no algorithm modes", ErrIncompatible, p.Name())
	}
	for _, m := range modes {
		if !m.Valid() {
			return fmt.Errorf("%w: backend %q declares unknown mode %q", ErrIncompatible, p.Name(), m)
		}
	}
	precisions := p.Precisions()
	if len(precisions) == 0 {
		return fmt.Errorf("%w: backend %q declares no precisions", ErrIncompatible, p.Name())
	}
	for _, prec := range precisions {
		if !prec.Valid() {
			return fmt.Errorf("%w: backend %q declares unknown precision %q", ErrIncompatible, p.Name(), prec)
		}
	}
	return nil
}

// Resolve returns the handle for the given (mode, name, precision) selection.
// With an empty name it succeeds only if exactly one discovered backend
// supports the pair: zero matches fail with ErrNotFound, two or more with
// ErrAmbiguous. A non-empty name narrows the candidates to that provider.
func (r *Registry) Resolve(mode model.Mode, name string, precision model.Precision) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		h, ok := r.handles[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: no backend named %q is installed", ErrNotFound, name)
		}
		if !h.SupportsMode(mode) || !h.SupportsPrecision(precision) {
			return nil, fmt.Errorf("%w: backend %q does not support mode %q at precision %q",
				ErrNotFound, name, mode, precision)
		}
		return h, nil
	}

	var matches []*Handle
	for _, h := range r.handles {
		if h.SupportsMode(mode) && h.SupportsPrecision(precision) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no backend supports mode %q at precision %q",
			ErrNotFound, mode, precision)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, h := range matches {
			names[i] = h.Name
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: mode %q at precision %q is offered by %s; name one explicitly",
			ErrAmbiguous, mode, precision, strings.Join(names, ", "))
	}
}

// List returns information about all discovered backends, sorted by name for
// a stable response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.handles))
	for _, h := range r.handles {
		infos = append(infos, Info{
			Name:       h.Name,
			Version:    h.Version,
			Modes:      h.Modes,
			Precisions: h.Precisions,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
