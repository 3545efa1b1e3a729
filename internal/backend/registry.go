package backend

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/seantiz/hamevo/internal/model"
)

// ErrNotRegistered is returned by Resolve for names with no backend.
var ErrNotRegistered = errors.New("backend not registered")

// BackendInfo pairs a backend name with its capabilities.
type BackendInfo struct {
	Name         string              `json:"name"`
	Capabilities BackendCapabilities `json:"capabilities"`
}

// Registry maps backend names to simulators. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds b under name, replacing any previous entry.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	r.backends[name] = b
	r.mu.Unlock()
}

// Resolve returns the backend for a run requesting shots samples.
//
// An empty name or "auto" selects qasm when shots > 0 and statevector
// otherwise. When shots > 0 and the backend samples, the returned backend is
// reconfigured for that many shots; the registered instance is left as is.
func (r *Registry) Resolve(name string, shots int) (Backend, error) {
	if name == "" || name == model.BackendAuto {
		name = model.BackendStatevector
		if shots > 0 {
			name = model.BackendQasm
		}
	}

	r.mu.RLock()
	b, ok := r.backends[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotRegistered)
	}

	if ss, ok := b.(ShotsSetter); ok && shots > 0 && !b.IsStatevector() {
		b = ss.WithShots(shots)
	}
	return b, nil
}

// List returns every registered backend ordered by name.
func (r *Registry) List() []BackendInfo {
	r.mu.RLock()
	infos := make([]BackendInfo, 0, len(r.backends))
	for name, b := range r.backends {
		infos = append(infos, BackendInfo{Name: name, Capabilities: b.Capabilities()})
	}
	r.mu.RUnlock()

	slices.SortFunc(infos, func(a, b BackendInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return infos
}
