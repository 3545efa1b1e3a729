package backend

import (
	"context"
	"fmt"

	"github.com/seantiz/hamevo/internal/circuit"
)

// Backend is the interface that all execution backends must implement.
type Backend interface {
	// Execute runs every circuit and returns the combined result. It blocks
	// until the backend has finished or ctx is done.
	Execute(ctx context.Context, circuits []*circuit.Circuit) (*Result, error)

	// IsStatevector reports whether the backend returns exact amplitudes
	// rather than sampled measurement counts.
	IsStatevector() bool

	// Capabilities reports what this backend supports.
	Capabilities() BackendCapabilities
}

// ShotsSetter is implemented by sampling backends that can be reconfigured
// with a different number of shots for a single run.
type ShotsSetter interface {
	WithShots(shots int) Backend
}

// BackendCapabilities describes what a backend supports.
type BackendCapabilities struct {
	Name        string `json:"name"`
	Statevector bool   `json:"statevector"`
	MaxQubits   int    `json:"max_qubits"`
	Shots       int    `json:"shots,omitempty"`
}

// Result holds the raw output of one Execute call, keyed by circuit name.
type Result struct {
	Backend      string                    `json:"backend"`
	Shots        int                       `json:"shots,omitempty"`
	Statevectors map[string][]complex128   `json:"-"`
	Counts       map[string]map[string]int `json:"counts,omitempty"`
	DurationMS   int                       `json:"duration_ms"`
}

// Statevector returns the final amplitudes of the named circuit.
func (r *Result) Statevector(name string) ([]complex128, error) {
	sv, ok := r.Statevectors[name]
	if !ok {
		return nil, fmt.Errorf("no statevector for circuit %q in %s result", name, r.Backend)
	}
	return sv, nil
}

// CountsFor returns the measurement histogram of the named circuit. Keys are
// bitstrings with qubit 0 as the rightmost character.
func (r *Result) CountsFor(name string) (map[string]int, error) {
	c, ok := r.Counts[name]
	if !ok {
		return nil, fmt.Errorf("no counts for circuit %q in %s result", name, r.Backend)
	}
	return c, nil
}
