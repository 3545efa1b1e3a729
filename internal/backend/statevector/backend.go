// Package statevector implements an exact statevector simulator backend.
package statevector

import (
	"context"
	"log/slog"
	"time"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/backend/sim"
	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/model"
)

// DefaultMaxQubits bounds the dense state at 2^20 amplitudes.
const DefaultMaxQubits = 20

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)

// Backend returns the exact final amplitudes of every circuit it executes.
type Backend struct {
	maxQubits int
	logger    *slog.Logger
}

// New creates a statevector backend. A non-positive maxQubits selects
// DefaultMaxQubits and a nil logger discards output.
func New(maxQubits int, logger *slog.Logger) *Backend {
	if maxQubits <= 0 {
		maxQubits = DefaultMaxQubits
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{maxQubits: maxQubits, logger: logger}
}

// Execute simulates each circuit from |0...0>.
func (b *Backend) Execute(ctx context.Context, circuits []*circuit.Circuit) (*backend.Result, error) {
	start := time.Now()
	defer func() {
		sim.ExecuteDuration.WithLabelValues(model.BackendStatevector).Observe(time.Since(start).Seconds())
	}()

	res := &backend.Result{
		Backend:      model.BackendStatevector,
		Statevectors: make(map[string][]complex128, len(circuits)),
	}
	for _, c := range circuits {
		s, err := sim.Simulate(ctx, c, b.maxQubits)
		if err != nil {
			sim.CircuitsTotal.WithLabelValues(model.BackendStatevector, sim.StatusError).Inc()
			return nil, err
		}
		sim.CircuitsTotal.WithLabelValues(model.BackendStatevector, sim.StatusOK).Inc()
		res.Statevectors[c.Name] = s.Amplitudes
		b.logger.Debug("statevector: circuit simulated", "circuit", c.Name, "qubits", c.NumQubits, "instructions", c.Len())
	}
	res.DurationMS = int(time.Since(start).Milliseconds())
	return res, nil
}

// IsStatevector always reports true.
func (b *Backend) IsStatevector() bool { return true }

// Capabilities reports the backend name and width limit.
func (b *Backend) Capabilities() backend.BackendCapabilities {
	return backend.BackendCapabilities{
		Name:        model.BackendStatevector,
		Statevector: true,
		MaxQubits:   b.maxQubits,
	}
}
