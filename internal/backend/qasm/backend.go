// Package qasm implements a shot-sampling simulator backend. Circuits are
// simulated exactly and their measurement outcomes are drawn from the final
// probability distribution.
package qasm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/backend/sim"
	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/model"
)

const (
	// DefaultShots is used when a non-positive shot count is configured.
	DefaultShots = 1024

	// DefaultMaxQubits bounds the dense state at 2^20 amplitudes.
	DefaultMaxQubits = 20
)

// Compile-time interface satisfaction checks.
var (
	_ backend.Backend     = (*Backend)(nil)
	_ backend.ShotsSetter = (*Backend)(nil)
)

// Options configures a sampling backend.
type Options struct {
	Shots     int
	MaxQubits int
	// Seed makes sampling reproducible. Zero draws a random seed.
	Seed uint64
}

// Backend samples measurement counts for every circuit it executes.
type Backend struct {
	opts   Options
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a sampling backend.
func New(opts Options, logger *slog.Logger) *Backend {
	if opts.Shots <= 0 {
		opts.Shots = DefaultShots
	}
	if opts.MaxQubits <= 0 {
		opts.MaxQubits = DefaultMaxQubits
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Backend{
		opts:   opts,
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// WithShots returns a backend sharing this one's configuration but sampling
// shots outcomes per circuit. The copy gets its own generator derived from
// the configured seed.
func (b *Backend) WithShots(shots int) backend.Backend {
	opts := b.opts
	opts.Shots = shots
	return New(opts, b.logger)
}

// Execute simulates every circuit and samples its measured outcomes. Circuits
// without a measurement are rejected.
func (b *Backend) Execute(ctx context.Context, circuits []*circuit.Circuit) (*backend.Result, error) {
	start := time.Now()
	defer func() {
		sim.ExecuteDuration.WithLabelValues(model.BackendQasm).Observe(time.Since(start).Seconds())
	}()

	res := &backend.Result{
		Backend: model.BackendQasm,
		Shots:   b.opts.Shots,
		Counts:  make(map[string]map[string]int, len(circuits)),
	}
	for _, c := range circuits {
		if !c.Measured() {
			sim.CircuitsTotal.WithLabelValues(model.BackendQasm, sim.StatusError).Inc()
			return nil, fmt.Errorf("circuit %q has no measurements", c.Name)
		}
		s, err := sim.Simulate(ctx, c, b.opts.MaxQubits)
		if err != nil {
			sim.CircuitsTotal.WithLabelValues(model.BackendQasm, sim.StatusError).Inc()
			return nil, err
		}

		b.mu.Lock()
		res.Counts[c.Name] = s.Sample(b.rng, b.opts.Shots)
		b.mu.Unlock()

		sim.CircuitsTotal.WithLabelValues(model.BackendQasm, sim.StatusOK).Inc()
		sim.ShotsTotal.Add(float64(b.opts.Shots))
		b.logger.Debug("qasm: circuit sampled", "circuit", c.Name, "qubits", c.NumQubits, "shots", b.opts.Shots)
	}
	res.DurationMS = int(time.Since(start).Milliseconds())
	return res, nil
}

// IsStatevector always reports false.
func (b *Backend) IsStatevector() bool { return false }

// Capabilities reports the backend name, width limit and shot count.
func (b *Backend) Capabilities() backend.BackendCapabilities {
	return backend.BackendCapabilities{
		Name:      model.BackendQasm,
		MaxQubits: b.opts.MaxQubits,
		Shots:     b.opts.Shots,
	}
}
