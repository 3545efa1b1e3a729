package evolution

import (
	"context"
	"log/slog"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/initialstate"
	"github.com/seantiz/hamevo/internal/operator"
)

// registerName and circuitLabel name the register and preparation fragment of
// every built circuit.
const (
	registerName = "q"
	circuitLabel = "circuit"
)

// Result is the summary of one run.
type Result struct {
	Mean   complex128
	StdDev float64
}

// Option configures an Experiment.
type Option func(*Experiment)

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) {
		e.logger = l
	}
}

// WithCircuitObserver registers f to receive the circuit Run builds, before
// it is wrapped for evaluation and executed.
func WithCircuitObserver(f func(*circuit.Circuit)) Option {
	return func(e *Experiment) {
		e.observe = f
	}
}

// sizer is implemented by canonical operators that can count the instructions
// of their evolution fragment without building it.
type sizer interface {
	EvolutionSize(p operator.EvolutionParams) float64
}

// Experiment evolves an initial state under an evolution operator and
// measures an observable afterwards.
//
// An Experiment is not safe for concurrent use. The operators and preparer it
// holds are never mutated, so several experiments may share them.
type Experiment struct {
	operator     operator.Canonical
	initialState initialstate.Preparer
	evoOperator  operator.Canonical
	cfg          Config

	backend backend.Backend
	result  *Result
	logger  *slog.Logger
	observe func(*circuit.Circuit)
}

// New validates cfg and normalizes both operators to their canonical form.
// Validation failures are returned as *InvalidParameterError; conversion
// failures are returned as produced by the operator.
func New(op operator.Operator, initialState initialstate.Preparer, evoOp operator.Operator, cfg Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	canonicalOp, err := op.ToCanonical()
	if err != nil {
		return nil, err
	}
	canonicalEvo, err := evoOp.ToCanonical()
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		operator:     canonicalOp,
		initialState: initialState,
		evoOperator:  canonicalEvo,
		cfg:          cfg,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the validated evolution parameters.
func (e *Experiment) Config() Config {
	return e.cfg
}

// NumQubits returns the width of the circuits the experiment builds.
func (e *Experiment) NumQubits() int {
	return e.operator.NumQubits()
}

// EvolutionSize estimates the instruction count of the evolution fragment
// BuildCircuit would produce. ok is false when the evolution operator cannot
// tell without building it.
func (e *Experiment) EvolutionSize() (n float64, ok bool) {
	s, ok := e.evoOperator.(sizer)
	if !ok {
		return 0, false
	}
	return s.EvolutionSize(e.cfg.evolutionParams()), true
}

// BuildCircuit returns the initial state preparation followed by the
// evolution fragment, over a register sized to the observable.
func (e *Experiment) BuildCircuit() (*circuit.Circuit, error) {
	reg := circuit.NewRegister(registerName, e.operator.NumQubits())

	prep, err := e.initialState.ConstructCircuit(circuitLabel, reg)
	if err != nil {
		return nil, err
	}
	evo, err := e.evoOperator.Evolve(e.cfg.evolutionParams(), reg)
	if err != nil {
		return nil, err
	}

	qc := circuit.New(circuitLabel, reg)
	if err := qc.Extend(prep); err != nil {
		return nil, err
	}
	if err := qc.Extend(evo); err != nil {
		return nil, err
	}

	e.logger.Debug("evolution: circuit built",
		"qubits", reg.Size,
		"prep_instructions", prep.Len(),
		"evolution_instructions", evo.Len(),
	)
	return qc, nil
}

// Run builds the circuit, wraps it for evaluation according to the backend's
// mode, executes it on b and stores the resulting mean and standard deviation.
// Errors from the preparer, the operators or the backend are returned as is;
// on error the previously stored result is left in place.
func (e *Experiment) Run(ctx context.Context, b backend.Backend) (Result, error) {
	e.backend = b
	statevector := b.IsStatevector()

	qc, err := e.BuildCircuit()
	if err != nil {
		return Result{}, err
	}
	if e.observe != nil {
		e.observe(qc)
	}
	circuits, err := e.operator.BuildEvaluationCircuits(qc, statevector)
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("evolution: executing", "circuits", len(circuits), "statevector", statevector)
	res, err := b.Execute(ctx, circuits)
	if err != nil {
		return Result{}, err
	}

	mean, std, err := e.operator.EvaluateWithResult(res, statevector)
	if err != nil {
		return Result{}, err
	}

	e.result = &Result{Mean: mean, StdDev: std}
	e.logger.Debug("evolution: run complete", "mean", mean, "std_dev", std)
	return *e.result, nil
}

// Result returns the summary of the last successful run.
func (e *Experiment) Result() (Result, bool) {
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

// Backend returns the backend of the most recent run, if any.
func (e *Experiment) Backend() backend.Backend {
	return e.backend
}
