package evolution_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/backend/qasm"
	"github.com/seantiz/hamevo/internal/backend/statevector"
	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/evolution"
	"github.com/seantiz/hamevo/internal/initialstate"
	"github.com/seantiz/hamevo/internal/operator"
)

func pauliOp(t *testing.T, terms ...operator.Term) *operator.WeightedPauli {
	t.Helper()
	op, err := operator.NewWeightedPauli(terms...)
	require.NoError(t, err)
	return op
}

// spyOperator records which evaluation variants the experiment asked for.
type spyOperator struct {
	*operator.WeightedPauli
	buildModes []bool
	evalModes  []bool
}

func (s *spyOperator) ToCanonical() (operator.Canonical, error) {
	return s, nil
}

func (s *spyOperator) BuildEvaluationCircuits(wavefn *circuit.Circuit, sv bool) ([]*circuit.Circuit, error) {
	s.buildModes = append(s.buildModes, sv)
	return s.WeightedPauli.BuildEvaluationCircuits(wavefn, sv)
}

func (s *spyOperator) EvaluateWithResult(res *backend.Result, sv bool) (complex128, float64, error) {
	s.evalModes = append(s.evalModes, sv)
	return s.WeightedPauli.EvaluateWithResult(res, sv)
}

type failingOperator struct {
	err error
}

func (f failingOperator) NumQubits() int { return 1 }

func (f failingOperator) ToCanonical() (operator.Canonical, error) { return nil, f.err }

type failingPreparer struct {
	err error
}

func (f failingPreparer) ConstructCircuit(string, circuit.Register) (*circuit.Circuit, error) {
	return nil, f.err
}

type failingBackend struct {
	err   error
	calls int
}

func (f *failingBackend) Execute(context.Context, []*circuit.Circuit) (*backend.Result, error) {
	f.calls++
	return nil, f.err
}

func (f *failingBackend) IsStatevector() bool { return true }

func (f *failingBackend) Capabilities() backend.BackendCapabilities {
	return backend.BackendCapabilities{Name: "failing", Statevector: true}
}

func TestDefaultConfig(t *testing.T) {
	cfg := evolution.DefaultConfig()
	assert.Equal(t, 1.0, cfg.EvoTime)
	assert.Equal(t, 1, cfg.NumTimeSlices)
	assert.Equal(t, operator.Trotter, cfg.ExpansionMode)
	assert.Equal(t, 1, cfg.ExpansionOrder)
	assert.NoError(t, cfg.Validate())
}

func TestNewValidation(t *testing.T) {
	z := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})

	tests := []struct {
		name      string
		mutate    func(*evolution.Config)
		wantField string
	}{
		{name: "negative evo_time", mutate: func(c *evolution.Config) { c.EvoTime = -0.1 }, wantField: evolution.FieldEvoTime},
		{name: "zero evo_time", mutate: func(c *evolution.Config) { c.EvoTime = 0 }},
		{name: "large evo_time", mutate: func(c *evolution.Config) { c.EvoTime = 1e6 }},
		{name: "negative slices", mutate: func(c *evolution.Config) { c.NumTimeSlices = -1 }, wantField: evolution.FieldNumTimeSlices},
		{name: "zero slices", mutate: func(c *evolution.Config) { c.NumTimeSlices = 0 }},
		{name: "unknown mode", mutate: func(c *evolution.Config) { c.ExpansionMode = "magnus" }, wantField: evolution.FieldExpansionMode},
		{name: "empty mode", mutate: func(c *evolution.Config) { c.ExpansionMode = "" }, wantField: evolution.FieldExpansionMode},
		{name: "suzuki mode", mutate: func(c *evolution.Config) { c.ExpansionMode = operator.Suzuki }},
		{name: "zero order", mutate: func(c *evolution.Config) { c.ExpansionOrder = 0 }, wantField: evolution.FieldExpansionOrder},
		{name: "negative order", mutate: func(c *evolution.Config) { c.ExpansionOrder = -3 }, wantField: evolution.FieldExpansionOrder},
		{name: "order one", mutate: func(c *evolution.Config) { c.ExpansionOrder = 1 }},
		{name: "order four", mutate: func(c *evolution.Config) { c.ExpansionOrder = 4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := evolution.DefaultConfig()
			tt.mutate(&cfg)

			exp, err := evolution.New(z, initialstate.Zero{}, z, cfg)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.NotNil(t, exp)
				return
			}

			assert.Nil(t, exp)
			require.True(t, errors.Is(err, evolution.ErrInvalidParameter), "err = %v", err)
			var ipe *evolution.InvalidParameterError
			require.True(t, errors.As(err, &ipe))
			assert.Equal(t, tt.wantField, ipe.Field)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestNewValidationOrder(t *testing.T) {
	z := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	cfg := evolution.Config{EvoTime: -1, NumTimeSlices: -1, ExpansionMode: "bogus", ExpansionOrder: 0}

	_, err := evolution.New(z, initialstate.Zero{}, z, cfg)
	var ipe *evolution.InvalidParameterError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, evolution.FieldEvoTime, ipe.Field)
	assert.Equal(t, -1.0, ipe.Value)

	cfg.EvoTime = 0
	_, err = evolution.New(z, initialstate.Zero{}, z, cfg)
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, evolution.FieldNumTimeSlices, ipe.Field)

	cfg.NumTimeSlices = 0
	_, err = evolution.New(z, initialstate.Zero{}, z, cfg)
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, evolution.FieldExpansionMode, ipe.Field)
	assert.Equal(t, "bogus", ipe.Value)
}

func TestNewValidatesBeforeCanonicalizing(t *testing.T) {
	bad := failingOperator{err: errors.New("cannot canonicalize")}
	cfg := evolution.DefaultConfig()
	cfg.ExpansionOrder = 0

	_, err := evolution.New(bad, initialstate.Zero{}, bad, cfg)
	assert.True(t, errors.Is(err, evolution.ErrInvalidParameter))
}

func TestNewReturnsConversionErrorUnchanged(t *testing.T) {
	convErr := errors.New("cannot canonicalize")
	z := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})

	exp, err := evolution.New(failingOperator{err: convErr}, initialstate.Zero{}, z, evolution.DefaultConfig())
	assert.Nil(t, exp)
	assert.Same(t, convErr, err)

	exp, err = evolution.New(z, initialstate.Zero{}, failingOperator{err: convErr}, evolution.DefaultConfig())
	assert.Nil(t, exp)
	assert.Same(t, convErr, err)
}

func TestNewCanonicalizesMatrixOperator(t *testing.T) {
	m, err := operator.NewMatrixOperator([][]complex128{{1, 0}, {0, -1}})
	require.NoError(t, err)
	x := pauliOp(t, operator.Term{Coeff: 1, Pauli: "X"})

	exp, err := evolution.New(m, initialstate.Zero{}, x, evolution.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, exp.NumQubits())
}

func TestBuildCircuitIdentityEvolution(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	identity := pauliOp(t, operator.Term{Coeff: 1, Pauli: "I"})

	exp, err := evolution.New(obs, initialstate.Zero{}, identity, evolution.DefaultConfig())
	require.NoError(t, err)

	qc, err := exp.BuildCircuit()
	require.NoError(t, err)

	want, err := identity.Evolve(operator.EvolutionParams{Time: 1, NumSlices: 1, Mode: operator.Trotter, Order: 1}, circuit.NewRegister("q", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, qc.NumQubits)
	assert.True(t, want.Equal(qc))
}

func TestBuildCircuitIsPrefixThenEvolution(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "ZZ"})
	evo := pauliOp(t,
		operator.Term{Coeff: 0.5, Pauli: "XX"},
		operator.Term{Coeff: 0.25, Pauli: "ZI"},
	)
	prep, err := initialstate.NewBasis("01")
	require.NoError(t, err)

	cfg := evolution.Config{EvoTime: 2, NumTimeSlices: 3, ExpansionMode: operator.Suzuki, ExpansionOrder: 2}
	exp, err := evolution.New(obs, prep, evo, cfg)
	require.NoError(t, err)

	first, err := exp.BuildCircuit()
	require.NoError(t, err)
	second, err := exp.BuildCircuit()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, first.NumQubits, second.NumQubits)
	assert.True(t, first.Equal(second))

	reg := circuit.NewRegister("q", 2)
	prefix, err := prep.ConstructCircuit("circuit", reg)
	require.NoError(t, err)
	suffix, err := evo.Evolve(operator.EvolutionParams{Time: 2, NumSlices: 3, Mode: operator.Suzuki, Order: 2}, reg)
	require.NoError(t, err)

	require.Equal(t, prefix.Len()+suffix.Len(), first.Len())
	for i, in := range prefix.Instructions {
		assert.True(t, in.Equal(first.Instructions[i]), "prefix instruction %d", i)
	}
	for i, in := range suffix.Instructions {
		assert.True(t, in.Equal(first.Instructions[prefix.Len()+i]), "evolution instruction %d", i)
	}
}

func TestBuildCircuitZeroSlices(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	cfg := evolution.DefaultConfig()
	cfg.NumTimeSlices = 0

	exp, err := evolution.New(obs, initialstate.Uniform{}, obs, cfg)
	require.NoError(t, err)

	qc, err := exp.BuildCircuit()
	require.NoError(t, err)
	require.Equal(t, 1, qc.Len())
	assert.Equal(t, circuit.GateH, qc.Instructions[0].Name)
}

func TestBuildCircuitWidthMismatchSurfacesFromCollaborator(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	evo := pauliOp(t, operator.Term{Coeff: 1, Pauli: "XX"})

	exp, err := evolution.New(obs, initialstate.Zero{}, evo, evolution.DefaultConfig())
	require.NoError(t, err)

	_, err = exp.BuildCircuit()
	assert.True(t, errors.Is(err, circuit.ErrWidthMismatch))
}

func TestBuildCircuitReturnsPreparerErrorUnchanged(t *testing.T) {
	prepErr := errors.New("preparer failed")
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})

	exp, err := evolution.New(obs, failingPreparer{err: prepErr}, obs, evolution.DefaultConfig())
	require.NoError(t, err)

	_, err = exp.BuildCircuit()
	assert.Same(t, prepErr, err)
}

func TestEvolutionSizeEstimatesBuiltFragment(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "ZZ"})
	evo := pauliOp(t,
		operator.Term{Coeff: 0.5, Pauli: "XX"},
		operator.Term{Coeff: 0.25, Pauli: "ZI"},
	)
	cfg := evolution.Config{EvoTime: 1, NumTimeSlices: 4, ExpansionMode: operator.Suzuki, ExpansionOrder: 2}
	exp, err := evolution.New(obs, initialstate.Zero{}, evo, cfg)
	require.NoError(t, err)

	n, ok := exp.EvolutionSize()
	require.True(t, ok)
	assert.Equal(t, float64(4*2*5*2), n)

	qc, err := exp.BuildCircuit()
	require.NoError(t, err)
	assert.Equal(t, n, float64(qc.Len()))
}

func TestRunPassesBuiltCircuitToObserver(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	x := pauliOp(t, operator.Term{Coeff: 1, Pauli: "X"})

	var seen []*circuit.Circuit
	exp, err := evolution.New(obs, initialstate.Zero{}, x, evolution.DefaultConfig(),
		evolution.WithCircuitObserver(func(qc *circuit.Circuit) { seen = append(seen, qc) }))
	require.NoError(t, err)

	_, err = exp.Run(context.Background(), statevector.New(0, nil))
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, 1, seen[0].NumQubits)
	assert.Equal(t, 1, seen[0].Len())
}

func TestRunSkipsObserverWhenBuildFails(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	evo := pauliOp(t, operator.Term{Coeff: 1, Pauli: "XX"})

	called := false
	exp, err := evolution.New(obs, initialstate.Zero{}, evo, evolution.DefaultConfig(),
		evolution.WithCircuitObserver(func(*circuit.Circuit) { called = true }))
	require.NoError(t, err)

	_, err = exp.Run(context.Background(), statevector.New(0, nil))
	assert.True(t, errors.Is(err, circuit.ErrWidthMismatch))
	assert.False(t, called)
}

func TestRunStatevectorUsesStatevectorVariants(t *testing.T) {
	spy := &spyOperator{WeightedPauli: pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})}
	x := pauliOp(t, operator.Term{Coeff: 1, Pauli: "X"})

	exp, err := evolution.New(spy, initialstate.Zero{}, x, evolution.DefaultConfig())
	require.NoError(t, err)

	_, err = exp.Run(context.Background(), statevector.New(0, nil))
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, spy.buildModes)
	assert.Equal(t, []bool{true}, spy.evalModes)
}

func TestRunSamplingUsesSamplingVariants(t *testing.T) {
	spy := &spyOperator{WeightedPauli: pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})}
	x := pauliOp(t, operator.Term{Coeff: 1, Pauli: "X"})

	exp, err := evolution.New(spy, initialstate.Zero{}, x, evolution.DefaultConfig())
	require.NoError(t, err)

	_, err = exp.Run(context.Background(), qasm.New(qasm.Options{Shots: 64, Seed: 7}, nil))
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, spy.buildModes)
	assert.Equal(t, []bool{false}, spy.evalModes)
}

func TestRunStatevectorAccuracy(t *testing.T) {
	// exp(-i*pi/4*X)|0> = (|0> - i|1>)/sqrt(2), so <Z> = 0 and <Y> = -1.
	obs := pauliOp(t,
		operator.Term{Coeff: 1, Pauli: "Z"},
		operator.Term{Coeff: 0.5, Pauli: "Y"},
	)
	x := pauliOp(t, operator.Term{Coeff: 1, Pauli: "X"})
	cfg := evolution.DefaultConfig()
	cfg.EvoTime = math.Pi / 4

	exp, err := evolution.New(obs, initialstate.Zero{}, x, cfg)
	require.NoError(t, err)

	res, err := exp.Run(context.Background(), statevector.New(0, nil))
	require.NoError(t, err)
	assert.InDelta(t, -0.5, real(res.Mean), 1e-9)
	assert.InDelta(t, 0, imag(res.Mean), 1e-9)
	assert.Equal(t, 0.0, res.StdDev)

	stored, ok := exp.Result()
	require.True(t, ok)
	assert.Equal(t, res, stored)
}

func TestRunSamplingStdDevNonNegative(t *testing.T) {
	obs := pauliOp(t,
		operator.Term{Coeff: 1, Pauli: "ZI"},
		operator.Term{Coeff: -0.5, Pauli: "XX"},
		operator.Term{Coeff: 0.2, Pauli: "II"},
	)
	evo := pauliOp(t, operator.Term{Coeff: 0.7, Pauli: "XY"})

	exp, err := evolution.New(obs, initialstate.Uniform{}, evo, evolution.DefaultConfig())
	require.NoError(t, err)

	res, err := exp.Run(context.Background(), qasm.New(qasm.Options{Shots: 256, Seed: 42}, nil))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.StdDev, 0.0)
	assert.LessOrEqual(t, math.Abs(real(res.Mean)), 1.7+1e-9)
}

func TestRunAgreesAcrossBackends(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	evo := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Y"})
	cfg := evolution.DefaultConfig()
	cfg.EvoTime = 0.3

	exact, err := evolution.New(obs, initialstate.Zero{}, evo, cfg)
	require.NoError(t, err)
	want, err := exact.Run(context.Background(), statevector.New(0, nil))
	require.NoError(t, err)

	sampled, err := evolution.New(obs, initialstate.Zero{}, evo, cfg)
	require.NoError(t, err)
	got, err := sampled.Run(context.Background(), qasm.New(qasm.Options{Shots: 20000, Seed: 3}, nil))
	require.NoError(t, err)

	assert.InDelta(t, math.Cos(0.6), real(want.Mean), 1e-9)
	assert.InDelta(t, real(want.Mean), real(got.Mean), 0.05)
	assert.Greater(t, got.StdDev, 0.0)
}

func TestRunBackendErrorKeepsPreviousResult(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	exp, err := evolution.New(obs, initialstate.Zero{}, obs, evolution.DefaultConfig())
	require.NoError(t, err)

	_, ok := exp.Result()
	assert.False(t, ok)

	first, err := exp.Run(context.Background(), statevector.New(0, nil))
	require.NoError(t, err)
	assert.InDelta(t, 1, real(first.Mean), 1e-9)

	execErr := errors.New("device offline")
	fb := &failingBackend{err: execErr}
	_, err = exp.Run(context.Background(), fb)
	assert.Same(t, execErr, err)
	assert.Equal(t, 1, fb.calls)
	assert.Same(t, fb, exp.Backend())

	stored, ok := exp.Result()
	require.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestRunHonorsCancellation(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"})
	cfg := evolution.DefaultConfig()
	cfg.NumTimeSlices = 500

	exp, err := evolution.New(obs, initialstate.Uniform{}, obs, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Run(ctx, statevector.New(0, nil))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSharedOperatorsAreNotMutated(t *testing.T) {
	obs := pauliOp(t, operator.Term{Coeff: 1, Pauli: "Z"}, operator.Term{Coeff: 0.5, Pauli: "X"})
	before := obs.Terms()

	for _, mode := range []operator.ExpansionMode{operator.Trotter, operator.Suzuki} {
		cfg := evolution.DefaultConfig()
		cfg.ExpansionMode = mode
		exp, err := evolution.New(obs, initialstate.Uniform{}, obs, cfg)
		require.NoError(t, err)
		_, err = exp.Run(context.Background(), statevector.New(0, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, before, obs.Terms())
}
