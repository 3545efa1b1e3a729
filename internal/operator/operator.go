// Package operator defines the operator contracts consumed by evolution
// experiments and the weighted Pauli sum that serves as their canonical form.
package operator

import (
	"errors"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/circuit"
)

// ExpansionMode selects the product formula used to slice the evolution.
type ExpansionMode string

// Supported expansion modes.
const (
	Trotter ExpansionMode = "trotter"
	Suzuki  ExpansionMode = "suzuki"
)

// Valid reports whether m is a supported expansion mode.
func (m ExpansionMode) Valid() bool {
	return m == Trotter || m == Suzuki
}

// ErrEmptyOperator is returned when an operator has no qubits.
var ErrEmptyOperator = errors.New("operator acts on zero qubits")

// EvolutionParams configures the product formula approximating exp(-i*H*Time).
type EvolutionParams struct {
	Time      float64
	NumSlices int
	Mode      ExpansionMode
	Order     int
}

// Operator is any operator representation that can be normalized to the
// canonical form.
type Operator interface {
	NumQubits() int

	// ToCanonical converts the operator to the canonical representation.
	// Converting an operator that is already canonical returns it unchanged.
	ToCanonical() (Canonical, error)
}

// Canonical is the normalized operator representation used for evolution and
// evaluation.
type Canonical interface {
	Operator

	// Evolve returns the circuit fragment approximating exp(-i*H*t) over reg.
	Evolve(params EvolutionParams, reg circuit.Register) (*circuit.Circuit, error)

	// BuildEvaluationCircuits wraps a state preparation circuit with whatever
	// the backend mode needs to estimate the operator's expectation value.
	BuildEvaluationCircuits(wavefn *circuit.Circuit, statevector bool) ([]*circuit.Circuit, error)

	// EvaluateWithResult reduces the backend result of the circuits built by
	// BuildEvaluationCircuits to a mean and a standard deviation.
	EvaluateWithResult(res *backend.Result, statevector bool) (complex128, float64, error)
}
