// Package initialstate provides preparers that emit the circuit fragment
// putting a register into the experiment's initial state.
package initialstate

import (
	"errors"
	"fmt"
	"math"

	"github.com/seantiz/hamevo/internal/circuit"
)

// ErrSizeMismatch is returned when a preparer is asked to act on a register
// of a different size than it was configured for.
var ErrSizeMismatch = errors.New("initial state size does not match register")

// Preparer emits a state preparation fragment over a register.
type Preparer interface {
	ConstructCircuit(label string, reg circuit.Register) (*circuit.Circuit, error)
}

// Compile-time interface satisfaction checks.
var (
	_ Preparer = Zero{}
	_ Preparer = Uniform{}
	_ Preparer = (*Basis)(nil)
	_ Preparer = (*Vector)(nil)
)

// Zero leaves the register in |0...0>; its fragment is empty.
type Zero struct{}

// ConstructCircuit returns an empty circuit over reg.
func (Zero) ConstructCircuit(label string, reg circuit.Register) (*circuit.Circuit, error) {
	return circuit.New(label, reg), nil
}

// Uniform prepares the equal superposition of all basis states.
type Uniform struct{}

// ConstructCircuit applies h to every qubit.
func (Uniform) ConstructCircuit(label string, reg circuit.Register) (*circuit.Circuit, error) {
	c := circuit.New(label, reg)
	for q := 0; q < reg.Size; q++ {
		if err := c.Append(circuit.Instruction{Name: circuit.GateH, Qubits: []int{q}}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Basis prepares a computational basis state given as a bitstring with
// qubit 0 as the rightmost character.
type Basis struct {
	bits string
}

// NewBasis validates bits.
func NewBasis(bits string) (*Basis, error) {
	if bits == "" {
		return nil, fmt.Errorf("basis state: empty bitstring")
	}
	for i := 0; i < len(bits); i++ {
		if bits[i] != '0' && bits[i] != '1' {
			return nil, fmt.Errorf("basis state %q: invalid character %q", bits, bits[i])
		}
	}
	return &Basis{bits: bits}, nil
}

// ConstructCircuit applies x to every qubit whose bit is set.
func (b *Basis) ConstructCircuit(label string, reg circuit.Register) (*circuit.Circuit, error) {
	if len(b.bits) != reg.Size {
		return nil, fmt.Errorf("basis state %q on %d-qubit register: %w", b.bits, reg.Size, ErrSizeMismatch)
	}
	c := circuit.New(label, reg)
	for q := 0; q < reg.Size; q++ {
		if b.bits[len(b.bits)-1-q] == '1' {
			if err := c.Append(circuit.Instruction{Name: circuit.GateX, Qubits: []int{q}}); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Vector prepares an arbitrary state from its amplitudes.
type Vector struct {
	amplitudes []complex128
}

// NewVector normalizes amplitudes, whose length must be a power of two.
func NewVector(amplitudes []complex128) (*Vector, error) {
	n := len(amplitudes)
	if n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("state vector: length %d is not a power of two >= 2", n)
	}
	var norm float64
	for _, a := range amplitudes {
		norm += real(a)*real(a) + imag(a)*imag(a)
	}
	if norm == 0 {
		return nil, fmt.Errorf("state vector: zero norm")
	}
	scale := complex(1/math.Sqrt(norm), 0)
	out := make([]complex128, n)
	for i, a := range amplitudes {
		out[i] = a * scale
	}
	return &Vector{amplitudes: out}, nil
}

// ConstructCircuit emits a single initialize instruction over the register.
func (v *Vector) ConstructCircuit(label string, reg circuit.Register) (*circuit.Circuit, error) {
	if len(v.amplitudes) != 1<<reg.Size {
		return nil, fmt.Errorf("state vector of length %d on %d-qubit register: %w", len(v.amplitudes), reg.Size, ErrSizeMismatch)
	}
	qubits := make([]int, reg.Size)
	for q := range qubits {
		qubits[q] = q
	}
	amps := make([]complex128, len(v.amplitudes))
	copy(amps, v.amplitudes)

	c := circuit.New(label, reg)
	if err := c.Append(circuit.Instruction{Name: circuit.OpInitialize, Qubits: qubits, Amplitudes: amps}); err != nil {
		return nil, err
	}
	return c, nil
}
