package circuit

import (
	"errors"
	"fmt"
	"slices"
)

// Instruction names understood by the simulators.
const (
	GateH              = "h"
	GateX              = "x"
	GateY              = "y"
	GateZ              = "z"
	GateS              = "s"
	GateSdg            = "sdg"
	GateRX             = "rx"
	GateRY             = "ry"
	GateRZ             = "rz"
	GateCX             = "cx"
	GatePauliEvolution = "pauli_evolution"
	OpInitialize       = "initialize"
	OpMeasure          = "measure"
	OpBarrier          = "barrier"
)

// ErrWidthMismatch is returned when two circuits of different widths are combined.
var ErrWidthMismatch = errors.New("circuit width mismatch")

// Register is a named block of qubits a circuit is built over.
type Register struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// NewRegister creates a register of size qubits.
func NewRegister(name string, size int) Register {
	return Register{Name: name, Size: size}
}

// Instruction is a single operation in a circuit.
//
// Params carries rotation angles. Pauli is set for pauli_evolution, which
// applies exp(-i*Params[0]*Pauli). Amplitudes is set for initialize.
type Instruction struct {
	Name       string       `json:"name"`
	Qubits     []int        `json:"qubits,omitempty"`
	Params     []float64    `json:"params,omitempty"`
	Pauli      Pauli        `json:"pauli,omitempty"`
	Amplitudes []complex128 `json:"-"`
}

// Equal reports whether two instructions are identical.
func (in Instruction) Equal(other Instruction) bool {
	return in.Name == other.Name &&
		in.Pauli == other.Pauli &&
		slices.Equal(in.Qubits, other.Qubits) &&
		slices.Equal(in.Params, other.Params) &&
		slices.Equal(in.Amplitudes, other.Amplitudes)
}

// Circuit is an ordered list of instructions over a fixed number of qubits.
type Circuit struct {
	Name         string        `json:"name"`
	NumQubits    int           `json:"num_qubits"`
	Instructions []Instruction `json:"instructions"`
}

// New creates an empty circuit over reg.
func New(name string, reg Register) *Circuit {
	return &Circuit{Name: name, NumQubits: reg.Size}
}

// Append adds instructions to the end of the circuit. Qubit indices must be
// within the circuit width.
func (c *Circuit) Append(ins ...Instruction) error {
	for _, in := range ins {
		for _, q := range in.Qubits {
			if q < 0 || q >= c.NumQubits {
				return fmt.Errorf("instruction %s: qubit %d out of range [0,%d)", in.Name, q, c.NumQubits)
			}
		}
		if in.Pauli != "" && in.Pauli.NumQubits() != c.NumQubits {
			return fmt.Errorf("instruction %s: pauli %s on %d-qubit circuit: %w", in.Name, in.Pauli, c.NumQubits, ErrWidthMismatch)
		}
		c.Instructions = append(c.Instructions, in)
	}
	return nil
}

// Extend appends every instruction of other. Both circuits must have the same width.
func (c *Circuit) Extend(other *Circuit) error {
	if other.NumQubits != c.NumQubits {
		return fmt.Errorf("extend %d-qubit circuit with %d-qubit circuit: %w", c.NumQubits, other.NumQubits, ErrWidthMismatch)
	}
	c.Instructions = append(c.Instructions, other.Instructions...)
	return nil
}

// Clone returns a deep copy of the circuit under a new name.
func (c *Circuit) Clone(name string) *Circuit {
	out := &Circuit{Name: name, NumQubits: c.NumQubits}
	out.Instructions = make([]Instruction, len(c.Instructions))
	for i, in := range c.Instructions {
		out.Instructions[i] = Instruction{
			Name:       in.Name,
			Qubits:     slices.Clone(in.Qubits),
			Params:     slices.Clone(in.Params),
			Pauli:      in.Pauli,
			Amplitudes: slices.Clone(in.Amplitudes),
		}
	}
	return out
}

// Len returns the number of instructions.
func (c *Circuit) Len() int {
	return len(c.Instructions)
}

// Measured reports whether the circuit contains a measurement.
func (c *Circuit) Measured() bool {
	for _, in := range c.Instructions {
		if in.Name == OpMeasure {
			return true
		}
	}
	return false
}

// Equal reports whether two circuits have the same width and instruction
// sequence. Names are not compared.
func (c *Circuit) Equal(other *Circuit) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.NumQubits != other.NumQubits || len(c.Instructions) != len(other.Instructions) {
		return false
	}
	for i := range c.Instructions {
		if !c.Instructions[i].Equal(other.Instructions[i]) {
			return false
		}
	}
	return true
}
