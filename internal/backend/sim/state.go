package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/seantiz/hamevo/internal/circuit"
)

// ctxCheckInterval is how many instructions are applied between context checks.
const ctxCheckInterval = 64

// ErrTooManyQubits is returned when a circuit exceeds the simulator width.
var ErrTooManyQubits = errors.New("circuit exceeds simulator qubit limit")

// State is a dense statevector. Bit q of an amplitude index is the value of qubit q.
type State struct {
	NumQubits  int
	Amplitudes []complex128
}

// NewState returns |0...0> over n qubits.
func NewState(n int) *State {
	amps := make([]complex128, 1<<n)
	amps[0] = 1
	return &State{NumQubits: n, Amplitudes: amps}
}

// Simulate runs c from |0...0> and returns the final state. Measurement and
// barrier instructions do not alter the state.
func Simulate(ctx context.Context, c *circuit.Circuit, maxQubits int) (*State, error) {
	if c.NumQubits > maxQubits {
		return nil, fmt.Errorf("circuit %q has %d qubits, limit %d: %w", c.Name, c.NumQubits, maxQubits, ErrTooManyQubits)
	}
	s := NewState(c.NumQubits)
	for i, in := range c.Instructions {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := s.Apply(in); err != nil {
			return nil, fmt.Errorf("circuit %q instruction %d: %w", c.Name, i, err)
		}
	}
	return s, nil
}

// Apply applies a single instruction to the state.
func (s *State) Apply(in circuit.Instruction) error {
	switch in.Name {
	case circuit.GateH:
		h := complex(1/math.Sqrt2, 0)
		return s.apply1(in, [2][2]complex128{{h, h}, {h, -h}})
	case circuit.GateX:
		return s.apply1(in, [2][2]complex128{{0, 1}, {1, 0}})
	case circuit.GateY:
		return s.apply1(in, [2][2]complex128{{0, -1i}, {1i, 0}})
	case circuit.GateZ:
		return s.apply1(in, [2][2]complex128{{1, 0}, {0, -1}})
	case circuit.GateS:
		return s.apply1(in, [2][2]complex128{{1, 0}, {0, 1i}})
	case circuit.GateSdg:
		return s.apply1(in, [2][2]complex128{{1, 0}, {0, -1i}})
	case circuit.GateRX, circuit.GateRY, circuit.GateRZ:
		if len(in.Params) != 1 {
			return fmt.Errorf("%s expects 1 parameter, got %d", in.Name, len(in.Params))
		}
		return s.apply1(in, rotation(in.Name, in.Params[0]))
	case circuit.GateCX:
		return s.applyCX(in)
	case circuit.GatePauliEvolution:
		return s.applyPauliEvolution(in)
	case circuit.OpInitialize:
		return s.initialize(in.Amplitudes)
	case circuit.OpMeasure, circuit.OpBarrier:
		return nil
	default:
		return fmt.Errorf("unsupported instruction %q", in.Name)
	}
}

func rotation(name string, theta float64) [2][2]complex128 {
	c := complex(math.Cos(theta/2), 0)
	sn := math.Sin(theta / 2)
	switch name {
	case circuit.GateRX:
		return [2][2]complex128{{c, complex(0, -sn)}, {complex(0, -sn), c}}
	case circuit.GateRY:
		return [2][2]complex128{{c, complex(-sn, 0)}, {complex(sn, 0), c}}
	default:
		return [2][2]complex128{{cmplx.Exp(complex(0, -theta/2)), 0}, {0, cmplx.Exp(complex(0, theta/2))}}
	}
}

func (s *State) apply1(in circuit.Instruction, m [2][2]complex128) error {
	if len(in.Qubits) != 1 {
		return fmt.Errorf("%s expects 1 qubit, got %d", in.Name, len(in.Qubits))
	}
	bit := 1 << in.Qubits[0]
	for i := range s.Amplitudes {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
		s.Amplitudes[i] = m[0][0]*a0 + m[0][1]*a1
		s.Amplitudes[j] = m[1][0]*a0 + m[1][1]*a1
	}
	return nil
}

func (s *State) applyCX(in circuit.Instruction) error {
	if len(in.Qubits) != 2 || in.Qubits[0] == in.Qubits[1] {
		return fmt.Errorf("cx expects 2 distinct qubits, got %v", in.Qubits)
	}
	ctrl, tgt := 1<<in.Qubits[0], 1<<in.Qubits[1]
	for i := range s.Amplitudes {
		if i&ctrl != 0 && i&tgt == 0 {
			j := i | tgt
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
	return nil
}

// applyPauliEvolution applies exp(-i*theta*P) = cos(theta)*I - i*sin(theta)*P,
// which holds because every Pauli string squares to the identity.
func (s *State) applyPauliEvolution(in circuit.Instruction) error {
	if len(in.Params) != 1 {
		return fmt.Errorf("%s expects 1 parameter, got %d", in.Name, len(in.Params))
	}
	if in.Pauli.NumQubits() != s.NumQubits {
		return fmt.Errorf("%s: pauli %q on %d-qubit state: %w", in.Name, in.Pauli, s.NumQubits, circuit.ErrWidthMismatch)
	}
	theta := in.Params[0]
	c := complex(math.Cos(theta), 0)
	sn := complex(0, -math.Sin(theta))
	out := make([]complex128, len(s.Amplitudes))
	for j, a := range s.Amplitudes {
		if a == 0 {
			continue
		}
		k, phase := in.Pauli.Apply(j)
		out[j] += c * a
		out[k] += sn * phase * a
	}
	s.Amplitudes = out
	return nil
}

func (s *State) initialize(amps []complex128) error {
	if len(amps) != len(s.Amplitudes) {
		return fmt.Errorf("initialize: %d amplitudes for %d-qubit state", len(amps), s.NumQubits)
	}
	copy(s.Amplitudes, amps)
	return nil
}

// Probabilities returns |amplitude|^2 for every basis state.
func (s *State) Probabilities() []float64 {
	p := make([]float64, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		re, im := real(a), imag(a)
		p[i] = re*re + im*im
	}
	return p
}

// Sample draws shots basis states according to the state's probabilities and
// returns a histogram keyed by bitstring.
func (s *State) Sample(rng *rand.Rand, shots int) map[string]int {
	probs := s.Probabilities()
	cdf := make([]float64, len(probs))
	var total float64
	for i, p := range probs {
		total += p
		cdf[i] = total
	}

	counts := make(map[string]int)
	for range shots {
		r := rng.Float64() * total
		idx := sort.SearchFloat64s(cdf, r)
		if idx >= len(cdf) {
			idx = len(cdf) - 1
		}
		counts[Bitstring(idx, s.NumQubits)]++
	}
	return counts
}

// Bitstring formats a basis index with qubit 0 as the rightmost character.
func Bitstring(idx, n int) string {
	b := strconv.FormatInt(int64(idx), 2)
	if len(b) < n {
		b = strings.Repeat("0", n-len(b)) + b
	}
	return b
}
