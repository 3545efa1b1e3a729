package operator

import (
	"fmt"
	"math"
	"strconv"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/circuit"
)

// StatevectorCircuitName names the single circuit built in statevector mode.
const StatevectorCircuitName = "psi"

// MeasurementCircuitName names the sampling circuit that measures p.
func MeasurementCircuitName(p circuit.Pauli) string {
	return StatevectorCircuitName + "_" + string(p)
}

// BuildEvaluationCircuits returns the wave function itself in statevector mode.
// In sampling mode it returns one measured circuit per non-identity term, with
// each factor rotated into the Z basis (X: h, Y: sdg then h).
func (w *WeightedPauli) BuildEvaluationCircuits(wavefn *circuit.Circuit, statevector bool) ([]*circuit.Circuit, error) {
	if wavefn.NumQubits != w.numQubits {
		return nil, fmt.Errorf("evaluate %d-qubit operator on %d-qubit circuit: %w", w.numQubits, wavefn.NumQubits, circuit.ErrWidthMismatch)
	}
	if statevector {
		return []*circuit.Circuit{wavefn.Clone(StatevectorCircuitName)}, nil
	}

	var out []*circuit.Circuit
	for _, t := range w.terms {
		if t.Pauli.IsIdentity() {
			continue
		}
		c := wavefn.Clone(MeasurementCircuitName(t.Pauli))
		for q := 0; q < w.numQubits; q++ {
			var err error
			switch t.Pauli.Op(q) {
			case 'X':
				err = c.Append(circuit.Instruction{Name: circuit.GateH, Qubits: []int{q}})
			case 'Y':
				err = c.Append(
					circuit.Instruction{Name: circuit.GateSdg, Qubits: []int{q}},
					circuit.Instruction{Name: circuit.GateH, Qubits: []int{q}},
				)
			}
			if err != nil {
				return nil, err
			}
		}
		if err := c.Append(circuit.Instruction{Name: circuit.OpBarrier}); err != nil {
			return nil, err
		}
		for q := 0; q < w.numQubits; q++ {
			if err := c.Append(circuit.Instruction{Name: circuit.OpMeasure, Qubits: []int{q}}); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// EvaluateWithResult computes the expectation value of the operator.
//
// In statevector mode the mean is exact and the standard deviation is zero. In
// sampling mode each term's parity average E contributes |c|^2*(1-E^2)/shots
// to the variance.
func (w *WeightedPauli) EvaluateWithResult(res *backend.Result, statevector bool) (complex128, float64, error) {
	if statevector {
		sv, err := res.Statevector(StatevectorCircuitName)
		if err != nil {
			return 0, 0, err
		}
		if len(sv) != 1<<w.numQubits {
			return 0, 0, fmt.Errorf("statevector has %d amplitudes, want %d", len(sv), 1<<w.numQubits)
		}
		var mean complex128
		for _, t := range w.terms {
			mean += t.Coeff * expectation(t.Pauli, sv)
		}
		return mean, 0, nil
	}

	var (
		mean     complex128
		variance float64
	)
	for _, t := range w.terms {
		if t.Pauli.IsIdentity() {
			mean += t.Coeff
			continue
		}
		counts, err := res.CountsFor(MeasurementCircuitName(t.Pauli))
		if err != nil {
			return 0, 0, err
		}
		e, shots, err := parityAverage(counts, t.Pauli.SupportMask())
		if err != nil {
			return 0, 0, err
		}
		mean += t.Coeff * complex(e, 0)
		mag := real(t.Coeff)*real(t.Coeff) + imag(t.Coeff)*imag(t.Coeff)
		variance += mag * math.Max(0, 1-e*e) / float64(shots)
	}
	return mean, math.Sqrt(variance), nil
}

// expectation returns <psi|P|psi>.
func expectation(p circuit.Pauli, sv []complex128) complex128 {
	var sum complex128
	for j, a := range sv {
		if a == 0 {
			continue
		}
		k, phase := p.Apply(j)
		b := sv[k]
		sum += complex(real(b), -imag(b)) * phase * a
	}
	return sum
}

// parityAverage returns the mean of (-1)^popcount(outcome & mask) over counts.
func parityAverage(counts map[string]int, mask int) (float64, int, error) {
	var sum, shots int
	for bits, n := range counts {
		idx, err := strconv.ParseInt(bits, 2, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parse outcome %q: %w", bits, err)
		}
		if parity(int(idx) & mask) {
			sum -= n
		} else {
			sum += n
		}
		shots += n
	}
	if shots == 0 {
		return 0, 0, fmt.Errorf("no shots recorded")
	}
	return float64(sum) / float64(shots), shots, nil
}

func parity(x int) bool {
	odd := false
	for x != 0 {
		odd = !odd
		x &= x - 1
	}
	return odd
}
