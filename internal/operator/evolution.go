package operator

import (
	"fmt"
	"math"

	"github.com/seantiz/hamevo/internal/circuit"
)

// Evolve returns the product formula approximating exp(-i*H*t) over reg.
//
// Each of the NumSlices slices evolves every non-identity term for t/NumSlices;
// Trotter mode applies the terms in order, Suzuki mode applies the symmetric
// recursive formula of the requested order. Identity terms only contribute a
// global phase and are omitted. Imaginary parts of coefficients are ignored.
func (w *WeightedPauli) Evolve(p EvolutionParams, reg circuit.Register) (*circuit.Circuit, error) {
	if reg.Size != w.numQubits {
		return nil, fmt.Errorf("evolve %d-qubit operator over %d-qubit register: %w", w.numQubits, reg.Size, circuit.ErrWidthMismatch)
	}
	if !p.Mode.Valid() {
		return nil, fmt.Errorf("evolve: unsupported expansion mode %q", p.Mode)
	}
	if p.Mode == Suzuki && p.Order < 1 {
		return nil, fmt.Errorf("evolve: expansion order %d, minimum 1", p.Order)
	}
	if p.NumSlices < 0 {
		return nil, fmt.Errorf("evolve: %d time slices", p.NumSlices)
	}

	c := circuit.New("evolution", reg)
	if p.NumSlices == 0 {
		return c, nil
	}

	terms := make([]Term, 0, len(w.terms))
	for _, t := range w.terms {
		if !t.Pauli.IsIdentity() {
			terms = append(terms, Term{Coeff: complex(real(t.Coeff), 0), Pauli: t.Pauli})
		}
	}

	slice := terms
	if p.Mode == Suzuki {
		slice = suzukiSlice(terms, 1, p.Order)
	}

	dt := p.Time / float64(p.NumSlices)
	for range p.NumSlices {
		for _, t := range slice {
			err := c.Append(circuit.Instruction{
				Name:   circuit.GatePauliEvolution,
				Pauli:  t.Pauli,
				Params: []float64{real(t.Coeff) * dt},
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// EvolutionSize returns the number of instructions Evolve emits for p without
// building them. The count is kept in floating point since deep Suzuki orders
// grow as 5^(order-1).
func (w *WeightedPauli) EvolutionSize(p EvolutionParams) float64 {
	n := 0
	for _, t := range w.terms {
		if !t.Pauli.IsIdentity() {
			n++
		}
	}
	perSlice := float64(n)
	if p.Mode == Suzuki {
		perSlice *= 2 * math.Pow(5, float64(p.Order-1))
	}
	return perSlice * float64(p.NumSlices)
}

// suzukiSlice returns the term sequence of one Suzuki slice of the given
// order, with every weight scaled by lambda.
func suzukiSlice(terms []Term, lambda float64, order int) []Term {
	if order == 1 {
		out := make([]Term, 0, 2*len(terms))
		for _, t := range terms {
			out = append(out, Term{Coeff: t.Coeff * complex(lambda/2, 0), Pauli: t.Pauli})
		}
		for i := len(terms) - 1; i >= 0; i-- {
			out = append(out, Term{Coeff: terms[i].Coeff * complex(lambda/2, 0), Pauli: terms[i].Pauli})
		}
		return out
	}

	pk := 1 / (4 - math.Pow(4, 1/float64(2*order-1)))
	side := suzukiSlice(terms, lambda*pk, order-1)
	middle := suzukiSlice(terms, lambda*(1-4*pk), order-1)

	out := make([]Term, 0, 4*len(side)+len(middle))
	out = append(out, side...)
	out = append(out, side...)
	out = append(out, middle...)
	out = append(out, side...)
	out = append(out, side...)
	return out
}
