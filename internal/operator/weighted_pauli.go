package operator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seantiz/hamevo/internal/circuit"
)

// Term is a single weighted Pauli string.
type Term struct {
	Coeff complex128
	Pauli circuit.Pauli
}

// Compile-time interface satisfaction check.
var _ Canonical = (*WeightedPauli)(nil)

// WeightedPauli is a sum of weighted Pauli strings over a fixed number of
// qubits. It is immutable once built.
type WeightedPauli struct {
	numQubits int
	terms     []Term
}

// NewWeightedPauli builds an operator from terms. Terms with the same label are
// merged, zero-weight terms are dropped and the remaining terms keep the order
// in which their label first appeared.
func NewWeightedPauli(terms ...Term) (*WeightedPauli, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("weighted pauli: no terms")
	}
	n := terms[0].Pauli.NumQubits()
	if n == 0 {
		return nil, ErrEmptyOperator
	}

	index := make(map[circuit.Pauli]int, len(terms))
	merged := make([]Term, 0, len(terms))
	for _, t := range terms {
		p, err := circuit.ParsePauli(string(t.Pauli))
		if err != nil {
			return nil, fmt.Errorf("weighted pauli: %w", err)
		}
		if p.NumQubits() != n {
			return nil, fmt.Errorf("weighted pauli: term %s acts on %d qubits, want %d", p, p.NumQubits(), n)
		}
		if i, ok := index[p]; ok {
			merged[i].Coeff += t.Coeff
			continue
		}
		index[p] = len(merged)
		merged = append(merged, Term{Coeff: t.Coeff, Pauli: p})
	}

	kept := merged[:0]
	for _, t := range merged {
		if t.Coeff != 0 {
			kept = append(kept, t)
		}
	}
	return &WeightedPauli{numQubits: n, terms: kept}, nil
}

// MustWeightedPauli is like NewWeightedPauli but panics on error.
func MustWeightedPauli(terms ...Term) *WeightedPauli {
	op, err := NewWeightedPauli(terms...)
	if err != nil {
		panic(err)
	}
	return op
}

// NumQubits returns the operator width.
func (w *WeightedPauli) NumQubits() int {
	return w.numQubits
}

// ToCanonical returns w itself.
func (w *WeightedPauli) ToCanonical() (Canonical, error) {
	return w, nil
}

// Terms returns a copy of the operator's terms.
func (w *WeightedPauli) Terms() []Term {
	out := make([]Term, len(w.terms))
	copy(out, w.terms)
	return out
}

// IsZero reports whether every term cancelled out.
func (w *WeightedPauli) IsZero() bool {
	return len(w.terms) == 0
}

// Equal reports whether both operators hold the same weighted terms,
// regardless of order.
func (w *WeightedPauli) Equal(other *WeightedPauli) bool {
	if w.numQubits != other.numQubits || len(w.terms) != len(other.terms) {
		return false
	}
	coeffs := make(map[circuit.Pauli]complex128, len(w.terms))
	for _, t := range w.terms {
		coeffs[t.Pauli] = t.Coeff
	}
	for _, t := range other.terms {
		c, ok := coeffs[t.Pauli]
		if !ok || c != t.Coeff {
			return false
		}
	}
	return true
}

// String renders the operator as a sorted sum, e.g. "(1+0i)*ZZ + (0.5+0i)*XI".
func (w *WeightedPauli) String() string {
	if len(w.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(w.terms))
	for i, t := range w.terms {
		parts[i] = fmt.Sprintf("%v*%s", t.Coeff, t.Pauli)
	}
	sort.Strings(parts)
	return strings.Join(parts, " + ")
}
