package operator

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/seantiz/hamevo/internal/circuit"
)

// MaxMatrixQubits bounds Pauli decomposition, which costs 4^n * 2^n.
const MaxMatrixQubits = 8

// decompositionTolerance drops Pauli weights below this magnitude.
const decompositionTolerance = 1e-12

// Compile-time interface satisfaction check.
var _ Operator = (*MatrixOperator)(nil)

// MatrixOperator is a dense operator given by its matrix in the computational
// basis.
type MatrixOperator struct {
	numQubits int
	matrix    [][]complex128
}

// NewMatrixOperator validates that m is square with a power-of-two dimension.
// The matrix is copied.
func NewMatrixOperator(m [][]complex128) (*MatrixOperator, error) {
	dim := len(m)
	if dim < 2 || dim&(dim-1) != 0 {
		return nil, fmt.Errorf("matrix operator: dimension %d is not a power of two >= 2", dim)
	}
	n := bits.TrailingZeros(uint(dim))
	if n > MaxMatrixQubits {
		return nil, fmt.Errorf("matrix operator: %d qubits exceeds limit %d", n, MaxMatrixQubits)
	}
	cp := make([][]complex128, dim)
	for i, row := range m {
		if len(row) != dim {
			return nil, fmt.Errorf("matrix operator: row %d has %d entries, want %d", i, len(row), dim)
		}
		cp[i] = append([]complex128(nil), row...)
	}
	return &MatrixOperator{numQubits: n, matrix: cp}, nil
}

// NumQubits returns the operator width.
func (m *MatrixOperator) NumQubits() int {
	return m.numQubits
}

// ToCanonical decomposes the matrix into Pauli strings with
// c_P = Tr(P*M) / 2^n.
func (m *MatrixOperator) ToCanonical() (Canonical, error) {
	dim := 1 << m.numQubits
	var terms []Term
	for _, p := range allPaulis(m.numQubits) {
		// P|j> = phase|k> puts phase at P[k][j], so Tr(P*M) = sum_j phase*M[j][k].
		var tr complex128
		for j := 0; j < dim; j++ {
			k, phase := p.Apply(j)
			tr += phase * m.matrix[j][k]
		}
		c := tr / complex(float64(dim), 0)
		if abs2(c) < decompositionTolerance*decompositionTolerance {
			continue
		}
		terms = append(terms, Term{Coeff: c, Pauli: p})
	}
	if len(terms) == 0 {
		terms = []Term{{Coeff: 0, Pauli: circuit.Identity(m.numQubits)}}
	}
	return NewWeightedPauli(terms...)
}

func allPaulis(n int) []circuit.Pauli {
	letters := []byte{'I', 'X', 'Y', 'Z'}
	total := 1 << (2 * n)
	out := make([]circuit.Pauli, total)
	var sb strings.Builder
	for idx := 0; idx < total; idx++ {
		sb.Reset()
		for q := n - 1; q >= 0; q-- {
			sb.WriteByte(letters[(idx>>(2*q))&3])
		}
		out[idx] = circuit.Pauli(sb.String())
	}
	return out
}

func abs2(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}
