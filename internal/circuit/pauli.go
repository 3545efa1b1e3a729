package circuit

import (
	"fmt"
	"strings"
)

// Pauli is a tensor product of single-qubit Pauli matrices written as a label
// over the alphabet I, X, Y, Z. The rightmost character acts on qubit 0.
type Pauli string

// ParsePauli validates s and returns it as a Pauli. Lower-case labels are
// accepted and normalized.
func ParsePauli(s string) (Pauli, error) {
	if s == "" {
		return "", fmt.Errorf("empty pauli label")
	}
	up := strings.ToUpper(s)
	for i := 0; i < len(up); i++ {
		switch up[i] {
		case 'I', 'X', 'Y', 'Z':
		default:
			return "", fmt.Errorf("pauli label %q: invalid character %q at position %d", s, s[i], i)
		}
	}
	return Pauli(up), nil
}

// Identity returns the n-qubit identity label.
func Identity(n int) Pauli {
	return Pauli(strings.Repeat("I", n))
}

// NumQubits returns the number of qubits the label acts on.
func (p Pauli) NumQubits() int {
	return len(p)
}

// Op returns the single-qubit operator acting on qubit q.
func (p Pauli) Op(q int) byte {
	return p[len(p)-1-q]
}

// IsIdentity reports whether every factor is I.
func (p Pauli) IsIdentity() bool {
	return strings.Trim(string(p), "I") == ""
}

// XMask has bit q set when the factor on qubit q flips the basis state (X or Y).
func (p Pauli) XMask() int {
	var m int
	for q := 0; q < len(p); q++ {
		if op := p.Op(q); op == 'X' || op == 'Y' {
			m |= 1 << q
		}
	}
	return m
}

// SupportMask has bit q set when the factor on qubit q is not I.
func (p Pauli) SupportMask() int {
	var m int
	for q := 0; q < len(p); q++ {
		if p.Op(q) != 'I' {
			m |= 1 << q
		}
	}
	return m
}

// Apply maps the computational basis state |j> to phase*|k>.
func (p Pauli) Apply(j int) (int, complex128) {
	k := j
	phase := complex(1, 0)
	for q := 0; q < len(p); q++ {
		bit := (j >> q) & 1
		switch p.Op(q) {
		case 'X':
			k ^= 1 << q
		case 'Y':
			k ^= 1 << q
			if bit == 0 {
				phase *= 1i
			} else {
				phase *= -1i
			}
		case 'Z':
			if bit == 1 {
				phase = -phase
			}
		}
	}
	return k, phase
}
