// Package circuit defines the circuit value exchanged between initial state
// preparers, operators and execution backends: registers, Pauli labels and an
// ordered instruction list.
package circuit
