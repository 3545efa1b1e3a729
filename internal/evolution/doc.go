// Package evolution runs a single Hamiltonian evolution experiment: it
// prepares an initial state, evolves it under an operator's product formula,
// executes the result on a backend and reports the expectation value of an
// observable.
package evolution
