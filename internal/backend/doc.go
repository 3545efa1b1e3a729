// Package backend defines the common interface that all circuit execution
// backends (exact statevector simulation, shot sampling) must implement, along
// with the result type exchanged between backends and operators.
package backend
