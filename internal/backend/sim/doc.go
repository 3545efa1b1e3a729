// Package sim holds the dense statevector kernels shared by the simulator
// backends, along with their Prometheus metrics.
package sim
