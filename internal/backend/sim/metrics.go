package sim

import "github.com/prometheus/client_golang/prometheus"

var (
	// CircuitsTotal counts circuits executed by each simulator backend.
	CircuitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hamevo_simulator_circuits_total",
			Help: "Total number of circuits executed by simulator backends.",
		},
		[]string{"backend", "status"},
	)

	// ExecuteDuration observes the wall time of one Execute call.
	ExecuteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hamevo_simulator_execute_seconds",
			Help:    "Duration of a simulator Execute call, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// ShotsTotal counts sampled measurement shots.
	ShotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hamevo_simulator_shots_total",
			Help: "Total number of measurement shots sampled.",
		},
	)
)

// Metric label values for circuit status.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

func init() {
	prometheus.MustRegister(CircuitsTotal)
	prometheus.MustRegister(ExecuteDuration)
	prometheus.MustRegister(ShotsTotal)
}
