package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	// RunsTotal counts finished runs by backend and terminal status.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hamevo_runs_total",
			Help: "Total number of finished evolution runs.",
		},
		[]string{"backend", "status"},
	)

	// RunDuration observes wall-clock run duration by backend.
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hamevo_run_duration_seconds",
			Help:    "Evolution run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"backend"},
	)

	// RunsInFlight tracks runs that have been admitted and not yet finished.
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hamevo_runs_in_flight",
			Help: "Number of admitted runs that have not finished.",
		},
	)

	// SubmissionsThrottled counts async submissions rejected by the rate limiter.
	SubmissionsThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hamevo_submissions_throttled_total",
			Help: "Total number of async submissions rejected by admission throttling.",
		},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, RunDuration, RunsInFlight, SubmissionsThrottled)
}
