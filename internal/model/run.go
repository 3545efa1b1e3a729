package model

import "time"

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusKilled    = "killed"
)

// Backend name constants.
const (
	BackendStatevector = "statevector"
	BackendQasm        = "qasm"
	BackendAuto        = "auto"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
		StatusKilled:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusKilled:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether status is a final state.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusKilled
}

// Event represents a single persisted progress line of a run.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

// Run represents one evolution experiment submitted to the service.
type Run struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Backend        string     `json:"backend"`
	NumQubits      int        `json:"num_qubits"`
	EvoTime        float64    `json:"evo_time"`
	NumTimeSlices  int        `json:"num_time_slices"`
	ExpansionMode  string     `json:"expansion_mode"`
	ExpansionOrder int        `json:"expansion_order"`
	Shots          *int       `json:"shots,omitempty"`
	Definition     []byte     `json:"-"`
	MeanReal       *float64   `json:"mean_real,omitempty"`
	MeanImag       *float64   `json:"mean_imag,omitempty"`
	StdDev         *float64   `json:"std_dev,omitempty"`
	Error          string     `json:"error,omitempty"`
	TimeoutS       *int       `json:"timeout_s,omitempty"`
	DurationMS     *int       `json:"duration_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}
