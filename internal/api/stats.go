package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats. Counts cover every
// recorded run; in_flight counts runs this process is executing right now.
type statsResponse struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByBackend     map[string]int `json:"by_backend"`
	ByMode        map[string]int `json:"by_expansion_mode"`
	MaxQubits     int            `json:"max_qubits"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	InFlight      int            `json:"in_flight"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetRunStats(r.Context())
	if err != nil {
		s.logger.Error("get run stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:         stats.Total,
		ByStatus:      stats.CountByStatus,
		ByBackend:     stats.CountByBackend,
		ByMode:        stats.CountByMode,
		MaxQubits:     stats.MaxQubits,
		AvgDurationMS: stats.AvgDurationMS,
		InFlight:      s.engine.InFlight(),
	})
}
