package api

import (
	"net/http"
	"time"

	"github.com/seantiz/hamevo/internal/backend"
)

type healthResponse struct {
	Status       string `json:"status"`
	Backends     int    `json:"backends"`
	RunsInFlight int    `json:"runs_in_flight"`
	UptimeS      int64  `json:"uptime_s"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Backends:     len(s.registry.List()),
		RunsInFlight: s.engine.InFlight(),
		UptimeS:      int64(time.Since(s.started).Seconds()),
	})
}

type backendsResponse struct {
	Backends []backend.BackendInfo `json:"backends"`
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, backendsResponse{Backends: s.registry.List()})
}
