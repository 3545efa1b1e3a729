package api

import (
	"net/http"

	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/evolution"
)

// circuitResponse is the JSON response for POST /v1/circuits.
type circuitResponse struct {
	NumQubits int              `json:"num_qubits"`
	Config    evolution.Config `json:"config"`
	Circuit   *circuit.Circuit `json:"circuit"`
}

// handleBuildCircuit validates a definition and returns the circuit it
// would execute, without running it or recording anything.
func (s *Server) handleBuildCircuit(w http.ResponseWriter, r *http.Request) {
	doc, _, ok := s.decodeDefinition(w, r)
	if !ok {
		return
	}

	qc, exp, err := s.engine.BuildCircuit(doc)
	if err != nil {
		s.writeRunError(w, "build circuit", err)
		return
	}

	s.writeJSON(w, http.StatusOK, circuitResponse{
		NumQubits: exp.NumQubits(),
		Config:    exp.Config(),
		Circuit:   qc,
	})
}
