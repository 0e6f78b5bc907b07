package api

import (
	"net/http"
)

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.GetStats(r.Context())
	if err != nil {
		s.fail(w, r, "api.stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleRubric handles GET /rubric.
func (s *Server) handleRubric(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.deps.Rubric(r.Context())
	if err != nil {
		s.fail(w, r, "api.rubric", err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}
