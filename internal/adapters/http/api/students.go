package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/competa/internal/domain/types"
)

// handlePositions handles GET /students/{studentID}/positions.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "studentID"))
	pos, err := s.deps.Positions(r.Context(), id)
	if err != nil {
		s.fail(w, r, "api.positions", err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// handleBilan handles GET /students/{studentID}/bilan?class=.
func (s *Server) handleBilan(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "studentID"))
	report, err := s.deps.Bilan(r.Context(), id, r.URL.Query().Get("class"))
	if err != nil {
		s.fail(w, r, "api.bilan", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleCapture handles POST /students/{studentID}/captures. A created
// event answers 201, an amended one 200.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	const op = "api.capture"
	var req types.CaptureRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	req.StudentID = chi.URLParam(r, "studentID")

	resp, err := s.deps.Capture(r.Context(), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	status := http.StatusCreated
	if resp.Amended {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// handleOverride handles POST /students/{studentID}/overrides.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	const op = "api.override"
	var req types.OverrideRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	req.StudentID = chi.URLParam(r, "studentID")

	o, err := s.deps.SetOverride(r.Context(), req)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
