package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/competa/internal/domain/types"
)

type enrollRequest struct {
	StudentID string `json:"student_id"`
}

// handleNewEvaluation handles POST /authors/{authorID}/new-evaluation.
func (s *Server) handleNewEvaluation(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.NewEvaluation(r.Context(), chi.URLParam(r, "authorID")); err != nil {
		s.fail(w, r, "api.new_evaluation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReconcile handles POST /assignments/{key}/reconcile. Any per-event
// failure answers 207 with the failures listed.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	const op = "api.reconcile"
	var req types.ReconcileRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if len(req.EventIDs) == 0 {
		s.fail(w, r, op, WrapKind(op, ErrBadRequest, types.ErrInvalidRequest))
		return
	}

	key := strings.TrimSpace(chi.URLParam(r, "key"))
	res, err := s.deps.Reconcile(r.Context(), req.EventIDs, key, req.Force)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	status := http.StatusOK
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, types.NewReconcileResponse(res))
}

// handleDeleteEvaluation handles DELETE /evaluations/{eventID}.
func (s *Server) handleDeleteEvaluation(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteEvaluation(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		s.fail(w, r, "api.delete_evaluation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEnroll handles POST /classes/{classID}/students.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	const op = "api.enroll"
	var req enrollRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if err := s.deps.Enroll(r.Context(), chi.URLParam(r, "classID"), req.StudentID); err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
