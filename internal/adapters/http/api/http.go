// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/competa/internal/adapters/repository"
	"github.com/okian/competa/internal/domain/bilan"
	"github.com/okian/competa/internal/domain/capture"
	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/types"
	"github.com/okian/competa/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Rubric(ctx context.Context) ([]model.CompetencyNode, error)
	Positions(ctx context.Context, studentID string) (types.StudentPositions, error)
	Bilan(ctx context.Context, studentID, classID string) (bilan.Report, error)

	Capture(ctx context.Context, req types.CaptureRequest) (types.CaptureResponse, error)
	NewEvaluation(ctx context.Context, authorID string) error
	SetOverride(ctx context.Context, req types.OverrideRequest) (model.ManualOverride, error)
	Reconcile(ctx context.Context, ids []string, key string, force bool) (capture.ReconcileResult, error)
	DeleteEvaluation(ctx context.Context, id string) error
	Enroll(ctx context.Context, classID, studentID string) error

	GetStats(ctx context.Context) (types.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps   Dependencies
	logger logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, l logger.Logger) *Server {
	if l == nil {
		l = logger.Get().Named("api")
	}
	return &Server{deps: deps, logger: l}
}

// Routes returns a router with every endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.handleStats, "stats"))
	r.Get("/rubric", MetricsMiddleware(s.handleRubric, "rubric"))

	r.Route("/students/{studentID}", func(r chi.Router) {
		r.Get("/positions", MetricsMiddleware(s.handlePositions, "positions"))
		r.Get("/bilan", MetricsMiddleware(s.handleBilan, "bilan"))
		r.Post("/captures", MetricsMiddleware(s.handleCapture, "captures"))
		r.Post("/overrides", MetricsMiddleware(s.handleOverride, "overrides"))
	})
	r.Post("/authors/{authorID}/new-evaluation", MetricsMiddleware(s.handleNewEvaluation, "new_evaluation"))
	r.Post("/assignments/{key}/reconcile", MetricsMiddleware(s.handleReconcile, "reconcile"))
	r.Delete("/evaluations/{eventID}", MetricsMiddleware(s.handleDeleteEvaluation, "evaluations"))
	r.Post("/classes/{classID}/students", MetricsMiddleware(s.handleEnroll, "enroll"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type conflictResponse struct {
	errorResponse
	Conflicts []capture.Conflict `json:"conflicts"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decode(r *http.Request, op string, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// classify maps domain errors to a status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, types.ErrInvalidRequest),
		errors.Is(err, capture.ErrInvalidSelection),
		errors.Is(err, capture.ErrEmptyAssignment),
		errors.Is(err, repository.ErrInvalidEvaluation),
		errors.Is(err, repository.ErrInvalidOverride):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, capture.ErrNoSelection):
		return http.StatusNotFound, "no_selection"
	case errors.Is(err, capture.ErrAssignmentConflict):
		return http.StatusConflict, "assignment_conflict"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, capture.ErrUnknownColor):
		return http.StatusUnprocessableEntity, "unknown_color"
	case errors.Is(err, capture.ErrUnknownCompetency):
		return http.StatusUnprocessableEntity, "unknown_competency"
	case errors.Is(err, types.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err as a JSON error body. Server errors are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("requestID", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	if ce, ok := capture.IsConflict(err); ok {
		writeJSON(w, status, conflictResponse{
			errorResponse: errorResponse{Code: code, Message: err.Error()},
			Conflicts:     ce.Conflicts,
		})
		return
	}
	writeError(w, status, code, err)
}
