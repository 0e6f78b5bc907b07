// Package types contains the request and response shapes shared by the
// service and its transports.
package types

import (
	"github.com/okian/competa/internal/domain/aggregate"
	"github.com/okian/competa/internal/domain/capture"
	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/position"
)

// StudentPositions is the competency overview of one student.
type StudentPositions struct {
	StudentID string                       `json:"student_id"`
	Positions []position.Positioning       `json:"positions"`
	Skills    map[string]*aggregate.Result `json:"skills"`
}

// CaptureRequest records one color for the author's current selection.
type CaptureRequest struct {
	AuthorID       string           `json:"author_id"`
	StudentID      string           `json:"student_id"`
	CompetencyCode string           `json:"competency_code"`
	Color          model.ColorLevel `json:"color"`
	Comment        string           `json:"comment,omitempty"`
}

// CaptureResponse reports the written event and the session's mode after
// the write.
type CaptureResponse struct {
	Event   model.EvaluationEvent `json:"event"`
	Amended bool                  `json:"amended"`
	Mode    string                `json:"mode"`
}

// OverrideRequest sets a manual position.
type OverrideRequest struct {
	AuthorID       string           `json:"author_id"`
	StudentID      string           `json:"student_id"`
	CompetencyCode string           `json:"competency_code"`
	Color          model.ColorLevel `json:"color"`
}

// ReconcileRequest links events to an assignment.
type ReconcileRequest struct {
	EventIDs []string `json:"event_ids"`
	Force    bool     `json:"force"`
}

// ReconcileResponse is the JSON form of a reconciliation result.
type ReconcileResponse struct {
	Key       string             `json:"assignment_key"`
	Updated   []string           `json:"updated"`
	Failed    map[string]string  `json:"failed,omitempty"`
	Conflicts []capture.Conflict `json:"conflicts,omitempty"`
}

// NewReconcileResponse flattens errors to messages.
func NewReconcileResponse(res capture.ReconcileResult) ReconcileResponse {
	out := ReconcileResponse{Key: res.Key, Updated: res.Updated, Conflicts: res.Conflicts}
	if len(res.Failed) > 0 {
		out.Failed = make(map[string]string, len(res.Failed))
		for id, err := range res.Failed {
			out.Failed[id] = err.Error()
		}
	}
	return out
}

// Stats are service statistics for monitoring.
type Stats struct {
	Started          bool `json:"started"`
	Evaluations      int  `json:"evaluations"`
	Overrides        int  `json:"overrides"`
	Students         int  `json:"students"`
	Classes          int  `json:"classes"`
	ActiveSessions   int  `json:"active_sessions"`
	SessionCapacity  int  `json:"session_capacity"`
	ReconcileWorkers int  `json:"reconcile_workers"`
	RubricNodes      int  `json:"rubric_nodes"`
}
