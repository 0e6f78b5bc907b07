// Package capture implements the per-author evaluation capture flow and the
// reconciliation of events with an assignment.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/scoring"
	"github.com/okian/competa/pkg/metrics"
)

// Mode is the state of a capture session.
type Mode int

// Session modes.
const (
	// ModeNew: the next capture creates an event.
	ModeNew Mode = iota
	// ModeAmend: the next capture rewrites the remembered event.
	ModeAmend
)

func (m Mode) String() string {
	if m == ModeAmend {
		return "amend"
	}
	return "new"
}

// Key identifies what a session is capturing.
type Key struct {
	AuthorID       string `json:"author_id"`
	StudentID      string `json:"student_id"`
	CompetencyCode string `json:"competency_code"`
}

// Writer is the part of the store a session writes through.
type Writer interface {
	CreateEvaluation(ctx context.Context, e model.EvaluationEvent) (model.EvaluationEvent, error)
	UpdateEvaluation(ctx context.Context, id string, patch model.EvaluationPatch) (model.EvaluationEvent, error)
}

// Result is the outcome of one capture.
type Result struct {
	Event   model.EvaluationEvent `json:"event"`
	Amended bool                  `json:"amended"`
}

// Session tracks one author's work on one (student, competency) pair.
// Repeated captures in amend mode rewrite the same event, so several clicks
// produce a single history entry.
type Session struct {
	mu     sync.Mutex
	key    Key
	mode   Mode
	lastID string
	rubric *rubric.Rubric
}

// NewSession starts a session in new mode. A nil rubric skips the
// competency check.
func NewSession(key Key, r *rubric.Rubric) *Session {
	return &Session{key: key, rubric: r}
}

// Key returns what the session is capturing.
func (s *Session) Key() Key { return s.key }

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// LastEventID returns the remembered event, empty in new mode.
func (s *Session) LastEventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// Reset returns the session to new mode; the next capture creates an event.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeNew
	s.lastID = ""
}

// Capture records color for the session's key. Nothing is written when the
// color or the competency is unknown.
func (s *Session) Capture(ctx context.Context, w Writer, color model.ColorLevel, comment string, now time.Time) (Result, error) {
	if err := scoring.Validate(color); err != nil {
		return Result{}, err
	}
	if s.rubric != nil && !s.rubric.Has(s.key.CompetencyCode) {
		return Result{}, fmt.Errorf("%q: %w", s.key.CompetencyCode, ErrUnknownCompetency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeAmend && s.lastID != "" {
		e, err := w.UpdateEvaluation(ctx, s.lastID, model.EvaluationPatch{
			Color:     &color,
			Comment:   &comment,
			Timestamp: &now,
		})
		switch {
		case err == nil:
			metrics.RecordEvaluationCaptured("amended")
			return Result{Event: e, Amended: true}, nil
		case !errors.Is(err, model.ErrNotFound):
			return Result{}, err
		}
		// The remembered event was deleted; start over with a new one.
	}

	e, err := w.CreateEvaluation(ctx, model.EvaluationEvent{
		StudentID:      s.key.StudentID,
		CompetencyCode: s.key.CompetencyCode,
		Color:          color,
		Timestamp:      now,
		AuthorID:       s.key.AuthorID,
		Comment:        comment,
	})
	if err != nil {
		return Result{}, err
	}
	s.mode = ModeAmend
	s.lastID = e.ID
	metrics.RecordEvaluationCaptured("created")
	return Result{Event: e}, nil
}
