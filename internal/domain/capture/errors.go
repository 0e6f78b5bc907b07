package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/scoring"
)

// Sentinel kinds for capture errors.
var (
	ErrUnknownColor       = scoring.ErrUnknownColor
	ErrUnknownCompetency  = rubric.ErrUnknownCompetency
	ErrAssignmentConflict = errors.New("assignment conflict")
	ErrNoSelection        = errors.New("no active selection")
	ErrInvalidSelection   = errors.New("selection needs an author, a student and a competency")
	ErrEmptyAssignment    = errors.New("assignment key is empty")
)

// ConflictReason explains why an event blocks a reconciliation.
type ConflictReason string

// Conflict reasons.
const (
	// ReasonTagged: the event already carries a different assignment key.
	ReasonTagged ConflictReason = "tagged_elsewhere"
	// ReasonDuplicate: another event of the same student and competency,
	// outside the selection, already carries the key.
	ReasonDuplicate ConflictReason = "duplicate_for_competency"
)

// Conflict describes one blocking event.
type Conflict struct {
	EventID        string         `json:"event_id"`
	StudentID      string         `json:"student_id"`
	CompetencyCode string         `json:"competency_code"`
	ExistingKey    string         `json:"existing_key"`
	Reason         ConflictReason `json:"reason"`
}

// ConflictError carries the details of a refused reconciliation. It matches
// ErrAssignmentConflict with errors.Is.
type ConflictError struct {
	Key       string
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, c.EventID)
	}
	return fmt.Sprintf("%s %q: %s", ErrAssignmentConflict, e.Key, strings.Join(ids, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrAssignmentConflict }
