// Package repository persists evaluation events, manual overrides and class
// rosters.
package repository

import (
	"context"

	"github.com/okian/competa/internal/domain/model"
)

// Stats summarises the stored state.
type Stats struct {
	Evaluations int `json:"evaluations"`
	Overrides   int `json:"overrides"`
	Students    int `json:"students"`
	Classes     int `json:"classes"`
}

// Store provides read/write access to evaluation state. Reads return
// snapshots: callers may keep and mutate the returned values freely.
type Store interface {
	// ListEvaluations returns a student's events ordered by timestamp.
	ListEvaluations(ctx context.Context, studentID string) ([]model.EvaluationEvent, error)
	// ListClassEvaluations returns the events of every enrolled student,
	// including students without any event.
	ListClassEvaluations(ctx context.Context, classID string) (map[string][]model.EvaluationEvent, error)
	// GetEvaluation returns ErrNotFound if id is unknown.
	GetEvaluation(ctx context.Context, id string) (model.EvaluationEvent, error)
	// CreateEvaluation stores e, assigning an ID when empty and the store
	// clock when the timestamp is zero.
	CreateEvaluation(ctx context.Context, e model.EvaluationEvent) (model.EvaluationEvent, error)
	// UpdateEvaluation applies patch. It returns ErrNotFound for unknown ids
	// and ErrConflict when the patch guard rejects the stored event.
	UpdateEvaluation(ctx context.Context, id string, patch model.EvaluationPatch) (model.EvaluationEvent, error)
	// DeleteEvaluation returns ErrNotFound if id is unknown.
	DeleteEvaluation(ctx context.Context, id string) error

	ListManualOverrides(ctx context.Context, studentID string) ([]model.ManualOverride, error)
	// UpsertManualOverride replaces any override for the same
	// (student, competency) pair. A zero timestamp takes the store clock.
	UpsertManualOverride(ctx context.Context, o model.ManualOverride) error

	// EnrollStudent adds a student to a class roster. Enrolling twice is a no-op.
	EnrollStudent(ctx context.Context, classID, studentID string) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
