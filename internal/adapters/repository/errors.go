package repository

import (
	"errors"

	"github.com/okian/competa/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound          = model.ErrNotFound
	ErrConflict          = model.ErrConflict
	ErrInvalidEvaluation = errors.New("evaluation needs a student and a competency")
	ErrInvalidOverride   = errors.New("override needs a student and a competency")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

func validateEvent(e model.EvaluationEvent) error {
	if e.StudentID == "" || e.CompetencyCode == "" {
		return ErrInvalidEvaluation
	}
	return nil
}

func validateOverride(o model.ManualOverride) error {
	if o.StudentID == "" || o.CompetencyCode == "" {
		return ErrInvalidOverride
	}
	return nil
}
