// Package model contains domain models passed between layers.
package model

import "time"

// ColorLevel is the qualitative score a teacher records for a competency.
// The empty value means "unevaluated".
type ColorLevel string

// Color levels ordered from lowest to highest mastery.
const (
	ColorUnevaluated  ColorLevel = ""
	ColorNotAcquired  ColorLevel = "not_acquired" // level0
	ColorFragile      ColorLevel = "fragile"      // level1
	ColorSatisfactory ColorLevel = "satisfactory" // level2
	ColorMastered     ColorLevel = "mastered"     // level3
)

// EvaluationEvent is one recorded evaluation of a student on a rubric node.
// Several events may exist for the same (student, competency) pair; together
// they form the evaluation history.
type EvaluationEvent struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	CompetencyCode string     `json:"competency_code"`
	Color          ColorLevel `json:"color"`
	Timestamp      time.Time  `json:"timestamp"`
	AuthorID       string     `json:"author_id"`
	Comment        string     `json:"comment,omitempty"`
	AssignmentKey  string     `json:"assignment_key,omitempty"`
}

// ManualOverride is a teacher-set position for a (student, competency) pair.
// Writes are upserts: the latest write supersedes the previous one.
type ManualOverride struct {
	StudentID      string     `json:"student_id"`
	CompetencyCode string     `json:"competency_code"`
	Color          ColorLevel `json:"color"`
	Timestamp      time.Time  `json:"timestamp"`
	AuthorID       string     `json:"author_id"`
}

// EvaluationPatch describes a partial update of an EvaluationEvent. Nil
// fields are left untouched.
type EvaluationPatch struct {
	Color         *ColorLevel
	Comment       *string
	Timestamp     *time.Time
	AssignmentKey *string

	// IfAssignmentKey makes the update conditional: the store rejects the
	// patch unless the stored assignment key equals this value.
	IfAssignmentKey *string
}

// Apply returns a copy of e with the patch applied. The guard is not checked.
func (p EvaluationPatch) Apply(e EvaluationEvent) EvaluationEvent {
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Comment != nil {
		e.Comment = *p.Comment
	}
	if p.Timestamp != nil {
		e.Timestamp = *p.Timestamp
	}
	if p.AssignmentKey != nil {
		e.AssignmentKey = *p.AssignmentKey
	}
	return e
}

// Allows reports whether the patch guard accepts e.
func (p EvaluationPatch) Allows(e EvaluationEvent) bool {
	return p.IfAssignmentKey == nil || *p.IfAssignmentKey == e.AssignmentKey
}
