// Package scoring maps qualitative color levels to the canonical 0-3 scale
// and back.
package scoring

import (
	"github.com/okian/competa/internal/domain/model"
)

// Thresholds applied to a 0-3 mean when converting back to a color.
const (
	FragileThreshold      = 0.5
	SatisfactoryThreshold = 1.5
	MasteredThreshold     = 2.5
)

// Scale bounds.
const (
	MinScore = 0
	MaxScore = 3

	// GradeScale is the upper bound of the reporting grade.
	GradeScale = 20
)

var scores = map[model.ColorLevel]int{
	model.ColorNotAcquired:  0,
	model.ColorFragile:      1,
	model.ColorSatisfactory: 2,
	model.ColorMastered:     3,
}

// Levels lists the valid colors in ascending order.
func Levels() []model.ColorLevel {
	return []model.ColorLevel{
		model.ColorNotAcquired,
		model.ColorFragile,
		model.ColorSatisfactory,
		model.ColorMastered,
	}
}

// Score returns the 0-3 value of a color. Unrecognized colors score 0; they
// still count as a contribution wherever they are averaged, so callers should
// reject them with Validate before they are stored.
func Score(c model.ColorLevel) int {
	return scores[c]
}

// Valid reports whether c is one of the four known levels.
func Valid(c model.ColorLevel) bool {
	_, ok := scores[c]
	return ok
}

// Validate returns ErrUnknownColor for anything Valid rejects.
func Validate(c model.ColorLevel) error {
	if !Valid(c) {
		return Wrap(string(c), ErrUnknownColor)
	}
	return nil
}

// FromMean converts a 0-3 mean back to a color.
func FromMean(mean float64) model.ColorLevel {
	switch {
	case mean >= MasteredThreshold:
		return model.ColorMastered
	case mean >= SatisfactoryThreshold:
		return model.ColorSatisfactory
	case mean >= FragileThreshold:
		return model.ColorFragile
	default:
		return model.ColorNotAcquired
	}
}

// Grade20 converts a 0-3 mean to the 0-20 reporting scale.
func Grade20(mean float64) float64 {
	return mean * GradeScale / MaxScore
}
