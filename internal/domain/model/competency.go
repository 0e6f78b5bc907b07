package model

import "strings"

// Rubric depth levels.
const (
	LevelSkill     = 1
	LevelSubSkill  = 2
	LevelCriterion = 3
)

// CodeSeparator separates the segments of a hierarchical competency code.
const CodeSeparator = "."

// CompetencyNode is a node of the three-level rubric tree.
type CompetencyNode struct {
	Code       string  `json:"code" koanf:"code"`
	ParentCode string  `json:"parent_code,omitempty" koanf:"parent"`
	Weight     float64 `json:"weight" koanf:"weight"`
	Block      int     `json:"block" koanf:"block"`
	Name       string  `json:"name" koanf:"name"`
}

// CodeLevel returns the rubric level encoded in a code: no separator is
// level 1, one is level 2, two or more is level 3.
func CodeLevel(code string) int {
	switch n := strings.Count(code, CodeSeparator); {
	case n == 0:
		return LevelSkill
	case n == 1:
		return LevelSubSkill
	default:
		return LevelCriterion
	}
}

// ParentOf derives the parent code by dropping the last segment.
// Level-1 codes have no parent.
func ParentOf(code string) string {
	i := strings.LastIndex(code, CodeSeparator)
	if i < 0 {
		return ""
	}
	return code[:i]
}

// Within reports whether code equals ancestor or lies below it in the tree.
func Within(code, ancestor string) bool {
	if code == ancestor {
		return true
	}
	return strings.HasPrefix(code, ancestor+CodeSeparator)
}

// Related reports whether either code is within the other.
func Related(a, b string) bool {
	return Within(a, b) || Within(b, a)
}
