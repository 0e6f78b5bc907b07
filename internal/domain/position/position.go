// Package position derives automatic position estimates for rubric nodes
// from raw evaluation events, and resolves them against manual overrides.
package position

import (
	"fmt"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/scoring"
)

// Position is the automatic estimate for one node.
type Position struct {
	Code          string           `json:"code"`
	Color         model.ColorLevel `json:"color"`
	Mean          float64          `json:"mean"`
	Contributions int              `json:"contributions"`
	Evaluated     bool             `json:"evaluated"`
}

// Resolver computes automatic positions over a fixed rubric.
type Resolver struct {
	rubric *rubric.Rubric
}

// NewResolver creates a resolver bound to r.
func NewResolver(r *rubric.Rubric) *Resolver {
	return &Resolver{rubric: r}
}

// Rubric returns the tree the resolver works on.
func (r *Resolver) Rubric() *rubric.Rubric { return r.rubric }

// Resolve computes the automatic position of code from one student's events.
func (r *Resolver) Resolve(code string, events []model.EvaluationEvent) (Position, error) {
	if !r.rubric.Has(code) {
		return Position{}, fmt.Errorf("%q: %w", code, rubric.ErrUnknownCompetency)
	}
	var acc accumulator
	switch r.rubric.Level(code) {
	case model.LevelSkill:
		acc = r.skill(code, events)
	case model.LevelSubSkill:
		acc = r.subSkill(code, events)
	default:
		acc = r.criterion(code, events)
	}
	return acc.position(code), nil
}

// ResolveAll returns the position of every rubric node in declaration order.
func (r *Resolver) ResolveAll(events []model.EvaluationEvent) []Position {
	nodes := r.rubric.Nodes()
	out := make([]Position, 0, len(nodes))
	for _, n := range nodes {
		p, err := r.Resolve(n.Code, events)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Blend returns the blended 0-3 average of a level-2 node: its direct events,
// one contribution per evaluated criterion, and its share of the parent's
// direct events. ok is false when nothing contributes.
func (r *Resolver) Blend(code string, events []model.EvaluationEvent) (mean float64, ok bool, err error) {
	if r.rubric.Level(code) != model.LevelSubSkill {
		return 0, false, fmt.Errorf("%q is not a sub-skill: %w", code, rubric.ErrUnknownCompetency)
	}
	mean, ok = r.subSkill(code, events).mean()
	return mean, ok, nil
}

// skill counts every event in the subtree once, unweighted.
func (r *Resolver) skill(code string, events []model.EvaluationEvent) accumulator {
	var acc accumulator
	for _, e := range events {
		if model.Within(e.CompetencyCode, code) {
			acc.add(score(e), 1)
		}
	}
	return acc
}

// subSkill mixes direct events, per-criterion means and the distilled share
// of the parent's direct events.
func (r *Resolver) subSkill(code string, events []model.EvaluationEvent) accumulator {
	var acc accumulator
	children := r.rubric.Children(code)
	perChild := make([]accumulator, len(children))

	for _, e := range events {
		if !model.Within(e.CompetencyCode, code) {
			continue
		}
		if i := childIndex(children, e.CompetencyCode); i >= 0 {
			perChild[i].add(score(e), 1)
			continue
		}
		acc.add(score(e), 1)
	}
	for _, c := range perChild {
		if m, ok := c.mean(); ok {
			acc.add(m, 1)
		}
	}

	node, _ := r.rubric.Node(code)
	if total := r.rubric.SiblingWeight(code); total > 0 && node.Weight > 0 {
		share := node.Weight / total
		for _, e := range events {
			if e.CompetencyCode == node.ParentCode {
				acc.add(score(e), share)
			}
		}
	}
	return acc
}

// criterion only looks at events on the node itself.
func (r *Resolver) criterion(code string, events []model.EvaluationEvent) accumulator {
	var acc accumulator
	for _, e := range events {
		if model.Within(e.CompetencyCode, code) {
			acc.add(score(e), 1)
		}
	}
	return acc
}

func childIndex(children []model.CompetencyNode, code string) int {
	for i, c := range children {
		if model.Within(code, c.Code) {
			return i
		}
	}
	return -1
}

func score(e model.EvaluationEvent) float64 {
	return float64(scoring.Score(e.Color))
}

// accumulator is a weighted running mean. Non-positive weights are ignored.
type accumulator struct {
	sum    float64
	weight float64
	n      int
}

func (a *accumulator) add(value, weight float64) {
	if weight <= 0 {
		return
	}
	a.sum += value * weight
	a.weight += weight
	a.n++
}

func (a accumulator) mean() (float64, bool) {
	if a.weight <= 0 {
		return 0, false
	}
	return a.sum / a.weight, true
}

func (a accumulator) position(code string) Position {
	m, ok := a.mean()
	if !ok {
		return Position{Code: code, Color: model.ColorUnevaluated}
	}
	return Position{
		Code:          code,
		Color:         scoring.FromMean(m),
		Mean:          m,
		Contributions: a.n,
		Evaluated:     true,
	}
}
