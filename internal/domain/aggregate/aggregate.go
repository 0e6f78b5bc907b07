// Package aggregate computes weighted level-1 averages for overview and
// bilan reporting, giving manual overrides precedence over automatic blends.
package aggregate

import (
	"fmt"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/position"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/scoring"
)

// Source tells where a child's value came from.
type Source string

// Contribution sources.
const (
	SourceManual    Source = "manual"
	SourceAutomatic Source = "automatic"
)

// Contributor is one level-2 child that took part in a weighted mean.
type Contributor struct {
	Code   string  `json:"code"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Source Source  `json:"source"`
}

// Result is the weighted position of a level-1 node. Mean stays on the 0-3
// scale for numeric grade reporting.
type Result struct {
	Code         string           `json:"code"`
	Color        model.ColorLevel `json:"color"`
	Mean         float64          `json:"mean"`
	Contributors []Contributor    `json:"contributors"`
}

// Aggregator computes weighted means over a rubric.
type Aggregator struct {
	resolver *position.Resolver
}

// New creates an aggregator sharing the resolver's rubric.
func New(resolver *position.Resolver) *Aggregator {
	return &Aggregator{resolver: resolver}
}

// Aggregate returns the weighted mean of a level-1 node's children, or nil
// when no child contributes.
func (a *Aggregator) Aggregate(code string, events []model.EvaluationEvent, overrides []model.ManualOverride) (*Result, error) {
	r := a.resolver.Rubric()
	if r.Level(code) != model.LevelSkill {
		return nil, fmt.Errorf("%q is not a skill: %w", code, rubric.ErrUnknownCompetency)
	}
	return a.aggregate(code, events, position.LatestOverrides(overrides))
}

// AggregateAll runs Aggregate for every level-1 node; nodes without data are
// omitted.
func (a *Aggregator) AggregateAll(events []model.EvaluationEvent, overrides []model.ManualOverride) (map[string]*Result, error) {
	latest := position.LatestOverrides(overrides)
	out := make(map[string]*Result)
	for _, root := range a.resolver.Rubric().Roots() {
		res, err := a.aggregate(root.Code, events, latest)
		if err != nil {
			return nil, err
		}
		if res != nil {
			out[root.Code] = res
		}
	}
	return out, nil
}

func (a *Aggregator) aggregate(code string, events []model.EvaluationEvent, latest map[string]model.ManualOverride) (*Result, error) {
	var sum, total float64
	var contributors []Contributor

	for _, child := range a.resolver.Rubric().Children(code) {
		if child.Weight <= 0 {
			continue
		}
		c := Contributor{Code: child.Code, Weight: child.Weight}
		if o, ok := latest[child.Code]; ok {
			c.Value = float64(scoring.Score(o.Color))
			c.Source = SourceManual
		} else {
			mean, ok, err := a.resolver.Blend(child.Code, events)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			c.Value = mean
			c.Source = SourceAutomatic
		}
		sum += c.Value * c.Weight
		total += c.Weight
		contributors = append(contributors, c)
	}

	if total <= 0 {
		return nil, nil
	}
	mean := sum / total
	return &Result{
		Code:         code,
		Color:        scoring.FromMean(mean),
		Mean:         mean,
		Contributors: contributors,
	}, nil
}
