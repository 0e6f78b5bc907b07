// Package bilan rolls weighted skill results into per-block 0-20 grades and
// computes the volume-based progression score.
package bilan

import (
	"math"

	"github.com/okian/competa/internal/domain/aggregate"
	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/scoring"
)

// SkillGrade is one level-1 node's share of a block grade.
type SkillGrade struct {
	Code   string           `json:"code"`
	Weight float64          `json:"weight"`
	Mean   float64          `json:"mean"`
	Color  model.ColorLevel `json:"color"`
}

// BlockGrade is the bilan of one reporting block.
type BlockGrade struct {
	Block  int              `json:"block"`
	Mean   float64          `json:"mean"`
	Grade  float64          `json:"grade"`
	Color  model.ColorLevel `json:"color"`
	Skills []SkillGrade     `json:"skills"`
}

// BlockReport pairs a block grade with the student's progression score.
type BlockReport struct {
	Block       int         `json:"block"`
	Grade       *BlockGrade `json:"grade,omitempty"`
	Progression float64     `json:"progression"`
	Events      int         `json:"events"`
}

// Report is a student's full bilan.
type Report struct {
	StudentID string        `json:"student_id"`
	Blocks    []BlockReport `json:"blocks"`
}

// Calculator computes block grades.
type Calculator struct {
	rubric     *rubric.Rubric
	aggregator *aggregate.Aggregator
}

// NewCalculator creates a calculator over r using agg for skill means.
func NewCalculator(r *rubric.Rubric, agg *aggregate.Aggregator) *Calculator {
	return &Calculator{rubric: r, aggregator: agg}
}

// Block returns the grade of block, or nil when none of its skills has data.
func (c *Calculator) Block(block int, events []model.EvaluationEvent, overrides []model.ManualOverride) (*BlockGrade, error) {
	var sum, total float64
	var skills []SkillGrade

	for _, n := range c.rubric.BlockNodes(block) {
		if n.Weight <= 0 {
			continue
		}
		res, err := c.aggregator.Aggregate(n.Code, events, overrides)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		sum += res.Mean * n.Weight
		total += n.Weight
		skills = append(skills, SkillGrade{Code: n.Code, Weight: n.Weight, Mean: res.Mean, Color: res.Color})
	}

	if total <= 0 {
		return nil, nil
	}
	mean := sum / total
	return &BlockGrade{
		Block:  block,
		Mean:   mean,
		Grade:  scoring.Grade20(mean),
		Color:  scoring.FromMean(mean),
		Skills: skills,
	}, nil
}

// Bilan returns the grades of every block that has data.
func (c *Calculator) Bilan(events []model.EvaluationEvent, overrides []model.ManualOverride) ([]BlockGrade, error) {
	var out []BlockGrade
	for b := rubric.MinBlock; b <= rubric.MaxBlock; b++ {
		g, err := c.Block(b, events, overrides)
		if err != nil {
			return nil, err
		}
		if g != nil {
			out = append(out, *g)
		}
	}
	return out, nil
}

// Count returns how many events fall inside block.
func (c *Calculator) Count(block int, events []model.EvaluationEvent) int {
	n := 0
	for _, e := range events {
		if c.rubric.InBlock(e.CompetencyCode, block) {
			n++
		}
	}
	return n
}

// Progression scores every student of a comparison group on block relative
// to the most active one, who always gets 20.
func (c *Calculator) Progression(block int, group map[string][]model.EvaluationEvent) map[string]float64 {
	counts := make(map[string]int, len(group))
	highest := 1
	for student, events := range group {
		n := c.Count(block, events)
		counts[student] = n
		if n > highest {
			highest = n
		}
	}
	out := make(map[string]float64, len(counts))
	for student, n := range counts {
		out[student] = round1(float64(n) / float64(highest) * scoring.GradeScale)
	}
	return out
}

// Report builds the bilan of studentID, using group as the comparison set
// for progression. The student is added to the group when missing.
func (c *Calculator) Report(studentID string, events []model.EvaluationEvent, group map[string][]model.EvaluationEvent, overrides []model.ManualOverride) (Report, error) {
	if _, ok := group[studentID]; !ok {
		merged := make(map[string][]model.EvaluationEvent, len(group)+1)
		for k, v := range group {
			merged[k] = v
		}
		merged[studentID] = events
		group = merged
	}

	rep := Report{StudentID: studentID}
	for b := rubric.MinBlock; b <= rubric.MaxBlock; b++ {
		g, err := c.Block(b, events, overrides)
		if err != nil {
			return Report{}, err
		}
		rep.Blocks = append(rep.Blocks, BlockReport{
			Block:       b,
			Grade:       g,
			Progression: c.Progression(b, group)[studentID],
			Events:      c.Count(b, events),
		})
	}
	return rep, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
