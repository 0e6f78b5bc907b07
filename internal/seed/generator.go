package seed

import (
	"fmt"
	"math/rand/v2"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/types"
)

// Profile biases the colors drawn for a student.
type Profile int

// Student profiles, from strongest to weakest.
const (
	ProfileElite Profile = iota
	ProfileHigh
	ProfileAverage
	ProfileLow
	ProfileVeryLow
)

// profileWeights are relative odds for not_acquired, fragile, satisfactory
// and mastered.
var profileWeights = map[Profile][4]int{
	ProfileElite:   {0, 1, 3, 6},
	ProfileHigh:    {0, 2, 5, 3},
	ProfileAverage: {1, 3, 4, 2},
	ProfileLow:     {3, 4, 2, 1},
	ProfileVeryLow: {6, 3, 1, 0},
}

// profileOdds makes average students the most common and the extremes rare.
var profileOdds = []Profile{
	ProfileAverage, ProfileAverage, ProfileAverage,
	ProfileHigh, ProfileHigh,
	ProfileLow, ProfileLow,
	ProfileElite,
	ProfileVeryLow,
}

var colors = [4]model.ColorLevel{
	model.ColorNotAcquired,
	model.ColorFragile,
	model.ColorSatisfactory,
	model.ColorMastered,
}

// Plan is the generated work for one student.
type Plan struct {
	StudentID string
	Profile   Profile
	Captures  []types.CaptureRequest
}

// StudentID names the i-th generated student of a class.
func StudentID(classID string, i int) string {
	return fmt.Sprintf("%s-student-%02d", classID, i+1)
}

// Generate builds one plan per student. Codes are drawn among sub-skills
// and criteria; the author is left for the runner to fill.
func Generate(r *rubric.Rubric, cfg Config) []Plan {
	cfg = cfg.withDefaults()

	var codes []string
	for _, n := range r.Nodes() {
		if r.Level(n.Code) >= model.LevelSubSkill {
			codes = append(codes, n.Code)
		}
	}

	plans := make([]Plan, cfg.Students)
	for i := range plans {
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
		p := Plan{
			StudentID: StudentID(cfg.ClassID, i),
			Profile:   profileOdds[rng.IntN(len(profileOdds))],
		}
		if len(codes) > 0 {
			p.Captures = make([]types.CaptureRequest, cfg.Captures)
			for j := range p.Captures {
				p.Captures[j] = types.CaptureRequest{
					StudentID:      p.StudentID,
					CompetencyCode: codes[rng.IntN(len(codes))],
					Color:          drawColor(rng, p.Profile),
				}
			}
		}
		plans[i] = p
	}
	return plans
}

func drawColor(rng *rand.Rand, p Profile) model.ColorLevel {
	w := profileWeights[p]
	total := 0
	for _, v := range w {
		total += v
	}
	n := rng.IntN(total)
	for i, v := range w {
		if n < v {
			return colors[i]
		}
		n -= v
	}
	return colors[len(colors)-1]
}
