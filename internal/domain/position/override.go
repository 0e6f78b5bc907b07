package position

import (
	"github.com/okian/competa/internal/domain/model"
)

// Positioning combines the automatic estimate with an optional manual
// override. Effective is the override's color when one exists.
type Positioning struct {
	Code      string                `json:"code"`
	Automatic Position              `json:"automatic"`
	Manual    *model.ManualOverride `json:"manual,omitempty"`
	Effective model.ColorLevel      `json:"effective"`
}

// LatestOverrides keeps the most recent override per competency code.
func LatestOverrides(overrides []model.ManualOverride) map[string]model.ManualOverride {
	out := make(map[string]model.ManualOverride, len(overrides))
	for _, o := range overrides {
		cur, ok := out[o.CompetencyCode]
		if !ok || !o.Timestamp.Before(cur.Timestamp) {
			out[o.CompetencyCode] = o
		}
	}
	return out
}

// Positioning resolves code against the student's events and overrides.
func (r *Resolver) Positioning(code string, events []model.EvaluationEvent, overrides []model.ManualOverride) (Positioning, error) {
	auto, err := r.Resolve(code, events)
	if err != nil {
		return Positioning{}, err
	}
	return combine(auto, LatestOverrides(overrides)), nil
}

// Overview resolves every rubric node.
func (r *Resolver) Overview(events []model.EvaluationEvent, overrides []model.ManualOverride) []Positioning {
	latest := LatestOverrides(overrides)
	autos := r.ResolveAll(events)
	out := make([]Positioning, len(autos))
	for i, p := range autos {
		out[i] = combine(p, latest)
	}
	return out
}

func combine(auto Position, latest map[string]model.ManualOverride) Positioning {
	p := Positioning{Code: auto.Code, Automatic: auto, Effective: auto.Color}
	if o, ok := latest[auto.Code]; ok {
		o := o
		p.Manual = &o
		p.Effective = o.Color
	}
	return p
}
