package aggregate_test

import (
	"testing"
	"time"

	"github.com/okian/competa/internal/domain/aggregate"
	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/position"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

func newAggregator(weightA, weightB float64) *aggregate.Aggregator {
	r, err := rubric.New([]model.CompetencyNode{
		{Code: "S", Weight: 1, Block: 1},
		{Code: "S.A", Weight: weightA, Block: 1},
		{Code: "S.A.1", Weight: 1, Block: 1},
		{Code: "S.B", Weight: weightB, Block: 1},
		{Code: "S.C", Weight: 10, Block: 1},
	})
	if err != nil {
		panic(err)
	}
	return aggregate.New(position.NewResolver(r))
}

func ev(code string, c model.ColorLevel) model.EvaluationEvent {
	return model.EvaluationEvent{StudentID: "s1", CompetencyCode: code, Color: c, Timestamp: base}
}

func TestAggregator_Aggregate(t *testing.T) {
	Convey("Given a skill with a blended child and an overridden child", t, func() {
		agg := newAggregator(20, 30)
		events := []model.EvaluationEvent{ev("S.A", model.ColorSatisfactory)}
		overrides := []model.ManualOverride{{StudentID: "s1", CompetencyCode: "S.B", Color: model.ColorMastered, Timestamp: base}}

		res, err := agg.Aggregate("S", events, overrides)

		Convey("Then the mean is (2.0*20 + 3*30) / 50", func() {
			So(err, ShouldBeNil)
			So(res, ShouldNotBeNil)
			So(res.Mean, ShouldAlmostEqual, 2.6, 1e-9)
			So(res.Color, ShouldEqual, model.ColorMastered)
		})

		Convey("Then children without contributions are excluded", func() {
			So(len(res.Contributors), ShouldEqual, 2)
			So(res.Contributors[0].Source, ShouldEqual, aggregate.SourceAutomatic)
			So(res.Contributors[1].Source, ShouldEqual, aggregate.SourceManual)
		})
	})

	Convey("Given weights 40 and 10 with a blended 2.0 and an override of 3", t, func() {
		agg := newAggregator(40, 10)
		events := []model.EvaluationEvent{ev("S.A", model.ColorSatisfactory)}
		overrides := []model.ManualOverride{{StudentID: "s1", CompetencyCode: "S.B", Color: model.ColorMastered, Timestamp: base}}

		res, err := agg.Aggregate("S", events, overrides)

		Convey("Then the mean is 2.2, satisfactory, about 14.7/20", func() {
			So(err, ShouldBeNil)
			So(res.Mean, ShouldAlmostEqual, 2.2, 1e-9)
			So(res.Color, ShouldEqual, model.ColorSatisfactory)
			So(scoring.Grade20(res.Mean), ShouldAlmostEqual, 14.67, 0.01)
		})
	})

	Convey("Given an override on a child with automatic data", t, func() {
		agg := newAggregator(20, 30)
		events := []model.EvaluationEvent{
			ev("S.B", model.ColorNotAcquired),
			ev("S.B", model.ColorNotAcquired),
		}
		overrides := []model.ManualOverride{{StudentID: "s1", CompetencyCode: "S.B", Color: model.ColorFragile, Timestamp: base}}

		res, err := agg.Aggregate("S", events, overrides)

		Convey("Then the override value is used as is", func() {
			So(err, ShouldBeNil)
			So(len(res.Contributors), ShouldEqual, 1)
			So(res.Contributors[0].Value, ShouldEqual, 1)
			So(res.Mean, ShouldEqual, 1)
		})
	})

	Convey("Given no data at all", t, func() {
		agg := newAggregator(20, 30)
		res, err := agg.Aggregate("S", nil, nil)

		Convey("Then the result is nil", func() {
			So(err, ShouldBeNil)
			So(res, ShouldBeNil)
		})
	})

	Convey("Given a zero-weight child with data", t, func() {
		agg := newAggregator(0, 30)
		res, err := agg.Aggregate("S", []model.EvaluationEvent{ev("S.A", model.ColorMastered)}, nil)

		Convey("Then it never contributes", func() {
			So(err, ShouldBeNil)
			So(res, ShouldBeNil)
		})
	})

	Convey("Given a non-skill code", t, func() {
		agg := newAggregator(20, 30)
		_, err := agg.Aggregate("S.A", nil, nil)

		Convey("Then an error is returned", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAggregator_Monotonicity(t *testing.T) {
	Convey("Given fixed scores on two children", t, func() {
		events := []model.EvaluationEvent{
			ev("S.A", model.ColorMastered),
			ev("S.B", model.ColorNotAcquired),
		}

		Convey("When the weight of the high-scoring child increases", func() {
			var means []float64
			for _, w := range []float64{1, 5, 20, 80} {
				res, err := newAggregator(w, 30).Aggregate("S", events, nil)
				So(err, ShouldBeNil)
				means = append(means, res.Mean)
			}

			Convey("Then the mean moves strictly toward that child's score", func() {
				for i := 1; i < len(means); i++ {
					So(means[i], ShouldBeGreaterThan, means[i-1])
					So(means[i], ShouldBeLessThan, 3)
				}
			})
		})
	})
}

func TestAggregator_AggregateAll(t *testing.T) {
	Convey("Given data on one skill only", t, func() {
		agg := newAggregator(20, 30)
		all, err := agg.AggregateAll([]model.EvaluationEvent{ev("S.A.1", model.ColorFragile)}, nil)

		Convey("Then only that skill is reported", func() {
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 1)
			So(all["S"].Mean, ShouldEqual, 1)
		})
	})
}
