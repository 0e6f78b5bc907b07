package bilan_test

import (
	"testing"
	"time"

	"github.com/okian/competa/internal/domain/aggregate"
	"github.com/okian/competa/internal/domain/bilan"
	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/position"
	"github.com/okian/competa/internal/domain/rubric"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func newCalculator() *bilan.Calculator {
	r, err := rubric.New([]model.CompetencyNode{
		{Code: "S1", Weight: 30, Block: 1},
		{Code: "S1.A", Weight: 1, Block: 1},
		{Code: "S2", Weight: 10, Block: 1},
		{Code: "S2.A", Weight: 1, Block: 1},
		{Code: "S3", Weight: 50, Block: 2},
		{Code: "S3.A", Weight: 1, Block: 2},
		{Code: "L", Weight: 20, Block: 3},
	})
	if err != nil {
		panic(err)
	}
	return bilan.NewCalculator(r, aggregate.New(position.NewResolver(r)))
}

func ev(student, code string, c model.ColorLevel) model.EvaluationEvent {
	return model.EvaluationEvent{StudentID: student, CompetencyCode: code, Color: c, Timestamp: base}
}

func repeat(student, code string, n int) []model.EvaluationEvent {
	out := make([]model.EvaluationEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ev(student, code, model.ColorSatisfactory))
	}
	return out
}

func TestCalculator_Block(t *testing.T) {
	Convey("Given events in two skills of block 1", t, func() {
		calc := newCalculator()
		events := []model.EvaluationEvent{
			ev("s1", "S1.A", model.ColorMastered),
			ev("s1", "S2.A", model.ColorNotAcquired),
		}

		g, err := calc.Block(1, events, nil)

		Convey("Then the block mean is weighted by skill weight", func() {
			So(err, ShouldBeNil)
			So(g, ShouldNotBeNil)
			So(g.Mean, ShouldAlmostEqual, 3*30.0/40.0, 1e-9)
			So(g.Grade, ShouldAlmostEqual, 15, 1e-9)
			So(g.Color, ShouldEqual, model.ColorSatisfactory)
			So(len(g.Skills), ShouldEqual, 2)
		})
	})

	Convey("Given only one skill with data", t, func() {
		calc := newCalculator()
		g, err := calc.Block(1, []model.EvaluationEvent{ev("s1", "S1.A", model.ColorFragile)}, nil)

		Convey("Then the other skill is left out", func() {
			So(err, ShouldBeNil)
			So(g.Mean, ShouldAlmostEqual, 1, 1e-9)
			So(len(g.Skills), ShouldEqual, 1)
		})
	})

	Convey("Given a block without data", t, func() {
		calc := newCalculator()
		g, err := calc.Block(2, []model.EvaluationEvent{ev("s1", "S1.A", model.ColorFragile)}, nil)

		Convey("Then no grade is produced", func() {
			So(err, ShouldBeNil)
			So(g, ShouldBeNil)
		})
	})

	Convey("Given a mastered block", t, func() {
		calc := newCalculator()
		grades, err := calc.Bilan([]model.EvaluationEvent{
			ev("s1", "S1.A", model.ColorMastered),
			ev("s1", "S3.A", model.ColorMastered),
		}, nil)

		Convey("Then each block with data reaches 20", func() {
			So(err, ShouldBeNil)
			So(len(grades), ShouldEqual, 2)
			So(grades[0].Block, ShouldEqual, 1)
			So(grades[0].Grade, ShouldAlmostEqual, 20, 1e-9)
			So(grades[1].Block, ShouldEqual, 2)
		})
	})
}

func TestCalculator_Progression(t *testing.T) {
	Convey("Given a comparison group", t, func() {
		calc := newCalculator()
		group := map[string][]model.EvaluationEvent{
			"top":    repeat("top", "S1.A", 7),
			"middle": repeat("middle", "S2", 3),
			"none":   repeat("none", "S3.A", 4),
		}

		scores := calc.Progression(1, group)

		Convey("Then the most active student gets 20", func() {
			So(scores["top"], ShouldEqual, 20)
		})

		Convey("Then the others are scaled and rounded to one decimal", func() {
			So(scores["middle"], ShouldEqual, 8.6)
			So(scores["none"], ShouldEqual, 0)
		})
	})

	Convey("Given a group without block activity", t, func() {
		calc := newCalculator()
		scores := calc.Progression(3, map[string][]model.EvaluationEvent{"a": nil, "b": nil})

		Convey("Then everyone scores zero", func() {
			So(scores["a"], ShouldEqual, 0)
			So(scores["b"], ShouldEqual, 0)
		})
	})

	Convey("Given events on a childless skill", t, func() {
		calc := newCalculator()
		scores := calc.Progression(3, map[string][]model.EvaluationEvent{"a": repeat("a", "L", 2)})

		Convey("Then they count toward its block", func() {
			So(scores["a"], ShouldEqual, 20)
		})
	})
}

func TestCalculator_Report(t *testing.T) {
	Convey("Given a student outside the comparison group", t, func() {
		calc := newCalculator()
		events := repeat("s1", "S1.A", 2)
		group := map[string][]model.EvaluationEvent{"s2": repeat("s2", "S1.A", 4)}

		rep, err := calc.Report("s1", events, group, nil)

		Convey("Then all three blocks are reported", func() {
			So(err, ShouldBeNil)
			So(rep.StudentID, ShouldEqual, "s1")
			So(len(rep.Blocks), ShouldEqual, 3)
			So(rep.Blocks[0].Grade, ShouldNotBeNil)
			So(rep.Blocks[0].Events, ShouldEqual, 2)
			So(rep.Blocks[0].Progression, ShouldEqual, 10)
			So(rep.Blocks[1].Grade, ShouldBeNil)
		})

		Convey("Then the caller's group is left untouched", func() {
			So(len(group), ShouldEqual, 1)
		})
	})
}
