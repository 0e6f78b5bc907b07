package rubric_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/competa/internal/domain/model"
	"github.com/okian/competa/internal/domain/rubric"
	. "github.com/smartystreets/goconvey/convey"
)

func node(code string, weight float64, block int) model.CompetencyNode {
	return model.CompetencyNode{Code: code, Name: code, Weight: weight, Block: block}
}

func TestRubric_New(t *testing.T) {
	Convey("Given a well formed three-level tree", t, func() {
		r, err := rubric.New([]model.CompetencyNode{
			node("A", 1, 1),
			node("A.1", 20, 1),
			node("A.1.1", 1, 1),
			node("A.2", 30, 2),
			node("B", 2, 3),
		})
		So(err, ShouldBeNil)

		Convey("Then structural lookups work", func() {
			So(r.Len(), ShouldEqual, 5)
			So(r.Level("A"), ShouldEqual, 1)
			So(r.Level("A.1.1"), ShouldEqual, 3)
			So(r.Level("Z"), ShouldEqual, 0)
			So(len(r.Roots()), ShouldEqual, 2)
			So(len(r.Children("A")), ShouldEqual, 2)
			So(r.Children("A")[0].Code, ShouldEqual, "A.1")
			So(r.SiblingWeight("A.1"), ShouldEqual, 50)

			p, ok := r.Parent("A.1.1")
			So(ok, ShouldBeTrue)
			So(p.Code, ShouldEqual, "A.1")

			root, ok := r.RootOf("A.1.1")
			So(ok, ShouldBeTrue)
			So(root.Code, ShouldEqual, "A")

			So(r.Within("A.1.1", "A"), ShouldBeTrue)
			So(r.Within("A", "A"), ShouldBeTrue)
			So(r.Within("AB.1", "A"), ShouldBeFalse)
		})

		Convey("Then parent codes are derived", func() {
			n, ok := r.Node("A.1.1")
			So(ok, ShouldBeTrue)
			So(n.ParentCode, ShouldEqual, "A.1")
		})
	})

	Convey("Given malformed trees", t, func() {
		cases := map[string][]model.CompetencyNode{
			"duplicate code":  {node("A", 1, 1), node("A", 1, 1)},
			"missing parent":  {node("A", 1, 1), node("B.1", 1, 1)},
			"block range":     {node("A", 1, 4)},
			"negative weight": {node("A", -1, 1)},
			"wrong parent":    {node("A", 1, 1), {Code: "A.1.1", ParentCode: "A", Weight: 1, Block: 1}},
			"foreign prefix":  {node("A", 1, 1), node("B", 1, 1), {Code: "A.1", ParentCode: "B", Weight: 1, Block: 1}},
			"empty code":      {{Weight: 1, Block: 1}},
		}
		for name, nodes := range cases {
			_, err := rubric.New(nodes)
			Convey("Then "+name+" is rejected", func() {
				So(errors.Is(err, rubric.ErrInvalidRubric), ShouldBeTrue)
			})
		}
	})

	Convey("Given a criterion whose code carries extra segments", t, func() {
		_, err := rubric.New([]model.CompetencyNode{
			node("A", 1, 1),
			node("A.1", 1, 1),
			{Code: "A.1.x.y", ParentCode: "A.1", Weight: 1, Block: 1},
		})

		Convey("Then it is accepted as a level-3 node", func() {
			So(err, ShouldBeNil)
		})
	})
}

func TestRubric_Blocks(t *testing.T) {
	Convey("Given skills whose children carry block tags", t, func() {
		r, err := rubric.New([]model.CompetencyNode{
			node("A", 1, 1),
			node("A.1", 1, 2),
			node("A.2", 1, 2),
			node("A.3", 1, 1),
			node("B", 1, 1),
			node("B.1", 1, 3),
			node("B.2", 1, 2),
			node("C", 1, 3),
		})
		So(err, ShouldBeNil)

		Convey("Then the majority tag wins", func() {
			So(r.BlockOf("A"), ShouldEqual, 2)
		})

		Convey("Then ties go to the lowest block", func() {
			So(r.BlockOf("B"), ShouldEqual, 2)
		})

		Convey("Then childless skills keep their own tag", func() {
			So(r.BlockOf("C"), ShouldEqual, 3)
		})

		Convey("Then block membership lists follow", func() {
			So(len(r.BlockNodes(2)), ShouldEqual, 2)
			So(r.BlockCodes(2), ShouldResemble, []string{"A.1", "A.2", "B.2"})
			So(r.BlockCodes(3), ShouldResemble, []string{"B.1", "C"})
		})

		Convey("Then event codes are matched by prefix in both directions", func() {
			So(r.InBlock("A", 2), ShouldBeTrue)
			So(r.InBlock("A.1.4", 2), ShouldBeTrue)
			So(r.InBlock("A.3", 2), ShouldBeFalse)
			So(r.InBlock("A.3", 1), ShouldBeTrue)
			So(r.InBlock("C.9", 3), ShouldBeTrue)
		})
	})
}

func TestRubric_Load(t *testing.T) {
	Convey("Given the bundled rubric", t, func() {
		r, err := rubric.Default()

		Convey("Then it loads and validates", func() {
			So(err, ShouldBeNil)
			So(r.Len(), ShouldBeGreaterThan, 0)
			So(len(r.Roots()), ShouldEqual, 3)
			So(r.BlockOf("C2"), ShouldEqual, 2)
		})
	})

	Convey("Given a rubric file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "rubric.yaml")
		content := `
nodes:
  - code: "S1"
    name: "Skill"
    weight: 2
    block: 1
  - code: "S1.1"
    name: "Sub skill"
    weight: 1.5
    block: 2
`
		So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)

		r, err := rubric.Load(path)

		Convey("Then nodes are decoded with their weights", func() {
			So(err, ShouldBeNil)
			n, ok := r.Node("S1.1")
			So(ok, ShouldBeTrue)
			So(n.Weight, ShouldEqual, 1.5)
			So(n.ParentCode, ShouldEqual, "S1")
		})
	})

	Convey("Given broken inputs", t, func() {
		_, err := rubric.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		So(errors.Is(err, rubric.ErrLoadRubric), ShouldBeTrue)

		_, err = rubric.Parse([]byte("nodes: []"))
		So(errors.Is(err, rubric.ErrLoadRubric), ShouldBeTrue)

		_, err = rubric.Parse([]byte("nodes: [{code: \"X.1\", weight: 1, block: 1}]"))
		So(errors.Is(err, rubric.ErrInvalidRubric), ShouldBeTrue)
	})
}
