// Package rubric indexes the static three-level competency tree and answers
// structural questions about it (levels, siblings, reporting blocks).
package rubric

import (
	"fmt"

	"github.com/okian/competa/internal/domain/model"
)

// Block tags accepted on rubric nodes.
const (
	MinBlock = 1
	MaxBlock = 3
)

// Rubric is an immutable, validated competency tree.
type Rubric struct {
	nodes    []model.CompetencyNode
	index    map[string]int
	children map[string][]int
	roots    []int
}

// New validates nodes and builds the tree. A missing ParentCode is derived
// from the code; node order is preserved for every listing.
func New(nodes []model.CompetencyNode) (*Rubric, error) {
	r := &Rubric{
		nodes:    make([]model.CompetencyNode, len(nodes)),
		index:    make(map[string]int, len(nodes)),
		children: make(map[string][]int),
	}
	copy(r.nodes, nodes)

	for i := range r.nodes {
		n := &r.nodes[i]
		if n.Code == "" {
			return nil, fmt.Errorf("node #%d: empty code: %w", i, ErrInvalidRubric)
		}
		if _, dup := r.index[n.Code]; dup {
			return nil, fmt.Errorf("node %q: duplicate code: %w", n.Code, ErrInvalidRubric)
		}
		if n.ParentCode == "" {
			n.ParentCode = model.ParentOf(n.Code)
		}
		if n.Weight < 0 {
			return nil, fmt.Errorf("node %q: negative weight: %w", n.Code, ErrInvalidRubric)
		}
		if n.Block < MinBlock || n.Block > MaxBlock {
			return nil, fmt.Errorf("node %q: block %d out of range: %w", n.Code, n.Block, ErrInvalidRubric)
		}
		r.index[n.Code] = i
	}

	for i := range r.nodes {
		n := r.nodes[i]
		level := model.CodeLevel(n.Code)
		if level == model.LevelSkill {
			r.roots = append(r.roots, i)
			continue
		}
		pi, ok := r.index[n.ParentCode]
		if !ok {
			return nil, fmt.Errorf("node %q: parent %q not found: %w", n.Code, n.ParentCode, ErrInvalidRubric)
		}
		if !model.Within(n.Code, n.ParentCode) || n.Code == n.ParentCode {
			return nil, fmt.Errorf("node %q: code does not extend parent %q: %w", n.Code, n.ParentCode, ErrInvalidRubric)
		}
		if model.CodeLevel(r.nodes[pi].Code) != level-1 {
			return nil, fmt.Errorf("node %q: parent %q is not one level up: %w", n.Code, n.ParentCode, ErrInvalidRubric)
		}
		r.children[n.ParentCode] = append(r.children[n.ParentCode], i)
	}
	return r, nil
}

// Node returns the node for code.
func (r *Rubric) Node(code string) (model.CompetencyNode, bool) {
	i, ok := r.index[code]
	if !ok {
		return model.CompetencyNode{}, false
	}
	return r.nodes[i], true
}

// Has reports whether code is a rubric node.
func (r *Rubric) Has(code string) bool {
	_, ok := r.index[code]
	return ok
}

// Level returns the tree level of a known node, or 0.
func (r *Rubric) Level(code string) int {
	if !r.Has(code) {
		return 0
	}
	return model.CodeLevel(code)
}

// Within reports whether code is ancestor or one of its descendants. The
// match is dot-aware: "C1" does not contain "C10".
func (r *Rubric) Within(code, ancestor string) bool {
	return model.Within(code, ancestor)
}

// Nodes returns every node in declaration order.
func (r *Rubric) Nodes() []model.CompetencyNode {
	out := make([]model.CompetencyNode, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len returns the number of nodes.
func (r *Rubric) Len() int { return len(r.nodes) }

// Roots returns the level-1 nodes.
func (r *Rubric) Roots() []model.CompetencyNode {
	return r.pick(r.roots)
}

// Children returns the direct children of code.
func (r *Rubric) Children(code string) []model.CompetencyNode {
	return r.pick(r.children[code])
}

// Parent returns the parent node of code.
func (r *Rubric) Parent(code string) (model.CompetencyNode, bool) {
	n, ok := r.Node(code)
	if !ok || n.ParentCode == "" {
		return model.CompetencyNode{}, false
	}
	return r.Node(n.ParentCode)
}

// Siblings returns the children of code's parent, code included.
func (r *Rubric) Siblings(code string) []model.CompetencyNode {
	n, ok := r.Node(code)
	if !ok {
		return nil
	}
	if n.ParentCode == "" {
		return r.Roots()
	}
	return r.Children(n.ParentCode)
}

// SiblingWeight sums the weights of code and its siblings.
func (r *Rubric) SiblingWeight(code string) float64 {
	var sum float64
	for _, s := range r.Siblings(code) {
		sum += s.Weight
	}
	return sum
}

// RootOf returns the level-1 ancestor of a known node.
func (r *Rubric) RootOf(code string) (model.CompetencyNode, bool) {
	n, ok := r.Node(code)
	for ok && n.ParentCode != "" {
		n, ok = r.Node(n.ParentCode)
	}
	return n, ok
}

func (r *Rubric) pick(idx []int) []model.CompetencyNode {
	if len(idx) == 0 {
		return nil
	}
	out := make([]model.CompetencyNode, len(idx))
	for i, j := range idx {
		out[i] = r.nodes[j]
	}
	return out
}
