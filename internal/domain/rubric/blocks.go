package rubric

import (
	"github.com/okian/competa/internal/domain/model"
)

// BlockOf returns the reporting block of a level-1 node: the block tag most
// common among its children. Ties go to the lowest block number; a node with
// no children keeps its own tag.
func (r *Rubric) BlockOf(code string) int {
	n, ok := r.Node(code)
	if !ok {
		return 0
	}
	children := r.Children(code)
	if len(children) == 0 {
		return n.Block
	}
	var votes [MaxBlock + 1]int
	for _, c := range children {
		votes[c.Block]++
	}
	best := MinBlock
	for b := MinBlock + 1; b <= MaxBlock; b++ {
		if votes[b] > votes[best] {
			best = b
		}
	}
	return best
}

// BlockNodes returns the level-1 nodes assigned to block.
func (r *Rubric) BlockNodes(block int) []model.CompetencyNode {
	var out []model.CompetencyNode
	for _, root := range r.Roots() {
		if r.BlockOf(root.Code) == block {
			out = append(out, root)
		}
	}
	return out
}

// BlockCodes returns the codes that define block membership for volume
// counting: level-2 nodes tagged with block, plus childless level-1 nodes
// tagged with it.
func (r *Rubric) BlockCodes(block int) []string {
	var out []string
	for _, n := range r.nodes {
		if n.Block != block {
			continue
		}
		switch model.CodeLevel(n.Code) {
		case model.LevelSubSkill:
			out = append(out, n.Code)
		case model.LevelSkill:
			if len(r.children[n.Code]) == 0 {
				out = append(out, n.Code)
			}
		}
	}
	return out
}

// InBlock reports whether an event code belongs to block: it is related
// (prefix in either direction) to one of the block codes.
func (r *Rubric) InBlock(code string, block int) bool {
	for _, c := range r.BlockCodes(block) {
		if model.Related(code, c) {
			return true
		}
	}
	return false
}
