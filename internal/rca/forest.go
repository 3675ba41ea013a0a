package rca

import (
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// NoParent marks a root node.
const NoParent = -1

// Node is a slice bound into the explanation forest.
type Node struct {
	Slice                 models.Slice
	RuleID                string
	Parent                int
	Children              []int
	ReverseEffectOnParent bool
}

// IsAnomaly reports whether the node's slice left its forecast band.
func (n *Node) IsAnomaly() bool {
	return n.Slice.AnomalyType.IsAnomaly()
}

// Forest is an arena of RCA nodes. Node indexes are stable for the life of
// the forest.
type Forest struct {
	Nodes []Node
	Roots []int
}

// Len is the number of nodes in the arena.
func (f *Forest) Len() int {
	return len(f.Nodes)
}

// add appends a copy of n, detached from any children, under parent.
func (f *Forest) add(n Node, parent int) int {
	n.Parent = parent
	n.Children = nil
	id := len(f.Nodes)
	f.Nodes = append(f.Nodes, n)
	if parent != NoParent {
		f.Nodes[parent].Children = append(f.Nodes[parent].Children, id)
	}
	return id
}

// Walk visits nodes reachable from the roots in pre-order: parents before
// children, siblings in their stored order.
func (f *Forest) Walk(fn func(id, depth int)) {
	var visit func(id, depth int)
	visit = func(id, depth int) {
		fn(id, depth)
		for _, c := range f.Nodes[id].Children {
			visit(c, depth+1)
		}
	}
	for _, r := range f.Roots {
		visit(r, 0)
	}
}

// Tree is the nested form of one RCA tree, used on the wire.
type Tree struct {
	Rule                  string       `json:"rule"`
	Slice                 models.Slice `json:"slice"`
	ReverseEffectOnParent bool         `json:"reverse_effect_on_parent"`
	Children              []Tree       `json:"children,omitempty"`
}

// Trees expands the arena into nested trees, one per root.
func (f *Forest) Trees() []Tree {
	var expand func(id int) Tree
	expand = func(id int) Tree {
		n := &f.Nodes[id]
		t := Tree{Rule: n.RuleID, Slice: n.Slice, ReverseEffectOnParent: n.ReverseEffectOnParent}
		for _, c := range n.Children {
			t.Children = append(t.Children, expand(c))
		}
		return t
	}
	out := make([]Tree, 0, len(f.Roots))
	for _, r := range f.Roots {
		out = append(out, expand(r))
	}
	return out
}
