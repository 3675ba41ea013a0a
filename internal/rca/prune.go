package rca

import (
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// Prune returns a new forest keeping only nodes that explain the anomaly
// above them. The input forest is not modified.
//
// A root survives only if it is itself an anomaly. Below a kept node with
// anomaly type t, a child is kept when it has type t and does not reverse its
// parent's effect, or has type -t and does. A reversing child that fails that
// test is a pass-through: it is dropped but its children are considered in
// its place against -t. Any other child is dropped with its subtree.
func Prune(f *Forest) *Forest {
	out := &Forest{}
	for _, r := range f.Roots {
		n := f.Nodes[r]
		if !n.IsAnomaly() {
			continue
		}
		id := out.add(n, NoParent)
		out.Roots = append(out.Roots, id)
		pruneChildren(f, out, n.Children, id, n.Slice.AnomalyType)
	}
	return out
}

func pruneChildren(in, out *Forest, children []int, parent int, signal models.AnomalyType) {
	for _, c := range children {
		n := in.Nodes[c]
		t := n.Slice.AnomalyType
		explains := (t == signal && !n.ReverseEffectOnParent) ||
			(t == signal.Negate() && n.ReverseEffectOnParent)

		switch {
		case explains:
			id := out.add(n, parent)
			pruneChildren(in, out, n.Children, id, t)
		case n.ReverseEffectOnParent:
			pruneChildren(in, out, n.Children, parent, signal.Negate())
		}
	}
}
