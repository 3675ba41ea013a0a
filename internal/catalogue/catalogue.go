// Package catalogue holds the relationship catalogue: a static forest of rules
// describing which metrics explain which. It is built once, validated, and
// read-only afterwards.
package catalogue

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// ErrInvalidCatalogue wraps every validation failure.
var ErrInvalidCatalogue = errors.New("invalid relationship catalogue")

// NodeID indexes a node in the catalogue arena.
type NodeID int

// NoNode marks the absence of a parent.
const NoNode NodeID = -1

// Field selects one identity field of a slice.
type Field int

const (
	FieldDataSource Field = iota
	FieldDimension
	FieldDimLabel
	FieldMetric
)

func (f Field) String() string {
	switch f {
	case FieldDataSource:
		return "data_source"
	case FieldDimension:
		return "dimension"
	case FieldDimLabel:
		return "dim_label"
	case FieldMetric:
		return "metric"
	default:
		return "unknown"
	}
}

// Of returns the value of f on s.
func (f Field) Of(s models.Slice) string {
	switch f {
	case FieldDataSource:
		return s.DataSource
	case FieldDimension:
		return s.Dimension
	case FieldDimLabel:
		return s.DimLabel
	default:
		return s.Metric
	}
}

// Node is one metric in the explanatory graph.
type Node struct {
	ID                   string
	DataSource           Matcher
	Dimension            Matcher
	DimLabel             Matcher
	Metric               Matcher
	ReversesParentEffect bool
	ExcludedDimLabels    map[string]struct{}
	ExcludedMetrics      map[string]struct{}
	Parent               NodeID
	Children             []NodeID
}

// Matcher returns the constraint of n on f.
func (n *Node) Matcher(f Field) Matcher {
	switch f {
	case FieldDataSource:
		return n.DataSource
	case FieldDimension:
		return n.Dimension
	case FieldDimLabel:
		return n.DimLabel
	default:
		return n.Metric
	}
}

// Excludes reports whether s is listed in the node's exclusion sets.
func (n *Node) Excludes(s models.Slice) bool {
	if _, ok := n.ExcludedDimLabels[s.DimLabel]; ok && s.DimLabel != "" {
		return true
	}
	_, ok := n.ExcludedMetrics[s.Metric]
	return ok
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %s %s %s %s", n.ID, n.DataSource, n.Dimension, n.DimLabel, n.Metric)
}

// Catalogue is an arena of relationship nodes forming a forest.
type Catalogue struct {
	nodes []Node
	roots []NodeID
	byID  map[string]NodeID
}

// Roots returns the root nodes in declaration order.
func (c *Catalogue) Roots() []NodeID {
	return c.roots
}

// Len is the number of nodes.
func (c *Catalogue) Len() int {
	return len(c.nodes)
}

// Node returns the node at id. Callers must not modify it.
func (c *Catalogue) Node(id NodeID) *Node {
	return &c.nodes[id]
}

// Lookup finds a node by its declared id.
func (c *Catalogue) Lookup(id string) (NodeID, bool) {
	n, ok := c.byID[id]
	return n, ok
}

// ResolveFromAncestors resolves field f of node id against its catalogue
// ancestors, skipping any that are themselves same_as_parent. ok is false when
// no ancestor carries a concrete value.
func (c *Catalogue) ResolveFromAncestors(id NodeID, f Field) (Matcher, bool) {
	for p := c.nodes[id].Parent; p != NoNode; p = c.nodes[p].Parent {
		m := c.nodes[p].Matcher(f)
		switch m.Kind() {
		case KindSameAsParent:
			continue
		case KindNull:
			return Matcher{}, false
		default:
			return m, true
		}
	}
	return Matcher{}, false
}

// Walk visits every node in pre-order with its depth.
func (c *Catalogue) Walk(fn func(id NodeID, depth int)) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		fn(id, depth)
		for _, child := range c.nodes[id].Children {
			visit(child, depth+1)
		}
	}
	for _, r := range c.roots {
		visit(r, 0)
	}
}

// Render draws the catalogue as an indented tree, marking reverse nodes.
func (c *Catalogue) Render(w io.Writer) error {
	var draw func(id NodeID, prefix string, last, root bool) error
	draw = func(id NodeID, prefix string, last, root bool) error {
		n := &c.nodes[id]
		connector, childPrefix := "", ""
		if !root {
			connector, childPrefix = "├── ", prefix+"│   "
			if last {
				connector, childPrefix = "└── ", prefix+"    "
			}
		}
		line := prefix + connector + n.String()
		if n.ReversesParentEffect {
			line += " (Reverse)"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for i, child := range n.Children {
			if err := draw(child, childPrefix, i == len(n.Children)-1, false); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range c.roots {
		if err := draw(r, "", true, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalogue) String() string {
	var b strings.Builder
	_ = c.Render(&b)
	return b.String()
}
