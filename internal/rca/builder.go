package rca

import (
	"math"
	"sort"

	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// Builder matches a table of slices against a relationship catalogue and
// grows an RCA forest from it.
type Builder struct {
	cat    *catalogue.Catalogue
	slices []models.Slice
	forest *Forest
}

// NewBuilder returns a builder over slices. The catalogue and slices are only
// read.
func NewBuilder(cat *catalogue.Catalogue, slices []models.Slice) *Builder {
	return &Builder{cat: cat, slices: slices, forest: &Forest{}}
}

// Forest returns the arena built so far.
func (b *Builder) Forest() *Forest {
	return b.forest
}

// BuildForest builds one tree per catalogue root. Roots whose rule matches no
// slice are replaced by whatever their descendants produce.
func BuildForest(slices []models.Slice, cat *catalogue.Catalogue) *Forest {
	b := NewBuilder(cat, slices)
	for _, root := range cat.Roots() {
		b.forest.Roots = append(b.forest.Roots, b.Build(root, NoParent)...)
	}
	return b.forest
}

// Build creates nodes for the slices matching rule, attaches them under
// parent (NoParent for roots) and recurses into the rule's children. It
// returns the ids created at this level.
//
// When nothing matches rule, the rule is skipped: each child rule is built at
// this position under the same parent and all of their nodes are returned.
func (b *Builder) Build(rule catalogue.NodeID, parent int) []int {
	r := b.cat.Node(rule)

	matched := b.match(rule, parent)
	if len(matched) == 0 {
		var out []int
		for _, child := range r.Children {
			out = append(out, b.Build(child, parent)...)
		}
		return out
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return math.Abs(b.slices[matched[i]].RevenueImpact) > math.Abs(b.slices[matched[j]].RevenueImpact)
	})

	ids := make([]int, 0, len(matched))
	for _, si := range matched {
		id := b.forest.add(Node{
			Slice:                 b.slices[si],
			RuleID:                r.ID,
			ReverseEffectOnParent: r.ReversesParentEffect,
		}, parent)
		ids = append(ids, id)
	}
	for _, id := range ids {
		for _, child := range r.Children {
			b.Build(child, id)
		}
	}
	return ids
}

// match returns the indexes of slices satisfying rule under parent.
func (b *Builder) match(rule catalogue.NodeID, parent int) []int {
	r := b.cat.Node(rule)

	var fields [4]catalogue.Matcher
	for i, f := range []catalogue.Field{
		catalogue.FieldDataSource, catalogue.FieldDimension, catalogue.FieldDimLabel, catalogue.FieldMetric,
	} {
		m, ok := b.resolve(rule, parent, f)
		if !ok {
			return nil
		}
		fields[i] = m
	}

	var out []int
	for i, s := range b.slices {
		if fields[0].Match(s.DataSource) &&
			fields[1].Match(s.Dimension) &&
			fields[2].Match(s.DimLabel) &&
			fields[3].Match(s.Metric) &&
			!r.Excludes(s) {
			out = append(out, i)
		}
	}
	return out
}

// resolve turns a same_as_parent field into a concrete matcher: the parent
// RCA node's value when there is one, otherwise the nearest catalogue
// ancestor's constraint. ok is false when the field resolves to nothing, in
// which case the rule cannot match.
func (b *Builder) resolve(rule catalogue.NodeID, parent int, f catalogue.Field) (catalogue.Matcher, bool) {
	m := b.cat.Node(rule).Matcher(f)
	if m.Kind() != catalogue.KindSameAsParent {
		return m, true
	}
	if parent != NoParent {
		v := f.Of(b.forest.Nodes[parent].Slice)
		if v == "" {
			return catalogue.Matcher{}, false
		}
		return catalogue.Literal(v), true
	}
	return b.cat.ResolveFromAncestors(rule, f)
}
