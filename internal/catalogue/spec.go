package catalogue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Spec is the declarative form of a relationship node, as written in YAML.
//
// DataSource and Dimension accept a literal or "same_as_parent"; an empty
// Dimension means the matched slice must be undimensioned. DimLabel accepts a
// literal or "same_as_parent", DimLabelPattern a regular expression. Exactly one
// of Metric and MetricPattern must be set.
type Spec struct {
	ID                   string   `yaml:"id" json:"id"`
	DataSource           string   `yaml:"data_source" json:"data_source"`
	Dimension            string   `yaml:"dimension,omitempty" json:"dimension,omitempty"`
	DimLabel             string   `yaml:"dim_label,omitempty" json:"dim_label,omitempty"`
	DimLabelPattern      string   `yaml:"dim_label_pattern,omitempty" json:"dim_label_pattern,omitempty"`
	Metric               string   `yaml:"metric,omitempty" json:"metric,omitempty"`
	MetricPattern        string   `yaml:"metric_pattern,omitempty" json:"metric_pattern,omitempty"`
	ReversesParentEffect bool     `yaml:"reverses_parent_effect,omitempty" json:"reverses_parent_effect,omitempty"`
	ExcludedDimLabels    []string `yaml:"excluded_dim_labels,omitempty" json:"excluded_dim_labels,omitempty"`
	ExcludedMetrics      []string `yaml:"excluded_metrics,omitempty" json:"excluded_metrics,omitempty"`
	Children             []Spec   `yaml:"children,omitempty" json:"children,omitempty"`
}

type document struct {
	Roots []Spec `yaml:"roots"`
}

// Build validates the specs and lays them out in an arena.
func Build(roots []Spec) (*Catalogue, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no root nodes", ErrInvalidCatalogue)
	}
	c := &Catalogue{byID: make(map[string]NodeID)}
	for i := range roots {
		id, err := c.add(&roots[i], NoNode)
		if err != nil {
			return nil, err
		}
		c.roots = append(c.roots, id)
	}
	return c, nil
}

// MustBuild is Build that panics. For static catalogues.
func MustBuild(roots []Spec) *Catalogue {
	c, err := Build(roots)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads a YAML catalogue with a top-level `roots` list.
func Parse(data []byte) (*Catalogue, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalogue, err)
	}
	return Build(doc.Roots)
}

// LoadFile reads and parses a YAML catalogue file.
func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return c, nil
}

func invalid(id, format string, args ...interface{}) error {
	return fmt.Errorf("%w: node %q: %s", ErrInvalidCatalogue, id, fmt.Sprintf(format, args...))
}

func (c *Catalogue) add(s *Spec, parent NodeID) (NodeID, error) {
	if s.ID == "" {
		return NoNode, fmt.Errorf("%w: node without id", ErrInvalidCatalogue)
	}
	if _, dup := c.byID[s.ID]; dup {
		return NoNode, invalid(s.ID, "duplicate id")
	}
	isRoot := parent == NoNode

	n := Node{
		ID:                   s.ID,
		ReversesParentEffect: s.ReversesParentEffect,
		ExcludedDimLabels:    toSet(s.ExcludedDimLabels),
		ExcludedMetrics:      toSet(s.ExcludedMetrics),
		Parent:               parent,
	}

	switch s.DataSource {
	case "":
		return NoNode, invalid(s.ID, "data_source is required")
	case SameAsParentKeyword:
		n.DataSource = SameAsParent()
	default:
		n.DataSource = Literal(s.DataSource)
	}

	switch s.Dimension {
	case "":
		n.Dimension = Null()
	case SameAsParentKeyword:
		n.Dimension = SameAsParent()
	default:
		n.Dimension = Literal(s.Dimension)
	}

	switch {
	case s.DimLabel != "" && s.DimLabelPattern != "":
		return NoNode, invalid(s.ID, "dim_label and dim_label_pattern are mutually exclusive")
	case s.DimLabelPattern != "":
		m, err := Pattern(s.DimLabelPattern)
		if err != nil {
			return NoNode, invalid(s.ID, "%v", err)
		}
		n.DimLabel = m
	case s.DimLabel == SameAsParentKeyword:
		n.DimLabel = SameAsParent()
	case s.DimLabel != "":
		n.DimLabel = Literal(s.DimLabel)
	default:
		n.DimLabel = Null()
	}

	switch {
	case s.Metric != "" && s.MetricPattern != "":
		return NoNode, invalid(s.ID, "metric and metric_pattern are mutually exclusive")
	case s.MetricPattern != "":
		m, err := Pattern(s.MetricPattern)
		if err != nil {
			return NoNode, invalid(s.ID, "%v", err)
		}
		n.Metric = m
	case s.Metric != "":
		n.Metric = Literal(s.Metric)
	default:
		return NoNode, invalid(s.ID, "metric or metric_pattern is required")
	}

	// A slice carries a label only together with a dimension.
	if n.Dimension.Kind() == KindNull && n.DimLabel.Kind() != KindNull {
		return NoNode, invalid(s.ID, "dim_label requires a dimension")
	}
	if isRoot {
		for _, f := range []Field{FieldDataSource, FieldDimension, FieldDimLabel} {
			if n.Matcher(f).Kind() == KindSameAsParent {
				return NoNode, invalid(s.ID, "root node cannot use %s for %s", SameAsParentKeyword, f)
			}
		}
	}

	id := NodeID(len(c.nodes))
	c.nodes = append(c.nodes, n)
	c.byID[s.ID] = id

	for i := range s.Children {
		child, err := c.add(&s.Children[i], id)
		if err != nil {
			return NoNode, err
		}
		c.nodes[id].Children = append(c.nodes[id].Children, child)
	}
	return id, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// DefaultSpecs is the built-in ecommerce relationship tree: total sales is
// explained by order value and order count, orders by marketplace ad conversion
// and clicks, clicks by ad spend and cost of sale.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			ID: "n1", DataSource: "Ecommerce", Metric: "Total_Sales",
			Children: []Spec{
				{ID: "n2", DataSource: "Ecommerce", Metric: "AOV"},
				{
					ID: "n3", DataSource: "Ecommerce", Metric: "Orders",
					Children: []Spec{
						{ID: "n4", DataSource: "mwsAds", Metric: "Conversion_Rate"},
						{
							ID: "n5", DataSource: "mwsAds", Metric: "Clicks",
							Children: []Spec{
								{ID: "n6", DataSource: "mwsAds", Metric: "Ad_Spend"},
								{ID: "n7", DataSource: "mwsAds", Metric: "ACOS"},
							},
						},
					},
				},
			},
		},
	}
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	return MustBuild(DefaultSpecs())
}
