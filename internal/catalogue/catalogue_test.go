package catalogue

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name string
		m    Matcher
		v    string
		want bool
	}{
		{"null matches empty", Null(), "", true},
		{"null rejects value", Null(), "Country", false},
		{"literal exact", Literal("Revenue"), "Revenue", true},
		{"literal other", Literal("Revenue"), "Orders", false},
		{"literal never matches empty", Literal(""), "", false},
		{"pattern prefix", MustPattern("Camp"), "Campaign_A", true},
		{"pattern anchored at start", MustPattern("paign"), "Campaign_A", false},
		{"pattern alternation anchored", MustPattern("a|Camp"), "Campaign", true},
		{"pattern rejects empty", MustPattern(".*"), "", false},
		{"same_as_parent unresolved", SameAsParent(), "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.Match(tt.v))
		})
	}
}

func TestMatcher_InvalidPattern(t *testing.T) {
	_, err := Pattern("(")
	require.Error(t, err)
	assert.Panics(t, func() { MustPattern("[") })
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name  string
		roots []Spec
	}{
		{"empty", nil},
		{"missing id", []Spec{{DataSource: "A", Metric: "m"}}},
		{"missing data source", []Spec{{ID: "a", Metric: "m"}}},
		{"missing metric", []Spec{{ID: "a", DataSource: "A"}}},
		{"both metric forms", []Spec{{ID: "a", DataSource: "A", Metric: "m", MetricPattern: "m.*"}}},
		{"both label forms", []Spec{{ID: "a", DataSource: "A", Dimension: "d", DimLabel: "x", DimLabelPattern: "x"}}},
		{"label without dimension", []Spec{{ID: "a", DataSource: "A", DimLabel: "x", Metric: "m"}}},
		{"root same_as_parent", []Spec{{ID: "a", DataSource: SameAsParentKeyword, Metric: "m"}}},
		{"bad regex", []Spec{{ID: "a", DataSource: "A", MetricPattern: "("}}},
		{"duplicate id", []Spec{
			{ID: "a", DataSource: "A", Metric: "m", Children: []Spec{{ID: "a", DataSource: "A", Metric: "n"}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.roots)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCatalogue), "got %v", err)
		})
	}
}

func TestBuild_ChildMaySameAsParent(t *testing.T) {
	c, err := Build([]Spec{{
		ID: "r", DataSource: "Google Ads", Dimension: "Campaign", DimLabelPattern: ".*", Metric: "Revenue",
		Children: []Spec{{
			ID: "c", DataSource: SameAsParentKeyword, Dimension: SameAsParentKeyword,
			DimLabel: SameAsParentKeyword, Metric: "Clicks",
		}},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	id, ok := c.Lookup("c")
	require.True(t, ok)
	n := c.Node(id)
	assert.Equal(t, KindSameAsParent, n.DataSource.Kind())
	assert.Equal(t, KindSameAsParent, n.DimLabel.Kind())

	m, ok := c.ResolveFromAncestors(id, FieldDataSource)
	require.True(t, ok)
	assert.Equal(t, "Google Ads", m.Value())

	m, ok = c.ResolveFromAncestors(id, FieldDimLabel)
	require.True(t, ok)
	assert.Equal(t, KindPattern, m.Kind())
}

func TestResolveFromAncestors_SkipsIntermediate(t *testing.T) {
	c := MustBuild([]Spec{{
		ID: "r", DataSource: "A", Dimension: "Country", DimLabel: "US", Metric: "m",
		Children: []Spec{{
			ID: "mid", DataSource: SameAsParentKeyword, Dimension: SameAsParentKeyword, Metric: "n",
			Children: []Spec{{ID: "leaf", DataSource: SameAsParentKeyword, Metric: "o"}},
		}},
	}})
	mid, _ := c.Lookup("mid")
	leaf, _ := c.Lookup("leaf")

	m, ok := c.ResolveFromAncestors(leaf, FieldDataSource)
	require.True(t, ok)
	assert.Equal(t, "A", m.Value())

	// mid has a null dim_label, so a same_as_parent below it resolves to nothing.
	_, ok = c.ResolveFromAncestors(leaf, FieldDimLabel)
	assert.False(t, ok)

	root, _ := c.Lookup("r")
	_, ok = c.ResolveFromAncestors(root, FieldMetric)
	assert.False(t, ok)
	assert.Equal(t, root, c.Node(mid).Parent)
}

func TestNode_Excludes(t *testing.T) {
	c := MustBuild([]Spec{{
		ID: "r", DataSource: "A", Dimension: "Campaign", DimLabelPattern: ".*", Metric: "Revenue",
		ExcludedDimLabels: []string{"Brand"}, ExcludedMetrics: []string{"Impressions"},
	}})
	n := c.Node(c.Roots()[0])
	assert.True(t, n.Excludes(models.Slice{DimLabel: "Brand", Metric: "Revenue"}))
	assert.True(t, n.Excludes(models.Slice{DimLabel: "Other", Metric: "Impressions"}))
	assert.False(t, n.Excludes(models.Slice{DimLabel: "Other", Metric: "Revenue"}))
}

func TestDefault_WalkAndRender(t *testing.T) {
	c := Default()
	require.Equal(t, 7, c.Len())

	var ids []string
	var depths []int
	c.Walk(func(id NodeID, depth int) {
		ids = append(ids, c.Node(id).ID)
		depths = append(depths, depth)
	})
	assert.Equal(t, []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7"}, ids)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 3, 3}, depths)

	want := strings.Join([]string{
		"n1 Ecommerce None None Total_Sales",
		"├── n2 Ecommerce None None AOV",
		"└── n3 Ecommerce None None Orders",
		"    ├── n4 mwsAds None None Conversion_Rate",
		"    └── n5 mwsAds None None Clicks",
		"        ├── n6 mwsAds None None Ad_Spend",
		"        └── n7 mwsAds None None ACOS",
	}, "\n") + "\n"
	assert.Equal(t, want, c.String())
}

const sampleYAML = `
roots:
  - id: rev
    data_source: Google Ads
    metric: Revenue
    children:
      - id: cost
        data_source: same_as_parent
        metric: Cost
        reverses_parent_effect: true
      - id: campaigns
        data_source: same_as_parent
        dimension: Campaign
        dim_label_pattern: ".*"
        metric_pattern: "Rev.*"
        excluded_dim_labels: [Brand]
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	cost, ok := c.Lookup("cost")
	require.True(t, ok)
	assert.True(t, c.Node(cost).ReversesParentEffect)

	camp, _ := c.Lookup("campaigns")
	n := c.Node(camp)
	assert.Equal(t, KindPattern, n.Metric.Kind())
	assert.True(t, n.Metric.Match("Revenue"))
	assert.Contains(t, c.String(), "(Reverse)")

	_, err = Parse([]byte("roots: [ {id: x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCatalogue)
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	store := NewStore(Default())
	w := NewWatcher(path, store, logger.Nop())

	require.True(t, w.Reload())
	_, ok := store.Current().Lookup("rev")
	assert.True(t, ok)

	previous := store.Current()
	require.NoError(t, os.WriteFile(path, []byte("roots: []"), 0o644))
	assert.False(t, w.Reload())
	assert.Same(t, previous, store.Current())
}
