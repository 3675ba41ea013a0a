package models

// Kpi names a headline metric of an account. KPIs are ranked ahead of other
// anomalies when a scope summary picks highlights.
type Kpi struct {
	DataSource string `json:"data_source" mapstructure:"data_source" yaml:"data_source" validate:"required"`
	Dimension  string `json:"dimension,omitempty" mapstructure:"dimension" yaml:"dimension"`
	DimLabel   string `json:"dim_label,omitempty" mapstructure:"dim_label" yaml:"dim_label"`
	Metric     string `json:"metric" mapstructure:"metric" yaml:"metric" validate:"required"`
}

// Matches reports whether the slice is this KPI.
func (k Kpi) Matches(s Slice) bool {
	return k.DataSource == s.DataSource &&
		k.Dimension == s.Dimension &&
		k.DimLabel == s.DimLabel &&
		k.Metric == s.Metric
}

// DefaultKpis is the KPI list used for accounts without their own.
func DefaultKpis() []Kpi {
	return []Kpi{
		{DataSource: "Ecommerce", Metric: "Revenue"},
		{DataSource: "Google Analytics", Metric: "Traffic"},
		{DataSource: "Google Analytics", Metric: "Conversion_Rate"},
		{DataSource: "Ecommerce", Metric: "AOV"},
	}
}
