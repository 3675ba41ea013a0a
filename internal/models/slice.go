package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSlice is returned when a slice violates the dimension/label pairing.
var ErrInvalidSlice = errors.New("invalid slice")

// Extremes flags whether the current value is the maximum of a trailing window.
type Extremes struct {
	IsYearMaximum       bool `json:"is_year_maximum"`
	IsSixMonthMaximum   bool `json:"is_six_month_maximum"`
	IsThreeMonthMaximum bool `json:"is_three_month_maximum"`
}

// Reading is one observation of a sustained window. ForecastRank is the
// percentile rank of Yhat within the whole series, in (0, 1].
type Reading struct {
	Y            Float `json:"y"`
	Yhat         Float `json:"yhat"`
	YhatUpper    Float `json:"yhat_upper"`
	YhatLower    Float `json:"yhat_lower"`
	ForecastRank Float `json:"forecast_rank"`
}

// Slice is one (data source, dimension, dim label, metric) series evaluated at one
// time point. An empty Dimension/DimLabel means the slice is not dimensioned; a NaN
// Y means the observed value is absent.
type Slice struct {
	DataSource string
	Dimension  string
	DimLabel   string
	Metric     string

	Y         float64
	YPrev     float64
	Yhat      float64
	YhatUpper float64
	YhatLower float64

	// Band around the prior-period value, half the forecast band wide on each side.
	YPrevUpper float64
	YPrevLower float64

	// Derived by classification and impact estimation.
	DeltaPct        float64
	AnomalyType     AnomalyType
	PrevAnomalyType AnomalyType
	IsWarning       bool
	IsCritical      bool
	Color           Color
	RevenueImpact   float64

	Extremes Extremes

	// Window holds the readings an hourly slice was averaged from. Empty for
	// daily and weekly slices.
	Window []Reading
}

// HasDimension reports whether the slice is broken down by a dimension.
func (s Slice) HasDimension() bool {
	return s.Dimension != ""
}

// Key identifies the slice within a scope.
func (s Slice) Key() string {
	return s.DataSource + "|" + s.Dimension + "|" + s.DimLabel + "|" + s.Metric
}

// IsAnomaly reports whether the slice left its forecast band.
func (s Slice) IsAnomaly() bool {
	return s.AnomalyType.IsAnomaly()
}

// AbsDelta is the magnitude of the change against forecast.
func (s Slice) AbsDelta() float64 {
	return math.Abs(s.DeltaPct)
}

// Validate checks the identity invariants of a slice.
func (s Slice) Validate() error {
	if s.DataSource == "" {
		return fmt.Errorf("%w: data source is required", ErrInvalidSlice)
	}
	if s.Metric == "" {
		return fmt.Errorf("%w: metric is required", ErrInvalidSlice)
	}
	if (s.Dimension == "") != (s.DimLabel == "") {
		return fmt.Errorf("%w: dimension %q and dim label %q must both be set or both be empty",
			ErrInvalidSlice, s.Dimension, s.DimLabel)
	}
	return nil
}

// ClampForecast treats negative and missing forecasts as zero.
func (s *Slice) ClampForecast() {
	s.Yhat = NonNegative(s.Yhat)
	s.YhatUpper = NonNegative(s.YhatUpper)
	s.YhatLower = NonNegative(s.YhatLower)
}

// NonNegative maps negative and NaN values to zero.
func NonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

type sliceJSON struct {
	DataSource      string      `json:"data_source"`
	Dimension       *string     `json:"dimension"`
	DimLabel        *string     `json:"dim_label"`
	Metric          string      `json:"metric"`
	Y               Float       `json:"y"`
	YPrev           Float       `json:"y_prev"`
	Yhat            Float       `json:"yhat"`
	YhatUpper       Float       `json:"yhat_upper"`
	YhatLower       Float       `json:"yhat_lower"`
	YPrevUpper      Float       `json:"y_prev_upper"`
	YPrevLower      Float       `json:"y_prev_lower"`
	DeltaPct        Float       `json:"delta_pct"`
	AnomalyType     AnomalyType `json:"anomaly_type"`
	PrevAnomalyType AnomalyType `json:"prev_anomaly_type"`
	IsWarning       bool        `json:"is_warning"`
	IsCritical      bool        `json:"is_critical"`
	Color           Color       `json:"color,omitempty"`
	RevenueImpact   Float       `json:"revenue_impact"`
	Extremes        Extremes    `json:"extremes"`
	Window          []Reading   `json:"window,omitempty"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s Slice) MarshalJSON() ([]byte, error) {
	return json.Marshal(sliceJSON{
		DataSource:      s.DataSource,
		Dimension:       nullable(s.Dimension),
		DimLabel:        nullable(s.DimLabel),
		Metric:          s.Metric,
		Y:               Float(s.Y),
		YPrev:           Float(s.YPrev),
		Yhat:            Float(s.Yhat),
		YhatUpper:       Float(s.YhatUpper),
		YhatLower:       Float(s.YhatLower),
		YPrevUpper:      Float(s.YPrevUpper),
		YPrevLower:      Float(s.YPrevLower),
		DeltaPct:        Float(s.DeltaPct),
		AnomalyType:     s.AnomalyType,
		PrevAnomalyType: s.PrevAnomalyType,
		IsWarning:       s.IsWarning,
		IsCritical:      s.IsCritical,
		Color:           s.Color,
		RevenueImpact:   Float(s.RevenueImpact),
		Extremes:        s.Extremes,
		Window:          s.Window,
	})
}

func (s *Slice) UnmarshalJSON(data []byte) error {
	var w sliceJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Slice{
		DataSource:      w.DataSource,
		Dimension:       deref(w.Dimension),
		DimLabel:        deref(w.DimLabel),
		Metric:          w.Metric,
		Y:               float64(w.Y),
		YPrev:           float64(w.YPrev),
		Yhat:            float64(w.Yhat),
		YhatUpper:       float64(w.YhatUpper),
		YhatLower:       float64(w.YhatLower),
		YPrevUpper:      float64(w.YPrevUpper),
		YPrevLower:      float64(w.YPrevLower),
		DeltaPct:        float64(w.DeltaPct),
		AnomalyType:     w.AnomalyType,
		PrevAnomalyType: w.PrevAnomalyType,
		IsWarning:       w.IsWarning,
		IsCritical:      w.IsCritical,
		Color:           w.Color,
		RevenueImpact:   float64(w.RevenueImpact),
		Extremes:        w.Extremes,
		Window:          w.Window,
	}
	return nil
}
