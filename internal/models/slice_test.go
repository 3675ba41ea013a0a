package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		slice   Slice
		wantErr bool
	}{
		{name: "undimensioned", slice: Slice{DataSource: "Ecommerce", Metric: "Revenue"}},
		{name: "dimensioned", slice: Slice{DataSource: "Ecommerce", Dimension: "User_Type", DimLabel: "New_Subscription", Metric: "Revenue"}},
		{name: "dimension without label", slice: Slice{DataSource: "Ecommerce", Dimension: "User_Type", Metric: "Revenue"}, wantErr: true},
		{name: "label without dimension", slice: Slice{DataSource: "Ecommerce", DimLabel: "New_Subscription", Metric: "Revenue"}, wantErr: true},
		{name: "missing metric", slice: Slice{DataSource: "Ecommerce"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.slice.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSlice))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSlice_ClampForecast(t *testing.T) {
	s := Slice{Yhat: -3, YhatUpper: 4, YhatLower: -10}
	s.ClampForecast()
	assert.Equal(t, 0.0, s.Yhat)
	assert.Equal(t, 4.0, s.YhatUpper)
	assert.Equal(t, 0.0, s.YhatLower)

	s = Slice{Yhat: math.NaN(), YhatUpper: math.NaN(), YhatLower: 2}
	s.ClampForecast()
	assert.Equal(t, 0.0, s.Yhat)
	assert.Equal(t, 0.0, s.YhatUpper)
	assert.Equal(t, 2.0, s.YhatLower)
}

func TestSlice_NullForecastIsClamped(t *testing.T) {
	var s Slice
	require.NoError(t, json.Unmarshal([]byte(`{"data_source": "Ecommerce", "metric": "Orders", "y": 5, "yhat": null, "yhat_upper": null, "yhat_lower": null}`), &s))
	require.True(t, math.IsNaN(s.YhatUpper))

	s.ClampForecast()
	assert.Equal(t, 0.0, s.Yhat)
	assert.Equal(t, 0.0, s.YhatUpper)
	assert.Equal(t, 0.0, s.YhatLower)
}

func TestSlice_JSONNonFinite(t *testing.T) {
	in := Slice{
		DataSource: "Ecommerce",
		Metric:     "Orders",
		Y:          math.NaN(),
		DeltaPct:   math.Inf(1),
		Yhat:       10,
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"y":null`)
	assert.Contains(t, string(b), `"delta_pct":"+Inf"`)
	assert.Contains(t, string(b), `"dimension":null`)

	var out Slice
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, math.IsNaN(out.Y))
	assert.True(t, math.IsInf(out.DeltaPct, 1))
	assert.Equal(t, "", out.Dimension)
	assert.Equal(t, 10.0, out.Yhat)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("Weekly")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)
	assert.Equal(t, "WoW", p.Comparison())

	p, err = ParsePeriod(" HOURLY ")
	require.NoError(t, err)
	assert.Equal(t, PeriodHourly, p)
	assert.True(t, p.ComparesForecast())
	assert.False(t, PeriodDaily.ComparesForecast())

	_, err = ParsePeriod("monthly")
	assert.True(t, errors.Is(err, ErrUnknownPeriod))
}

func TestAnomalyType(t *testing.T) {
	assert.True(t, Above.IsAnomaly())
	assert.True(t, Below.IsAnomaly())
	assert.False(t, Normal.IsAnomaly())
	assert.Equal(t, Below, Above.Negate())
	assert.Equal(t, Normal, Normal.Negate())
}

func TestKpi_Matches(t *testing.T) {
	k := Kpi{DataSource: "Ecommerce", Metric: "Revenue"}
	assert.True(t, k.Matches(Slice{DataSource: "Ecommerce", Metric: "Revenue"}))
	assert.False(t, k.Matches(Slice{DataSource: "Ecommerce", Dimension: "d", DimLabel: "l", Metric: "Revenue"}))
}
