package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

func TestHuman(t *testing.T) {
	tests := map[float64]string{
		0:           "0",
		999:         "999",
		1234:        "1.23K",
		-1500:       "-1.5K",
		2500000:     "2.5M",
		3e9:         "3000000000",
		math.Inf(1): "∞",
	}
	for in, want := range tests {
		assert.Equal(t, want, Human(in), "Human(%v)", in)
	}
	assert.Equal(t, "-∞", Human(math.Inf(-1)))
}

func TestMetricKind(t *testing.T) {
	assert.Equal(t, KindRevenue, MetricKind("Revenue"))
	assert.Equal(t, KindRevenue, MetricKind("Ad_Spend"))
	assert.Equal(t, KindAOV, MetricKind("AOV"))
	assert.Equal(t, KindRate, MetricKind("Conversion_Rate"))
	assert.Equal(t, KindRate, MetricKind("ACOS"))
	assert.Equal(t, KindRate, MetricKind("sessions__to__orders"))
	assert.Equal(t, KindTraffic, MetricKind("Orders"))
}

func TestValue(t *testing.T) {
	assert.Equal(t, "$1.2K", Value(1200, "Revenue"))
	assert.Equal(t, "$45.50", Value(45.5, "AOV"))
	assert.Equal(t, "2.50%", Value(0.025, "Conversion_Rate"))
	assert.Equal(t, "40", Value(40, "Orders"))
	assert.Equal(t, "", Value(math.NaN(), "Orders"))
}

func TestDelta(t *testing.T) {
	assert.Equal(t, "▲20%", Delta(100, 120))
	assert.Equal(t, "▼20%", Delta(1000, 800))
	assert.Equal(t, "▲∞%", Delta(0, 5))
	assert.Equal(t, "▼0%", Delta(0, 0))
	assert.Equal(t, "▲>1000%", Delta(1, 50))
}

func TestName(t *testing.T) {
	assert.Equal(t, "Click Through Rate", Name("CTR"))
	assert.Equal(t, "Cost Per Click", Name("cpc"))
	assert.Equal(t, "Total Sales", Name("Total_Sales"))
	assert.Equal(t, "Sessions To Orders CVR", Name("sessions__to__orders"))
}

func TestDescribe(t *testing.T) {
	s := models.Slice{DataSource: "Google Ads", Dimension: "Campaign", DimLabel: "Brand_Search",
		Metric: "Revenue", Y: 800, Yhat: 1000}
	assert.Equal(t, `Google Ads "Brand Search" Revenue $800 (▼20%)`, Describe(s))

	s = models.Slice{DataSource: "Ecommerce", Metric: "Orders", Y: 60, Yhat: 50}
	assert.Equal(t, `Orders 60 (▲20%)`, Describe(s))
}

func TestComment(t *testing.T) {
	s := models.Slice{DataSource: "Ecommerce", Metric: "Revenue", Y: 800, YPrev: 1000}
	got, err := Comment(s, models.PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, "Revenue decreased by $-200 SDLW", got)

	got, err = Comment(models.Slice{Metric: "Orders", Y: 12, YPrev: 10}, models.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, "Orders increased by 2 WoW", got)

	got, err = Comment(models.Slice{Metric: "Revenue", Y: 1200, Yhat: 1000, YPrev: math.NaN()}, models.PeriodHourly)
	require.NoError(t, err)
	assert.Equal(t, "Revenue increased by $200 vs forecast", got)

	_, err = Comment(s, models.Period("monthly"))
	assert.ErrorIs(t, err, models.ErrUnknownPeriod)
}
