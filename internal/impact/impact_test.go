package impact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

func revenueRow(source, dim, label, metric string, y, yhat float64) models.Slice {
	return models.Slice{DataSource: source, Dimension: dim, DimLabel: label, Metric: metric, Y: y, Yhat: yhat}
}

func TestEstimate_ZeroForecastUsesObservedRevenue(t *testing.T) {
	e := New(DefaultPolicy())
	orders := models.Slice{DataSource: "Ecommerce", Metric: "Orders", Y: 40, Yhat: 50}
	scope := []models.Slice{orders, revenueRow("Ecommerce", "", "", "Revenue", 250, 0)}

	got, err := e.Estimate(orders, scope)
	require.NoError(t, err)
	assert.Equal(t, 250.0, got)
}

func TestEstimate_ScalesForecastByDelta(t *testing.T) {
	e := New(DefaultPolicy())
	orders := models.Slice{DataSource: "Ecommerce", Metric: "Orders", Y: 60, Yhat: 50}
	scope := []models.Slice{orders, revenueRow("Ecommerce", "", "", "Revenue", 1200, 1000)}

	got, err := e.Estimate(orders, scope)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, got, 1e-6)
}

func TestEstimate_CapBindsOnSmallRevenueSwing(t *testing.T) {
	e := New(DefaultPolicy())
	orders := models.Slice{DataSource: "Ecommerce", Metric: "Orders", Y: 75, Yhat: 50}
	scope := []models.Slice{orders, revenueRow("Ecommerce", "", "", "Total_Sales", 1010, 1000)}

	got, err := e.Estimate(orders, scope)
	require.NoError(t, err)
	// raw 1000 * 50% = 500, capped at |1010-1000| * 10
	assert.InDelta(t, 100.0, got, 1e-6)
}

func TestEstimate_InfiniteDeltaAndCostOfSaleUseRevenueGap(t *testing.T) {
	e := New(DefaultPolicy())
	rev := revenueRow("Ecommerce", "", "", "Revenue", 900, 1000)

	newMetric := models.Slice{DataSource: "Ecommerce", Metric: "Refunds", Y: 5, Yhat: 0}
	got, err := e.Estimate(newMetric, []models.Slice{newMetric, rev})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 1e-9)

	acos := models.Slice{DataSource: "Ecommerce", Metric: "ACOS", Y: 0.5, Yhat: 0.1}
	got, err = e.Estimate(acos, []models.Slice{acos, rev})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 1e-9)
}

func TestEstimate_NoMatchIsZero(t *testing.T) {
	e := New(DefaultPolicy())
	fb := models.Slice{DataSource: "Facebook", Metric: "Clicks", Y: 10, Yhat: 20}

	got, err := e.Estimate(fb, []models.Slice{fb})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestEstimate_AmbiguousRevenueFailsLoudly(t *testing.T) {
	e := New(DefaultPolicy())
	orders := models.Slice{DataSource: "Ecommerce", Metric: "Orders", Y: 40, Yhat: 50}
	scope := []models.Slice{
		orders,
		revenueRow("Ecommerce", "", "", "Revenue", 800, 1000),
		revenueRow("Ecommerce", "", "", "Gross_Revenue", 900, 1000),
	}

	_, err := e.Estimate(orders, scope)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousRevenue))

	var ambiguous *AmbiguousRevenueError
	require.True(t, errors.As(err, &ambiguous))
	assert.Len(t, ambiguous.Matches, 2)
	assert.Equal(t, orders.Key(), ambiguous.Slice)
}

func TestLookup(t *testing.T) {
	e := New(DefaultPolicy())

	tests := []struct {
		name         string
		slice        models.Slice
		subscription bool
		want         LookupKey
	}{
		{
			name:  "ads map to analytics cpc traffic",
			slice: models.Slice{DataSource: "Google Ads", Metric: "Clicks"},
			want:  LookupKey{DataSource: "Google Analytics", Dimension: "Source_medium", DimLabel: "google / cpc"},
		},
		{
			name:  "undimensioned analytics map to commerce revenue",
			slice: models.Slice{DataSource: "Google Analytics", Metric: "Traffic"},
			want:  LookupKey{DataSource: "Ecommerce"},
		},
		{
			name:  "dimensioned analytics keep their breakdown",
			slice: models.Slice{DataSource: "Google Analytics", Dimension: "Source_medium", DimLabel: "email", Metric: "Sessions"},
			want:  LookupKey{DataSource: "Google Analytics", Dimension: "Source_medium", DimLabel: "email"},
		},
		{
			name:  "cancellations fall back to new subscription revenue",
			slice: models.Slice{DataSource: "Ecommerce", Metric: "Cancelled_Subscriptions"},
			want:  LookupKey{DataSource: "Ecommerce", Dimension: "User_Type", DimLabel: "New_Subscription"},
		},
		{
			name:         "facebook falls back to undimensioned revenue",
			slice:        models.Slice{DataSource: "Facebook", Metric: "Purchases"},
			subscription: true,
			want:         LookupKey{DataSource: "Facebook"},
		},
		{
			name:         "revenue stays undimensioned in subscription scopes",
			slice:        models.Slice{DataSource: "Ecommerce", Metric: "Revenue"},
			subscription: true,
			want:         LookupKey{DataSource: "Ecommerce"},
		},
		{
			name:         "other metrics use subscription revenue in subscription scopes",
			slice:        models.Slice{DataSource: "Ecommerce", Metric: "Orders"},
			subscription: true,
			want:         LookupKey{DataSource: "Ecommerce", Dimension: "User_Type", DimLabel: "New_Subscription"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Lookup(tt.slice, tt.subscription))
		})
	}
}

func TestIsSubscriptionScope(t *testing.T) {
	e := New(DefaultPolicy())
	assert.False(t, e.IsSubscriptionScope([]models.Slice{{DataSource: "Ecommerce", Metric: "Revenue"}}))
	assert.True(t, e.IsSubscriptionScope([]models.Slice{{DataSource: "Ecommerce", Dimension: "User_Type", DimLabel: "New_Subscription", Metric: "Revenue"}}))
}
