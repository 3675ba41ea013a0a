// Package impact estimates the revenue effect of a slice's deviation from forecast
// by scaling the matching revenue series of the same scope.
package impact

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/platformbuilds/mirador-watchdog/internal/classify"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// ErrAmbiguousRevenue means more than one revenue row matched a slice's lookup key.
var ErrAmbiguousRevenue = errors.New("more than one revenue row matches")

// AmbiguousRevenueError carries the offending rows of an ambiguous lookup.
type AmbiguousRevenueError struct {
	Slice   string
	Lookup  LookupKey
	Matches []string
}

func (e *AmbiguousRevenueError) Error() string {
	return fmt.Sprintf("revenue impact for %s: %v: lookup %s matched [%s]",
		e.Slice, ErrAmbiguousRevenue, e.Lookup, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousRevenueError) Unwrap() error { return ErrAmbiguousRevenue }

// Policy names the data sources, dimensions and metrics the revenue lookup keys on.
type Policy struct {
	AdsSource       string `mapstructure:"ads_source" validate:"required"`
	AnalyticsSource string `mapstructure:"analytics_source" validate:"required"`
	CommerceSource  string `mapstructure:"commerce_source" validate:"required"`
	SocialSource    string `mapstructure:"social_source" validate:"required"`

	// Undimensioned ads slices are valued against this analytics breakdown.
	AdsDimension string `mapstructure:"ads_dimension" validate:"required"`
	AdsDimLabel  string `mapstructure:"ads_dim_label" validate:"required"`

	// Subscription scopes are recognized by SubscriptionDimLabel appearing anywhere in the table.
	SubscriptionDimension string `mapstructure:"subscription_dimension" validate:"required"`
	SubscriptionDimLabel  string `mapstructure:"subscription_dim_label" validate:"required"`

	RevenueMetric      string `mapstructure:"revenue_metric" validate:"required"`
	CancellationMetric string `mapstructure:"cancellation_metric"`
	CostOfSaleMetric   string `mapstructure:"cost_of_sale_metric"`

	RevenueMetrics []string `mapstructure:"revenue_metrics" validate:"required,min=1"`
	CapMultiplier  float64  `mapstructure:"cap_multiplier" validate:"gt=0"`
}

// DefaultPolicy returns the lookup policy for the standard data sources.
func DefaultPolicy() Policy {
	return Policy{
		AdsSource:             "Google Ads",
		AnalyticsSource:       "Google Analytics",
		CommerceSource:        "Ecommerce",
		SocialSource:          "Facebook",
		AdsDimension:          "Source_medium",
		AdsDimLabel:           "google / cpc",
		SubscriptionDimension: "User_Type",
		SubscriptionDimLabel:  "New_Subscription",
		RevenueMetric:         "Revenue",
		CancellationMetric:    "Cancelled_Subscriptions",
		CostOfSaleMetric:      "ACOS",
		RevenueMetrics:        []string{"Revenue", "Gross_Revenue", "Total_Sales", "Ad_Sales"},
		CapMultiplier:         10,
	}
}

// LookupKey identifies the revenue row a slice is valued against.
type LookupKey struct {
	DataSource string
	Dimension  string
	DimLabel   string
}

func (k LookupKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.DataSource, k.Dimension, k.DimLabel)
}

// Estimator computes revenue impact. It holds no per-scope state.
type Estimator struct {
	policy  Policy
	revenue map[string]struct{}
}

// New builds an estimator for the given policy.
func New(policy Policy) *Estimator {
	revenue := make(map[string]struct{}, len(policy.RevenueMetrics))
	for _, m := range policy.RevenueMetrics {
		revenue[m] = struct{}{}
	}
	return &Estimator{policy: policy, revenue: revenue}
}

// Policy returns the lookup policy in use.
func (e *Estimator) Policy() Policy {
	return e.policy
}

// IsSubscriptionScope reports whether the scope carries a subscription breakdown.
func (e *Estimator) IsSubscriptionScope(scope []models.Slice) bool {
	for i := range scope {
		if scope[i].DimLabel == e.policy.SubscriptionDimLabel {
			return true
		}
	}
	return false
}

// Lookup resolves the revenue row key for s.
func (e *Estimator) Lookup(s models.Slice, subscription bool) LookupKey {
	p := e.policy

	key := LookupKey{DataSource: s.DataSource}
	switch {
	case s.DataSource == p.AdsSource:
		key.DataSource = p.AnalyticsSource
	case s.DataSource == p.AnalyticsSource && !s.HasDimension():
		key.DataSource = p.CommerceSource
	}

	if s.HasDimension() {
		key.Dimension, key.DimLabel = s.Dimension, s.DimLabel
		return key
	}

	switch {
	case s.DataSource == p.AdsSource:
		key.Dimension, key.DimLabel = p.AdsDimension, p.AdsDimLabel
	case s.DataSource == p.SocialSource, s.Metric == p.RevenueMetric:
		// undimensioned revenue row
	case p.CancellationMetric != "" && s.Metric == p.CancellationMetric:
		key.Dimension, key.DimLabel = p.SubscriptionDimension, p.SubscriptionDimLabel
	case subscription:
		key.Dimension, key.DimLabel = p.SubscriptionDimension, p.SubscriptionDimLabel
	}
	return key
}

func (e *Estimator) isRevenue(metric string) bool {
	_, ok := e.revenue[metric]
	return ok
}

// Estimate returns the bounded dollar impact of s within scope. Zero matching
// revenue rows yield zero; more than one is an *AmbiguousRevenueError.
func (e *Estimator) Estimate(s models.Slice, scope []models.Slice) (float64, error) {
	key := e.Lookup(s, e.IsSubscriptionScope(scope))

	var matches []models.Slice
	for i := range scope {
		r := scope[i]
		if r.DataSource == key.DataSource && r.Dimension == key.Dimension &&
			r.DimLabel == key.DimLabel && e.isRevenue(r.Metric) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return 0, nil
	case 1:
	default:
		keys := make([]string, len(matches))
		for i, m := range matches {
			keys[i] = m.Key()
		}
		return 0, &AmbiguousRevenueError{Slice: s.Key(), Lookup: key, Matches: keys}
	}

	revenue := finite(matches[0].Y)
	forecast := finite(matches[0].Yhat)
	if forecast == 0 {
		return math.Abs(revenue), nil
	}

	delta := classify.DeltaPct(s.Y, s.Yhat)
	var raw float64
	if math.IsInf(delta, 0) || (e.policy.CostOfSaleMetric != "" && s.Metric == e.policy.CostOfSaleMetric) {
		raw = revenue - forecast
	} else {
		raw = forecast * delta / 100
	}

	limit := (revenue - forecast) * e.policy.CapMultiplier
	return math.Min(math.Abs(raw), math.Abs(limit)), nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
