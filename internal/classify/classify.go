// Package classify places observed values against their forecast bands and
// grades how far outside the band they fell.
package classify

import (
	"fmt"
	"math"
	"strings"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// Default severity thresholds, in percent distance from the breached bound.
const (
	DefaultWarningLower      = 10.0
	DefaultWarningUpper      = 30.0
	DefaultCriticalThreshold = 30.0
)

// Defaults for hourly grading over a sustained window.
const (
	DefaultSustainedCritical = 20.0
	DefaultMinForecastRank   = 0.4
)

// DefaultReversedMetrics are metrics where an increase is bad for the business.
var DefaultReversedMetrics = []string{
	"bounce_rate",
	"ship_time",
	"click_to_delivery_time",
	"cancelled_subscriptions",
	"cpc",
	"orders_returned",
	"refund_amount",
	"acos",
}

// DeltaPct is the percent change of now against prev. NaN inputs count as zero;
// a zero prev yields a signed infinity (or zero when now is zero too).
func DeltaPct(now, prev float64) float64 {
	if math.IsNaN(prev) {
		prev = 0
	}
	if math.IsNaN(now) {
		now = 0
	}
	if prev == 0 {
		switch {
		case now > 0:
			return math.Inf(1)
		case now < 0:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return (now/prev - 1) * 100
}

// Type is a plain band test. An absent (NaN) value is Normal.
func Type(y, upper, lower float64) models.AnomalyType {
	if math.IsNaN(y) {
		return models.Normal
	}
	switch {
	case y > upper:
		return models.Above
	case y < lower:
		return models.Below
	default:
		return models.Normal
	}
}

// Thresholds bound the warning range (WarningLower, WarningUpper] and the
// critical range (Critical, +Inf).
type Thresholds struct {
	WarningLower float64
	WarningUpper float64
	Critical     float64
}

// DefaultThresholds returns the 10/30/30 grading.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WarningLower: DefaultWarningLower,
		WarningUpper: DefaultWarningUpper,
		Critical:     DefaultCriticalThreshold,
	}
}

// Validate keeps the warning range below the critical one.
func (t Thresholds) Validate() error {
	if t.WarningLower < 0 {
		return fmt.Errorf("warning lower bound must be >= 0, got %.2f", t.WarningLower)
	}
	if t.WarningLower >= t.WarningUpper {
		return fmt.Errorf("warning lower bound %.2f must be below upper bound %.2f", t.WarningLower, t.WarningUpper)
	}
	if t.WarningUpper > t.Critical {
		return fmt.Errorf("warning upper bound %.2f must not exceed critical threshold %.2f", t.WarningUpper, t.Critical)
	}
	return nil
}

// SustainedRule grades hourly slices. Every reading of the window must leave
// its band on the same side and carry a forecast ranked at least
// MinForecastRank within its series. Critical is tested on each reading.
type SustainedRule struct {
	Critical        float64
	MinForecastRank float64
}

// DefaultSustainedRule returns the 20% / 0.4 rank grading.
func DefaultSustainedRule() SustainedRule {
	return SustainedRule{Critical: DefaultSustainedCritical, MinForecastRank: DefaultMinForecastRank}
}

func (r SustainedRule) Validate() error {
	if r.Critical <= 0 {
		return fmt.Errorf("sustained critical threshold must be > 0, got %.2f", r.Critical)
	}
	if r.MinForecastRank < 0 || r.MinForecastRank > 1 {
		return fmt.Errorf("minimum forecast rank must be within [0, 1], got %.2f", r.MinForecastRank)
	}
	return nil
}

// Classifier grades slices. It is safe for concurrent use once built.
type Classifier struct {
	thresholds Thresholds
	sustained  SustainedRule
	reversed   map[string]struct{}
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSustainedRule overrides DefaultSustainedRule.
func WithSustainedRule(r SustainedRule) Option {
	return func(c *Classifier) { c.sustained = r }
}

// New builds a classifier. A nil reversed list selects DefaultReversedMetrics.
func New(thresholds Thresholds, reversed []string, opts ...Option) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{thresholds: thresholds, sustained: DefaultSustainedRule()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.sustained.Validate(); err != nil {
		return nil, err
	}
	if reversed == nil {
		reversed = DefaultReversedMetrics
	}
	c.reversed = make(map[string]struct{}, len(reversed))
	for _, m := range reversed {
		c.reversed[strings.ToLower(m)] = struct{}{}
	}
	return c, nil
}

// Default returns a classifier with the default thresholds and reversal set.
func Default() *Classifier {
	c, _ := New(DefaultThresholds(), nil)
	return c
}

// Thresholds returns the grading in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// SustainedRule returns the hourly grading in use.
func (c *Classifier) SustainedRule() SustainedRule {
	return c.sustained
}

// distances are the signed percent distances past the lower and upper bound.
// The lower one is measured as -DeltaPct(y, lower), so it is a percent of the bound.
func distances(y, upper, lower float64) (belowLower, aboveUpper float64) {
	return -DeltaPct(y, lower), DeltaPct(y, upper)
}

// IsWarning reports whether y sits in the warning range past either bound.
func (c *Classifier) IsWarning(y, upper, lower float64) bool {
	below, above := distances(y, upper, lower)
	lo, hi := c.thresholds.WarningLower, c.thresholds.WarningUpper
	return (lo < below && below <= hi) || (lo < above && above <= hi)
}

// IsCritical reports whether y sits past the critical threshold on either side.
func (c *Classifier) IsCritical(y, upper, lower float64) bool {
	below, above := distances(y, upper, lower)
	return below > c.thresholds.Critical || above > c.thresholds.Critical
}

// IsReversed reports whether a positive deviation of metric is bad news.
func (c *Classifier) IsReversed(metric string) bool {
	_, ok := c.reversed[strings.ToLower(metric)]
	return ok
}

// Color maps an anomaly to its business reading.
func (c *Classifier) Color(t models.AnomalyType, metric string) models.Color {
	if c.IsReversed(metric) {
		t = t.Negate()
	}
	switch t {
	case models.Above:
		return models.ColorGreen
	case models.Below:
		return models.ColorRed
	default:
		return models.ColorNeutral
	}
}

// Classify fills the derived fields of s that depend only on the slice itself.
// Severity is graded without the reversal flip.
func (c *Classifier) Classify(s *models.Slice) {
	s.DeltaPct = DeltaPct(s.Y, s.Yhat)
	s.AnomalyType = Type(s.Y, s.YhatUpper, s.YhatLower)
	s.IsWarning = c.IsWarning(s.Y, s.YhatUpper, s.YhatLower)
	s.IsCritical = c.IsCritical(s.Y, s.YhatUpper, s.YhatLower)
	s.Color = c.Color(s.AnomalyType, s.Metric)

	// The prior-period band reuses half the forecast band width on each side.
	half := (s.YhatUpper - s.YhatLower) / 2
	s.YPrevUpper = s.YPrev + half
	s.YPrevLower = s.YPrev - half
	s.PrevAnomalyType = Type(s.Y, s.YPrevUpper, s.YPrevLower)
}

// ClassifySustained grades an hourly slice from its window. Y and the band are
// the window means; the direction and severity come from the readings. Hourly
// slices carry no warning grade and no prior period. A slice without a window
// is graded as a window of its own values.
func (c *Classifier) ClassifySustained(s *models.Slice) {
	window := s.Window
	if len(window) == 0 {
		window = []models.Reading{{
			Y:            models.Float(s.Y),
			Yhat:         models.Float(s.Yhat),
			YhatUpper:    models.Float(s.YhatUpper),
			YhatLower:    models.Float(s.YhatLower),
			ForecastRank: 1,
		}}
	}

	s.DeltaPct = DeltaPct(s.Y, s.Yhat)
	s.AnomalyType, s.IsCritical = c.sustainedGrade(window)
	s.IsWarning = false
	s.Color = c.Color(s.AnomalyType, s.Metric)

	s.YPrev = math.NaN()
	s.YPrevUpper, s.YPrevLower = math.NaN(), math.NaN()
	s.PrevAnomalyType = models.Normal
}

func (c *Classifier) sustainedGrade(window []models.Reading) (models.AnomalyType, bool) {
	if len(window) == 0 {
		return models.Normal, false
	}
	direction := models.Normal
	critical := true
	for i, r := range window {
		y, upper, lower := float64(r.Y), float64(r.YhatUpper), float64(r.YhatLower)
		t := Type(y, upper, lower)
		if !t.IsAnomaly() || (i > 0 && t != direction) {
			return models.Normal, false
		}
		direction = t
		if rank := float64(r.ForecastRank); math.IsNaN(rank) || rank < c.sustained.MinForecastRank {
			return models.Normal, false
		}
		below, above := distances(y, upper, lower)
		if !(below > c.sustained.Critical || above > c.sustained.Critical) {
			critical = false
		}
	}
	return direction, critical
}
