package models

import (
	"errors"
	"fmt"
	"strings"
)

// AnomalyType places an observed value relative to its forecast band.
type AnomalyType int

const (
	// Below means the value fell under the lower bound.
	Below AnomalyType = -1
	// Normal means the value is inside the band (or absent).
	Normal AnomalyType = 0
	// Above means the value exceeded the upper bound.
	Above AnomalyType = 1
)

// IsAnomaly reports whether the value left its band.
func (t AnomalyType) IsAnomaly() bool {
	return t == Below || t == Above
}

// Negate flips the direction of an anomaly. Normal stays Normal.
func (t AnomalyType) Negate() AnomalyType {
	return -t
}

func (t AnomalyType) String() string {
	switch t {
	case Below:
		return "below"
	case Above:
		return "above"
	default:
		return "normal"
	}
}

// Color is the business reading of an anomaly once reversed metrics are accounted for.
type Color string

const (
	ColorGreen   Color = "green"
	ColorRed     Color = "red"
	ColorNeutral Color = "neutral"
)

// ErrUnknownPeriod is returned for any period outside the recognized set.
var ErrUnknownPeriod = errors.New("unknown period")

// Period is the granularity a scope is evaluated at.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
	// PeriodHourly grades the trailing hours against their own forecast
	// rather than a prior period.
	PeriodHourly Period = "hourly"
)

// ParsePeriod validates a period value. It fails fast on anything it does not recognize.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDaily, PeriodWeekly, PeriodHourly:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
}

// Comparison returns the short label used when describing period-over-period change.
func (p Period) Comparison() string {
	switch p {
	case PeriodWeekly:
		return "WoW"
	case PeriodHourly:
		return "vs forecast"
	default:
		return "SDLW"
	}
}

// ComparesForecast reports whether the period is judged against the forecast
// instead of the prior period value.
func (p Period) ComparesForecast() bool {
	return p == PeriodHourly
}
