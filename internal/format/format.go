// Package format renders metric values, deltas and names for people.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// Kind groups metrics by how their values are printed.
type Kind string

const (
	KindRevenue Kind = "revenue"
	KindAOV     Kind = "aov"
	KindRate    Kind = "rate"
	KindTraffic Kind = "traffic"
)

// MetricKind infers the display kind from a metric name.
func MetricKind(metric string) Kind {
	m := strings.ToLower(metric)
	switch {
	case strings.HasPrefix(m, "revenue"), strings.HasSuffix(m, "revenue"),
		strings.HasSuffix(m, "spend"), strings.HasSuffix(m, "cost"):
		return KindRevenue
	case strings.HasPrefix(m, "aov"), strings.HasPrefix(m, "cpc"), strings.HasPrefix(m, "cac"):
		return KindAOV
	case strings.HasSuffix(m, "rate"), strings.Contains(m, "__to__"), m == "ctr",
		strings.HasSuffix(m, "share"), m == "acos":
		return KindRate
	default:
		return KindTraffic
	}
}

// Human abbreviates thousands and millions: 1234 -> 1.23K.
func Human(num float64) string {
	switch {
	case math.IsInf(num, 1):
		return "∞"
	case math.IsInf(num, -1):
		return "-∞"
	}
	sign := ""
	if num < 0 {
		sign = "-"
	}
	num = math.Abs(num)
	scaled, magnitude := num, 0
	for scaled >= 1000 {
		magnitude++
		scaled /= 1000
	}
	switch magnitude {
	case 1:
		return sign + round2(scaled) + "K"
	case 2:
		return sign + round2(scaled) + "M"
	default:
		return sign + strconv.FormatInt(int64(num), 10)
	}
}

func round2(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// Value prints v the way its metric is usually read. NaN prints as "".
func Value(v float64, metric string) string {
	if math.IsNaN(v) {
		return ""
	}
	switch MetricKind(metric) {
	case KindRevenue:
		return "$" + Human(v)
	case KindAOV:
		return fmt.Sprintf("$%.2f", v)
	case KindRate:
		return fmt.Sprintf("%.2f%%", 100*v)
	default:
		return Human(v)
	}
}

// DeltaMagnitude is the unsigned change from prev to now in percent, "∞" when
// prev is zero, and ">1000" beyond tenfold.
func DeltaMagnitude(prev, now float64) string {
	if prev == 0 {
		if now == 0 {
			return "0"
		}
		return "∞"
	}
	r := now/prev - 1
	if math.Abs(r) >= 10 {
		return ">1000"
	}
	return round2(math.Abs(r * 100))
}

// Delta prints a change with an arrow, e.g. "▼20%".
func Delta(prev, now float64) string {
	arrow := "▼"
	if now > prev {
		arrow = "▲"
	}
	return arrow + DeltaMagnitude(prev, now) + "%"
}

// Name turns a metric or label identifier into words. Funnel ratios written
// as a__to__b become title-cased conversion rates.
func Name(metric string) string {
	switch strings.ToLower(metric) {
	case "ctr":
		return "Click Through Rate"
	case "cpc":
		return "Cost Per Click"
	}
	if strings.Contains(metric, "__to__") {
		words := strings.Fields(strings.ReplaceAll(metric, "_", " "))
		for i, w := range words {
			words[i] = title(w)
		}
		return strings.Join(words, " ") + " CVR"
	}
	return strings.Join(strings.Split(metric, "_"), " ")
}

func title(w string) string {
	lower := strings.ToLower(w)
	if lower == "" {
		return lower
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// sourcesAlwaysNamed are printed in front of the metric even without a label.
var sourcesAlwaysNamed = map[string]bool{
	"Google Ads": true,
	"Facebook":   true,
}

// Describe is the one-line reading of a slice against its forecast:
// `Google Ads "Brand" Revenue $1.2K (▼20%)`.
func Describe(s models.Slice) string {
	var b strings.Builder
	if sourcesAlwaysNamed[s.DataSource] {
		b.WriteString(s.DataSource)
		b.WriteString(" ")
	}
	if s.DimLabel != "" {
		fmt.Fprintf(&b, "%q", Name(s.DimLabel))
	}
	fmt.Fprintf(&b, " %s %s (%s)", Name(s.Metric), Value(s.Y, s.Metric), Delta(s.Yhat, s.Y))
	return strings.TrimLeft(b.String(), " ")
}

// Comment summarizes the change against the comparable prior period, or
// against the forecast for hourly slices:
// `"Brand" Revenue decreased by $-200 SDLW`.
func Comment(s models.Slice, period models.Period) (string, error) {
	if _, err := models.ParsePeriod(string(period)); err != nil {
		return "", err
	}
	var b strings.Builder
	if s.DimLabel != "" {
		fmt.Fprintf(&b, "%q ", Name(s.DimLabel))
	}
	b.WriteString(Name(s.Metric))
	base := s.YPrev
	if period.ComparesForecast() {
		base = s.Yhat
	}
	if s.Y > base {
		b.WriteString(" increased by ")
	} else {
		b.WriteString(" decreased by ")
	}
	fmt.Fprintf(&b, "%s %s", Value(s.Y-base, s.Metric), period.Comparison())
	return b.String(), nil
}
