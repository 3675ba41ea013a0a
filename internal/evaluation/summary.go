package evaluation

import (
	"math"
	"sort"

	"github.com/platformbuilds/mirador-watchdog/internal/format"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

// DefaultMaxHighlights is how many anomalies are headlined each way.
const DefaultMaxHighlights = 3

// summarize picks the headline anomalies from a ranked table. Only warning or
// critical slices with a finite delta qualify; KPIs come first, then higher
// impact.
func (e *Engine) summarize(ranked []models.Slice, period models.Period) Summary {
	var negative, positive []models.Slice
	var sum Summary
	for _, s := range ranked {
		if !(s.IsWarning || s.IsCritical) || math.IsInf(s.DeltaPct, 0) {
			continue
		}
		switch s.Color {
		case models.ColorRed:
			negative = append(negative, s)
			if s.IsWarning {
				sum.NegativeWarnings++
			}
			if s.IsCritical {
				sum.NegativeCriticals++
			}
		case models.ColorGreen:
			positive = append(positive, s)
		}
	}

	sum.Negative = e.headline(negative)
	sum.Positive = e.headline(positive)
	sum.Total = len(sum.Negative) + len(sum.Positive)

	for _, k := range e.kpis {
		for _, s := range ranked {
			if !k.Matches(s) {
				continue
			}
			comment, err := format.Comment(s, period)
			if err != nil {
				continue
			}
			sum.Kpis = append(sum.Kpis, KpiReading{Kpi: k, Slice: s, Comment: comment})
			break
		}
	}
	return sum
}

func (e *Engine) headline(candidates []models.Slice) []models.Slice {
	sort.SliceStable(candidates, func(i, j int) bool {
		ki, kj := e.isKpi(candidates[i]), e.isKpi(candidates[j])
		if ki != kj {
			return ki
		}
		return candidates[i].RevenueImpact > candidates[j].RevenueImpact
	})
	if len(candidates) > e.maxHighlights {
		candidates = candidates[:e.maxHighlights]
	}
	return candidates
}

func (e *Engine) isKpi(s models.Slice) bool {
	for _, k := range e.kpis {
		if k.Matches(s) {
			return true
		}
	}
	return false
}
