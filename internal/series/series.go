// Package series turns a per-metric history with forecast bands into the
// slice evaluated for one period. Dates come from an injected clock so a run
// sees one consistent "today".
package series

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"k8s.io/utils/clock"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
)

var (
	// ErrInsufficientHistory means the series has too few observations to be
	// classified. Callers skip it and record a warning.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrMissingPeriod means the current period has no row yet. Callers skip
	// the series and record a warning.
	ErrMissingPeriod = errors.New("no data for period")
	// ErrWeekdayMismatch means weekly rows do not all start on the same weekday.
	ErrWeekdayMismatch = errors.New("weekly rows start on different weekdays")
)

// DefaultMinObservations is the least number of non-null values a series
// needs before it is classified.
const DefaultMinObservations = 10

// DefaultSustainedWindow is how many trailing observations an hourly slice
// is averaged over.
const DefaultSustainedWindow = 3

const dateLayout = "2006-01-02"

// Point is one dated observation with its forecast. A NaN Y is missing.
type Point struct {
	Time      time.Time    `json:"time"`
	Y         models.Float `json:"y"`
	Yhat      models.Float `json:"yhat"`
	YhatUpper models.Float `json:"yhat_upper"`
	YhatLower models.Float `json:"yhat_lower"`
}

// Series is the history of one slice identity, oldest first.
type Series struct {
	DataSource string  `json:"data_source"`
	Dimension  string  `json:"dimension,omitempty"`
	DimLabel   string  `json:"dim_label,omitempty"`
	Metric     string  `json:"metric"`
	Points     []Point `json:"points"`
}

// Key identifies the series the same way models.Slice.Key does.
func (s Series) Key() string {
	return models.Slice{DataSource: s.DataSource, Dimension: s.Dimension, DimLabel: s.DimLabel, Metric: s.Metric}.Key()
}

// Window is the pair of period start dates compared in one evaluation.
type Window struct {
	Current  time.Time
	Previous time.Time
}

// Assembler builds slices from series.
type Assembler struct {
	clock           clock.PassiveClock
	location        *time.Location
	minObservations int
	sustainedWindow int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMinObservations overrides DefaultMinObservations.
func WithMinObservations(n int) Option {
	return func(a *Assembler) { a.minObservations = n }
}

// WithSustainedWindow overrides DefaultSustainedWindow.
func WithSustainedWindow(n int) Option {
	return func(a *Assembler) { a.sustainedWindow = n }
}

// WithLocation sets the time zone dates are read in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(a *Assembler) { a.location = loc }
}

// NewAssembler returns an assembler reading today's date from clk.
func NewAssembler(clk clock.PassiveClock, opts ...Option) *Assembler {
	a := &Assembler{
		clock:           clk,
		location:        time.UTC,
		minObservations: DefaultMinObservations,
		sustainedWindow: DefaultSustainedWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Today is the current date at midnight.
func (a *Assembler) Today() time.Time {
	return a.day(a.clock.Now())
}

func (a *Assembler) day(t time.Time) time.Time {
	t = t.In(a.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, a.location)
}

// DailyWindow compares yesterday with the same day last week.
func (a *Assembler) DailyWindow() Window {
	yesterday := a.Today().AddDate(0, 0, -1)
	return Window{Current: yesterday, Previous: yesterday.AddDate(0, 0, -7)}
}

// WeeklyWindow compares the last complete week starting on weekday with the
// week before it.
func (a *Assembler) WeeklyWindow(weekday time.Weekday) Window {
	start := lastWeekStart(a.Today(), weekday)
	return Window{Current: start, Previous: lastWeekStart(start, weekday)}
}

// lastWeekStart finds the latest seven-day span ending before today that
// starts on weekday, and returns its first day.
func lastWeekStart(today time.Time, weekday time.Weekday) time.Time {
	end := today.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -6)
	for start.Weekday() != weekday {
		end = end.AddDate(0, 0, -1)
		start = end.AddDate(0, 0, -6)
	}
	return start
}

// Weekday returns the weekday weekly rows of s start on, and fails when rows
// disagree.
func (a *Assembler) Weekday(s Series) (time.Weekday, error) {
	if len(s.Points) == 0 {
		return time.Sunday, fmt.Errorf("%w: %s has no rows", ErrInsufficientHistory, s.Key())
	}
	want := s.Points[0].Time.In(a.location).Weekday()
	for _, p := range s.Points[1:] {
		if got := p.Time.In(a.location).Weekday(); got != want {
			return want, fmt.Errorf("%w: %s has rows on %s and %s", ErrWeekdayMismatch, s.Key(), want, got)
		}
	}
	return want, nil
}

// Window picks the comparison dates for s under period. Hourly slices have no
// date window; see AssembleSustained.
func (a *Assembler) Window(period models.Period, s Series) (Window, error) {
	switch period {
	case models.PeriodDaily:
		return a.DailyWindow(), nil
	case models.PeriodWeekly:
		wd, err := a.Weekday(s)
		if err != nil {
			return Window{}, err
		}
		return a.WeeklyWindow(wd), nil
	default:
		return Window{}, fmt.Errorf("%w: %q", models.ErrUnknownPeriod, period)
	}
}

// Assemble produces the unclassified slice of s for period.
func (a *Assembler) Assemble(period models.Period, s Series) (models.Slice, error) {
	if period == models.PeriodHourly {
		return a.AssembleSustained(s)
	}
	w, err := a.Window(period, s)
	if err != nil {
		return models.Slice{}, err
	}
	return a.AssembleWindow(w, s)
}

// AssembleWindow produces the slice of s for an explicit window.
func (a *Assembler) AssembleWindow(w Window, s Series) (models.Slice, error) {
	out, err := a.identity(s, a.minObservations)
	if err != nil {
		return out, err
	}

	current, hasCurrent := a.last(s.Points, w.Current)
	if !hasCurrent {
		return out, fmt.Errorf("%w: %s has no row for %s", ErrMissingPeriod, s.Key(), w.Current.Format(dateLayout))
	}
	out.Y = float64(current.Y)
	out.Yhat, out.YhatUpper, out.YhatLower = float64(current.Yhat), float64(current.YhatUpper), float64(current.YhatLower)

	// A missing prior period compares against zero.
	if previous, ok := a.last(s.Points, w.Previous); ok {
		out.YPrev = float64(previous.Y)
	}
	out.ClampForecast()
	out.Extremes = a.extremes(s.Points, w.Current, out.Y)
	return out, nil
}

// identity validates s and checks it has enough history to be classified.
func (a *Assembler) identity(s Series, need int) (models.Slice, error) {
	out := models.Slice{DataSource: s.DataSource, Dimension: s.Dimension, DimLabel: s.DimLabel, Metric: s.Metric}
	if err := out.Validate(); err != nil {
		return out, err
	}

	observed := 0
	for _, p := range s.Points {
		if !math.IsNaN(float64(p.Y)) {
			observed++
		}
	}
	if observed < need {
		return out, fmt.Errorf("%w: %s has %d observations, need %d",
			ErrInsufficientHistory, s.Key(), observed, need)
	}
	return out, nil
}

// AssembleSustained produces the hourly slice of s: Y and the forecast band
// are the means over the last observed points, and the window keeps each
// point with the percentile rank of its forecast across the whole series.
func (a *Assembler) AssembleSustained(s Series) (models.Slice, error) {
	size := max(a.sustainedWindow, 1)
	out, err := a.identity(s, max(a.minObservations, size))
	if err != nil {
		return out, err
	}

	forecasts := make([]float64, len(s.Points))
	for i, p := range s.Points {
		forecasts[i] = models.NonNegative(float64(p.Yhat))
	}
	ranks := percentileRanks(forecasts)

	window := make([]models.Reading, 0, size)
	for i := len(s.Points) - 1; i >= 0 && len(window) < size; i-- {
		p := s.Points[i]
		if math.IsNaN(float64(p.Y)) {
			continue
		}
		window = append(window, models.Reading{
			Y:            p.Y,
			Yhat:         models.Float(forecasts[i]),
			YhatUpper:    models.Float(models.NonNegative(float64(p.YhatUpper))),
			YhatLower:    models.Float(models.NonNegative(float64(p.YhatLower))),
			ForecastRank: models.Float(ranks[i]),
		})
	}
	slices.Reverse(window)

	var y, yhat, upper, lower float64
	for _, r := range window {
		y += float64(r.Y)
		yhat += float64(r.Yhat)
		upper += float64(r.YhatUpper)
		lower += float64(r.YhatLower)
	}
	n := float64(len(window))
	out.Y, out.Yhat, out.YhatUpper, out.YhatLower = y/n, yhat/n, upper/n, lower/n
	out.YPrev = math.NaN()
	out.Window = window
	return out, nil
}

// percentileRanks ranks values ascending, giving ties their average rank,
// and scales the ranks into (0, 1].
func percentileRanks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(values[a], values[b]) })

	n := float64(len(values))
	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		rank := float64(i+j+2) / 2 / n
		for k := i; k <= j; k++ {
			ranks[idx[k]] = rank
		}
		i = j + 1
	}
	return ranks
}

// last returns the last point dated on day.
func (a *Assembler) last(points []Point, day time.Time) (Point, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if a.day(points[i].Time).Equal(day) {
			return points[i], true
		}
	}
	return Point{}, false
}

// extremes flags whether y is the maximum of the trailing year, six months
// and three months up to current. Windows are anchored on today.
func (a *Assembler) extremes(points []Point, current time.Time, y float64) models.Extremes {
	if math.IsNaN(y) {
		return models.Extremes{}
	}
	today := a.Today()
	isMax := func(days int) bool {
		from := today.AddDate(0, 0, -days)
		best := math.Inf(-1)
		for _, p := range points {
			d := a.day(p.Time)
			v := float64(p.Y)
			if d.Before(from) || d.After(current) || math.IsNaN(v) {
				continue
			}
			best = math.Max(best, v)
		}
		return y == best
	}
	return models.Extremes{
		IsYearMaximum:       isMax(365),
		IsSixMonthMaximum:   isMax(6 * 30),
		IsThreeMonthMaximum: isMax(3 * 30),
	}
}

// Skipped is a series left out of a table with the soft error explaining why.
type Skipped struct {
	Key string
	Err error
}

// AssembleAll assembles every series of one scope. Soft failures skip the
// series and are reported in skipped. A weekday mismatch, within a series or
// across the scope, fails the whole table.
func (a *Assembler) AssembleAll(period models.Period, all []Series) ([]models.Slice, []Skipped, error) {
	var window Window
	switch period {
	case models.PeriodHourly:
		return a.assembleEach(all, a.AssembleSustained)
	case models.PeriodDaily:
		window = a.DailyWindow()
	case models.PeriodWeekly:
		var (
			weekday time.Weekday
			seen    bool
		)
		for _, s := range all {
			if len(s.Points) == 0 {
				continue
			}
			wd, err := a.Weekday(s)
			if err != nil {
				return nil, nil, err
			}
			if seen && wd != weekday {
				return nil, nil, fmt.Errorf("%w: %s starts on %s, scope on %s", ErrWeekdayMismatch, s.Key(), wd, weekday)
			}
			weekday, seen = wd, true
		}
		window = a.WeeklyWindow(weekday)
	default:
		return nil, nil, fmt.Errorf("%w: %q", models.ErrUnknownPeriod, period)
	}

	return a.assembleEach(all, func(s Series) (models.Slice, error) {
		return a.AssembleWindow(window, s)
	})
}

func (a *Assembler) assembleEach(all []Series, assemble func(Series) (models.Slice, error)) ([]models.Slice, []Skipped, error) {
	out := make([]models.Slice, 0, len(all))
	var skipped []Skipped
	for _, s := range all {
		sl, err := assemble(s)
		if err != nil {
			skipped = append(skipped, Skipped{Key: s.Key(), Err: err})
			continue
		}
		out = append(out, sl)
	}
	return out, skipped, nil
}
