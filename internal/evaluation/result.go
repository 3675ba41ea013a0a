package evaluation

import (
	"time"

	"github.com/platformbuilds/mirador-watchdog/internal/models"
	"github.com/platformbuilds/mirador-watchdog/internal/rca"
	"github.com/platformbuilds/mirador-watchdog/internal/series"
)

// Scope is one table of slices evaluated together, typically one asset of
// one account. Slices and Series may both be given; series are assembled
// into slices first.
type Scope struct {
	Account string          `json:"account"`
	Asset   string          `json:"asset"`
	Period  models.Period   `json:"period"`
	Slices  []models.Slice  `json:"slices,omitempty"`
	Series  []series.Series `json:"series,omitempty"`
}

// Stage names where a per-slice error was raised.
const (
	StageValidate = "validate"
	StageAssemble = "assemble"
	StageImpact   = "impact"
)

// SliceError is a per-slice failure collected during a pass. The slice is
// either excluded (validate) or kept with a zero impact (impact).
type SliceError struct {
	Key     string `json:"key"`
	Stage   string `json:"stage"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func newSliceError(key, stage string, err error) SliceError {
	return SliceError{Key: key, Stage: stage, Message: err.Error(), Err: err}
}

// KpiReading is a headline metric with its period-over-period comment.
type KpiReading struct {
	Kpi     models.Kpi   `json:"kpi"`
	Slice   models.Slice `json:"slice"`
	Comment string       `json:"comment"`
}

// Summary is the headline of a scope: the top anomalies each way and the
// negative severity counts.
type Summary struct {
	Negative          []models.Slice `json:"negative"`
	Positive          []models.Slice `json:"positive"`
	NegativeWarnings  int            `json:"negative_warnings"`
	NegativeCriticals int            `json:"negative_criticals"`
	Total             int            `json:"total"`
	Kpis              []KpiReading   `json:"kpis,omitempty"`
}

// Result is the outcome of evaluating one scope.
type Result struct {
	RunID       string         `json:"run_id"`
	Account     string         `json:"account"`
	Asset       string         `json:"asset"`
	Period      models.Period  `json:"period"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
	Slices      []models.Slice `json:"slices"`
	RCA         []rca.Tree     `json:"rca"`
	RCAText     string         `json:"rca_text"`
	Summary     Summary        `json:"summary"`
	Errors      []SliceError   `json:"errors,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`

	// Failure is set when the whole scope was aborted; only identity fields
	// are filled in that case.
	Failure string `json:"failure,omitempty"`
	Err     error  `json:"-"`

	// Forest is the pruned RCA forest behind RCA and RCAText.
	Forest *rca.Forest `json:"-"`
}

// Failed reports whether the scope was aborted.
func (r *Result) Failed() bool {
	return r.Err != nil || r.Failure != ""
}
