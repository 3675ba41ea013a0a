// Package evaluation runs the whole-table pass over a scope: classification,
// impact estimation, ranking, RCA construction and pruning.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
	"github.com/platformbuilds/mirador-watchdog/internal/classify"
	"github.com/platformbuilds/mirador-watchdog/internal/impact"
	"github.com/platformbuilds/mirador-watchdog/internal/metrics"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
	"github.com/platformbuilds/mirador-watchdog/internal/rca"
	"github.com/platformbuilds/mirador-watchdog/internal/series"
	"github.com/platformbuilds/mirador-watchdog/internal/tracing"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

// Evaluator evaluates scopes.
type Evaluator interface {
	Evaluate(ctx context.Context, scope Scope) (*Result, error)
	// EvaluateAll evaluates independent scopes concurrently. Results are in
	// input order; a scope that fails carries its error instead of failing
	// the batch.
	EvaluateAll(ctx context.Context, scopes []Scope) ([]*Result, error)
}

// Options configures an Engine. Zero values take defaults.
type Options struct {
	Classifier *classify.Classifier
	Estimator  *impact.Estimator
	Catalogues *catalogue.Store
	Clock      clock.PassiveClock
	// AssemblerOptions are applied to the series assembler built on Clock.
	AssemblerOptions []series.Option
	Kpis             []models.Kpi
	MaxHighlights    int
	Concurrency      int
	IncludeLeafRoots bool
}

// Engine is the default Evaluator.
type Engine struct {
	classifier    *classify.Classifier
	estimator     *impact.Estimator
	catalogues    *catalogue.Store
	assembler     *series.Assembler
	clock         clock.PassiveClock
	kpis          []models.Kpi
	maxHighlights int
	concurrency   int
	render        rca.RenderOptions
	logger        logger.Logger
	tracer        trace.Tracer
}

// NewEngine creates an Engine.
func NewEngine(opts Options, log logger.Logger) *Engine {
	if opts.Classifier == nil {
		opts.Classifier = classify.Default()
	}
	if opts.Estimator == nil {
		opts.Estimator = impact.New(impact.DefaultPolicy())
	}
	if opts.Catalogues == nil {
		opts.Catalogues = catalogue.NewStore(catalogue.Default())
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Kpis == nil {
		opts.Kpis = models.DefaultKpis()
	}
	if opts.MaxHighlights <= 0 {
		opts.MaxHighlights = DefaultMaxHighlights
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		classifier:    opts.Classifier,
		estimator:     opts.Estimator,
		catalogues:    opts.Catalogues,
		assembler:     series.NewAssembler(opts.Clock, opts.AssemblerOptions...),
		clock:         opts.Clock,
		kpis:          opts.Kpis,
		maxHighlights: opts.MaxHighlights,
		concurrency:   opts.Concurrency,
		render:        rca.RenderOptions{IncludeLeafRoots: opts.IncludeLeafRoots},
		logger:        log,
		tracer:        tracing.Tracer("evaluation"),
	}
}

// Catalogue returns the catalogue the next evaluation will use.
func (e *Engine) Catalogue() *catalogue.Catalogue {
	return e.catalogues.Current()
}

// Evaluate runs the whole-table pass over one scope. It fails fast on an
// unknown period and aborts on a data-integrity violation in the table
// layout; per-slice problems are collected in the result instead.
func (e *Engine) Evaluate(ctx context.Context, scope Scope) (res *Result, err error) {
	start := time.Now()
	period, err := models.ParsePeriod(string(scope.Period))
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "evaluation.evaluate", trace.WithAttributes(
		attribute.String("scope.account", scope.Account),
		attribute.String("scope.asset", scope.Asset),
		attribute.String("scope.period", string(period)),
		attribute.Int("scope.slices", len(scope.Slices)),
		attribute.Int("scope.series", len(scope.Series)),
	))
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			tracing.RecordError(span, err)
		}
		span.End()
		metrics.EvaluationDuration.WithLabelValues(string(period), status).Observe(time.Since(start).Seconds())
	}()

	res = &Result{
		RunID:       uuid.New().String(),
		Account:     scope.Account,
		Asset:       scope.Asset,
		Period:      period,
		EvaluatedAt: e.clock.Now().UTC(),
	}

	table, err := e.table(ctx, res, period, scope)
	if err != nil {
		return nil, fmt.Errorf("scope %s/%s: %w", scope.Account, scope.Asset, err)
	}

	for i := range table {
		if period == models.PeriodHourly {
			e.classifier.ClassifySustained(&table[i])
		} else {
			e.classifier.Classify(&table[i])
		}
		metrics.SlicesClassifiedTotal.WithLabelValues(string(period), table[i].AnomalyType.String()).Inc()
	}

	e.estimate(ctx, res, table)

	ranked := e.rank(table)
	res.Slices = ranked

	cat := e.catalogues.Current()
	built := rca.BuildForest(ranked, cat)
	pruned := rca.Prune(built)
	metrics.RCANodes.WithLabelValues("built").Observe(float64(built.Len()))
	metrics.RCANodes.WithLabelValues("pruned").Observe(float64(pruned.Len()))
	span.SetAttributes(attribute.Int("rca.nodes", pruned.Len()))

	res.Forest = pruned
	res.RCA = pruned.Trees()
	var text strings.Builder
	if err := pruned.Render(&text, e.render); err != nil {
		return nil, fmt.Errorf("failed to render RCA tree: %w", err)
	}
	res.RCAText = text.String()

	res.Summary = e.summarize(ranked, period)

	e.logger.Info("Scope evaluated",
		"run_id", res.RunID,
		"account", scope.Account,
		"asset", scope.Asset,
		"period", period,
		"slices", len(ranked),
		"rca_nodes", pruned.Len(),
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

// table assembles series, validates every slice and clamps forecasts.
// Invalid slices are dropped and recorded.
func (e *Engine) table(ctx context.Context, res *Result, period models.Period, scope Scope) ([]models.Slice, error) {
	_, span := e.tracer.Start(ctx, "evaluation.table")
	defer span.End()

	table := make([]models.Slice, 0, len(scope.Slices)+len(scope.Series))

	if len(scope.Series) > 0 {
		assembled, skipped, err := e.assembler.AssembleAll(period, scope.Series)
		if err != nil {
			return nil, err
		}
		for _, sk := range skipped {
			metrics.SliceErrorsTotal.WithLabelValues(StageAssemble).Inc()
			if errors.Is(sk.Err, series.ErrInsufficientHistory) || errors.Is(sk.Err, series.ErrMissingPeriod) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("skipped %s: %v", sk.Key, sk.Err))
				continue
			}
			res.Errors = append(res.Errors, newSliceError(sk.Key, StageAssemble, sk.Err))
		}
		table = append(table, assembled...)
	}

	for _, s := range scope.Slices {
		if err := s.Validate(); err != nil {
			metrics.SliceErrorsTotal.WithLabelValues(StageValidate).Inc()
			res.Errors = append(res.Errors, newSliceError(s.Key(), StageValidate, err))
			continue
		}
		s.ClampForecast()
		table = append(table, s)
	}
	span.SetAttributes(attribute.Int("table.rows", len(table)))
	return table, nil
}

// estimate computes every impact against the classified table before any
// impact is written back, so each estimate sees the same input.
func (e *Engine) estimate(ctx context.Context, res *Result, table []models.Slice) {
	_, span := e.tracer.Start(ctx, "evaluation.impact")
	defer span.End()

	impacts := make([]float64, len(table))
	for i, s := range table {
		v, err := e.estimator.Estimate(s, table)
		if err != nil {
			metrics.SliceErrorsTotal.WithLabelValues(StageImpact).Inc()
			e.logger.Warn("Revenue impact not estimated", "slice", s.Key(), "error", err)
			res.Errors = append(res.Errors, newSliceError(s.Key(), StageImpact, err))
			continue
		}
		impacts[i] = v
	}
	for i := range table {
		table[i].RevenueImpact = impacts[i]
	}
}

// rank orders slices by descending impact, keeping input order among ties,
// and drops the overall analytics revenue row: commerce revenue already
// stands for it.
func (e *Engine) rank(table []models.Slice) []models.Slice {
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].RevenueImpact > table[j].RevenueImpact
	})
	p := e.estimator.Policy()
	ranked := table[:0]
	for _, s := range table {
		if s.DataSource == p.AnalyticsSource && !s.HasDimension() && s.Metric == p.RevenueMetric {
			continue
		}
		ranked = append(ranked, s)
	}
	return ranked
}

// EvaluateAll implements Evaluator.
func (e *Engine) EvaluateAll(ctx context.Context, scopes []Scope) ([]*Result, error) {
	results := make([]*Result, len(scopes))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, scope := range scopes {
		i, scope := i, scope
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failed(scope, err)
				return nil
			}
			res, err := e.Evaluate(ctx, scope)
			if err != nil {
				e.logger.Error("Scope evaluation aborted", "account", scope.Account, "asset", scope.Asset, "error", err)
				results[i] = failed(scope, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func failed(scope Scope, err error) *Result {
	return &Result{
		Account: scope.Account,
		Asset:   scope.Asset,
		Period:  scope.Period,
		Failure: err.Error(),
		Err:     err,
	}
}
