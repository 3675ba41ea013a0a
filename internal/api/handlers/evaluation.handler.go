package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-watchdog/internal/evaluation"
	"github.com/platformbuilds/mirador-watchdog/internal/models"
	"github.com/platformbuilds/mirador-watchdog/internal/series"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

// MaxBatchScopes bounds a single batch request.
const MaxBatchScopes = 256

// EvaluationHandler serves the evaluation endpoints. Results are kept in the
// store so clients can fetch them again by run id.
type EvaluationHandler struct {
	engine evaluation.Evaluator
	store  *evaluation.ResultStore
	logger logger.Logger
}

func NewEvaluationHandler(engine evaluation.Evaluator, store *evaluation.ResultStore, log logger.Logger) *EvaluationHandler {
	return &EvaluationHandler{engine: engine, store: store, logger: log}
}

type batchRequest struct {
	Scopes []evaluation.Scope `json:"scopes"`
}

type batchResponse struct {
	Status  string               `json:"status"`
	Results []*evaluation.Result `json:"results"`
}

// POST /api/v1/evaluate - evaluate a table of slices
func (h *EvaluationHandler) EvaluateSlices(c *gin.Context) {
	var scope evaluation.Scope
	if err := c.ShouldBindJSON(&scope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request_format"})
		return
	}
	if len(scope.Slices) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "slices_required"})
		return
	}
	scope.Series = nil
	h.evaluate(c, scope)
}

// POST /api/v1/evaluate/series - assemble histories into slices, then evaluate
func (h *EvaluationHandler) EvaluateSeries(c *gin.Context) {
	var scope evaluation.Scope
	if err := c.ShouldBindJSON(&scope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request_format"})
		return
	}
	if len(scope.Series) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "series_required"})
		return
	}
	h.evaluate(c, scope)
}

func (h *EvaluationHandler) evaluate(c *gin.Context, scope evaluation.Scope) {
	res, err := h.engine.Evaluate(c.Request.Context(), scope)
	if err != nil {
		status, code := classifyError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Evaluation failed", "account", scope.Account, "asset", scope.Asset, "error", err)
		}
		c.JSON(status, gin.H{"status": "error", "error": code, "message": err.Error()})
		return
	}
	h.save(c, res)
	c.JSON(http.StatusOK, res)
}

// POST /api/v1/evaluate/batch - evaluate several scopes concurrently
func (h *EvaluationHandler) EvaluateBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request_format"})
		return
	}
	if len(req.Scopes) == 0 || len(req.Scopes) > MaxBatchScopes {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "scope_count_out_of_range"})
		return
	}

	results, err := h.engine.EvaluateAll(c.Request.Context(), req.Scopes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "request_cancelled"})
		return
	}

	status := "success"
	for _, res := range results {
		if res.Failed() {
			status = "partial"
			continue
		}
		h.save(c, res)
	}
	c.JSON(http.StatusOK, batchResponse{Status: status, Results: results})
}

// GET /api/v1/evaluations/:id - fetch a stored result
func (h *EvaluationHandler) GetResult(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "result_store_unavailable"})
		return
	}
	res, err := h.store.Load(c.Request.Context(), c.Param("id"))
	if errors.Is(err, evaluation.ErrResultNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "result_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load evaluation result", "run_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "result_store_failure"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// save stores a result; a store failure only costs later retrieval.
func (h *EvaluationHandler) save(c *gin.Context, res *evaluation.Result) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(c.Request.Context(), res); err != nil {
		h.logger.Warn("Failed to store evaluation result", "run_id", res.RunID, "error", err)
	}
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUnknownPeriod):
		return http.StatusBadRequest, "unknown_period"
	case errors.Is(err, series.ErrWeekdayMismatch):
		return http.StatusUnprocessableEntity, "weekday_mismatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request_cancelled"
	default:
		return http.StatusInternalServerError, "evaluation_failed"
	}
}
