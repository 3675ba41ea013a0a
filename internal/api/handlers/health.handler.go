package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
	"github.com/platformbuilds/mirador-watchdog/pkg/cache"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

const serviceName = "mirador-watchdog"

type HealthHandler struct {
	cache      cache.Cache // may be nil
	catalogues *catalogue.Store
	version    string
	logger     logger.Logger
}

func NewHealthHandler(c cache.Cache, catalogues *catalogue.Store, version string, log logger.Logger) *HealthHandler {
	return &HealthHandler{cache: c, catalogues: catalogues, version: version, logger: log}
}

// GET /health - Quick health check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   h.version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - the catalogue is loaded and the result cache answers. Running on
// the in-memory fallback is reported as degraded but still ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	checks := gin.H{}

	if cat := h.catalogues.Current(); cat == nil || cat.Len() == 0 {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
		checks["catalogue"] = "empty"
	} else {
		checks["catalogue"] = "ok"
	}

	if h.cache != nil {
		err := h.cache.HealthCheck(ctx)
		switch {
		case err == nil:
			checks["cache"] = "ok"
		case errors.Is(err, cache.ErrInMemory):
			checks["cache"] = "in_memory"
			if status == "healthy" {
				status = "degraded"
			}
		default:
			h.logger.Warn("Cache readiness check failed", "error", err)
			checks["cache"] = err.Error()
			status, httpStatus = "unhealthy", http.StatusServiceUnavailable
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   h.version,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
