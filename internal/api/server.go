package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platformbuilds/mirador-watchdog/internal/api/handlers"
	"github.com/platformbuilds/mirador-watchdog/internal/api/middleware"
	"github.com/platformbuilds/mirador-watchdog/internal/catalogue"
	"github.com/platformbuilds/mirador-watchdog/internal/config"
	"github.com/platformbuilds/mirador-watchdog/internal/evaluation"
	"github.com/platformbuilds/mirador-watchdog/pkg/cache"
	"github.com/platformbuilds/mirador-watchdog/pkg/logger"
)

// Dependencies are the services the HTTP layer delegates to.
type Dependencies struct {
	Engine     evaluation.Evaluator
	Results    *evaluation.ResultStore
	Catalogues *catalogue.Store
	Cache      cache.Cache
	Version    string
}

type Server struct {
	config     *config.Config
	logger     logger.Logger
	deps       Dependencies
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(cfg *config.Config, log logger.Logger, deps Dependencies) *Server {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	server := &Server{
		config: cfg,
		logger: log,
		deps:   deps,
		router: router,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.MetricsMiddleware())
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Cache, s.deps.Catalogues, s.deps.Version, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.Use(bodyLimit(s.config.Server.MaxBodyBytes))
	if s.config.Auth.JWT.Enabled {
		v1.Use(middleware.JWTAuth(s.config.Auth.JWT.Secret, s.config.Auth.JWT.Issuer, s.logger))
	}

	evalHandler := handlers.NewEvaluationHandler(s.deps.Engine, s.deps.Results, s.logger)
	v1.POST("/evaluate", evalHandler.EvaluateSlices)
	v1.POST("/evaluate/series", evalHandler.EvaluateSeries)
	v1.POST("/evaluate/batch", evalHandler.EvaluateBatch)
	v1.GET("/evaluations/:id", evalHandler.GetResult)

	catalogueHandler := handlers.NewCatalogueHandler(s.deps.Catalogues)
	v1.GET("/catalogue", catalogueHandler.GetCatalogue)
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Watchdog API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down watchdog API gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
