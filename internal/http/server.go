// Package http exposes the question batch over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfqa/internal/logging"
	"github.com/fyrsmithlabs/pdfqa/internal/orchestrator"
)

// Runner answers a batch of questions about one PDF.
type Runner interface {
	Run(ctx context.Context, pdfPath string, questions []string) (*orchestrator.BatchResult, error)
}

// Server provides HTTP endpoints for pdfqa.
type Server struct {
	echo   *echo.Echo
	runner Runner
	logger *zap.Logger
	config *Config

	// run serializes batches; the pipeline is single-threaded.
	run  sync.Mutex
	busy atomic.Bool
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
	Variant string
}

// NewServer creates a new HTTP server.
func NewServer(runner Runner, logger *zap.Logger, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		runner: runner,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/ask", s.handleAsk)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  "ok",
		Version: s.config.Version,
		Variant: s.config.Variant,
		Busy:    s.busy.Load(),
	})
}

// handleAsk runs one batch and returns the question -> answer mapping.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, orchestrator.ErrorDocument(errors.New("invalid request body")))
	}
	if err := validateAsk(req); err != nil {
		return c.JSON(http.StatusBadRequest, orchestrator.ErrorDocument(err))
	}

	ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))

	result, err := s.runSerialized(ctx, req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBatchAborted) {
			return c.JSON(http.StatusUnprocessableEntity, orchestrator.ErrorDocument(err))
		}
		s.logger.Error("ask failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, orchestrator.ErrorDocument(err))
	}
	return c.JSON(http.StatusOK, result)
}

// runSerialized runs one batch at a time. The lock and busy flag are
// released even when the runner panics.
func (s *Server) runSerialized(ctx context.Context, req AskRequest) (*orchestrator.BatchResult, error) {
	s.run.Lock()
	defer s.run.Unlock()
	s.busy.Store(true)
	defer s.busy.Store(false)
	return s.runner.Run(ctx, req.PDFPath, req.Questions)
}

func validateAsk(req AskRequest) error {
	if strings.TrimSpace(req.PDFPath) == "" {
		return errors.New("pdf_path is required")
	}
	if len(req.Questions) == 0 {
		return errors.New("questions must not be empty")
	}
	for i, q := range req.Questions {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("questions[%d] is empty", i)
		}
	}
	return nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
