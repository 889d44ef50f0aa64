// Package httpapi provides the HTTP API for medassist.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oakhealth/medassist/internal/answer"
	"github.com/oakhealth/medassist/internal/config"
	"github.com/oakhealth/medassist/internal/engine"
)

// Pipeline is the question/ingestion surface the server exposes.
type Pipeline interface {
	Ask(ctx context.Context, question string, history []answer.Turn, stream bool) (*engine.Reply, error)
	Ingest(ctx context.Context) error
}

// Server provides HTTP endpoints for the assistant.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	registry prometheus.Gatherer
	logger   *zap.Logger
	config   config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(pipeline Pipeline, registry prometheus.Gatherer, logger *zap.Logger, cfg config.ServerConfig) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8087
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		registry: registry,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
		))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ask", s.handleAsk)
	v1.POST("/ingest", s.handleIngest)
}

// TurnPayload is one chat-history turn in an ask request.
type TurnPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the request body for POST /api/v1/ask.
type AskRequest struct {
	Question string        `json:"question"`
	History  []TurnPayload `json:"history,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

// AskResponse is the response body for POST /api/v1/ask.
type AskResponse struct {
	Outcome  string `json:"outcome"`
	Category string `json:"category,omitempty"`
	Answer   string `json:"answer"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAsk runs a question through the pipeline. With "stream": true the
// answer is delivered as server-sent events, one data event per fragment,
// terminated by a "done" event.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	history := make([]answer.Turn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, answer.Turn{Role: turn.Role, Content: turn.Content})
	}

	reply, err := s.pipeline.Ask(c.Request().Context(), req.Question, history, req.Stream)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process question")
	}

	// A reply without a stream falls back to the JSON shape even when
	// streaming was requested.
	if req.Stream && reply.Stream != nil {
		return s.writeEventStream(c, reply)
	}

	resp := AskResponse{
		Outcome: string(reply.Outcome),
		Answer:  reply.Text,
	}
	if reply.Outcome == engine.OutcomeBlocked {
		resp.Category = string(reply.Category)
	}
	return c.JSON(http.StatusOK, resp)
}

// writeEventStream drains the reply's fragment stream as SSE. The stream is
// closed on every exit path, including client disconnect.
func (s *Server) writeEventStream(c echo.Context, reply *engine.Reply) error {
	defer reply.Stream.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: outcome\ndata: %s\n\n", reply.Outcome)
	w.Flush()

	for {
		fragment, err := reply.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("answer stream interrupted", zap.Error(err))
			break
		}
		for _, line := range strings.Split(fragment, "\n") {
			fmt.Fprintf(w, "data: %s\n", line)
		}
		fmt.Fprint(w, "\n")
		w.Flush()
	}

	fmt.Fprint(w, "event: done\ndata: \n\n")
	w.Flush()
	return nil
}

// handleIngest runs the batch document ingestion pass.
func (s *Server) handleIngest(c echo.Context) error {
	if err := s.pipeline.Ingest(c.Request().Context()); err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ingestion failed")
	}
	return c.JSON(http.StatusOK, IngestResponse{Status: "ok"})
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
