// internal/api/server.go

// Package api serves the daemon's HTTP surface: session lifecycle, trainee
// management, analytics search, token minting, the websocket telemetry
// entry point, and the operational probes.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"haptic-trainer/internal/analytics"
	"haptic-trainer/internal/common/auth"
	"haptic-trainer/internal/common/config"
	apperrors "haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/motion"
	"haptic-trainer/internal/session"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// SessionService is the lifecycle surface the API exposes. The session
// service implements it.
type SessionService interface {
	Start(ctx context.Context, req *session.StartRequest) (*models.TrainingSession, error)
	Complete(ctx context.Context, sessionID string) (*models.TrainingSession, error)
	Abort(ctx context.Context, sessionID, reason string) (*models.TrainingSession, error)
	Get(ctx context.Context, sessionID string) (*models.TrainingSession, error)
	ListByTrainee(ctx context.Context, traineeID string, limit int) ([]*models.TrainingSession, error)
	LiveSnapshot(ctx context.Context, sessionID string) (*models.LiveSession, error)
}

// ReportReader loads what the report endpoints serve. The session store
// implements it.
type ReportReader interface {
	ReportsBySession(ctx context.Context, sessionID string) ([]*motion.Report, error)
	SkillScoreBySession(ctx context.Context, sessionID string) (*models.SkillScore, error)
	SkillHistory(ctx context.Context, traineeID, task string, limit int) ([]*models.SkillScore, error)
}

// Searcher runs analytics queries. The Elasticsearch indexer implements it.
type Searcher interface {
	Search(ctx context.Context, params analytics.SearchParams) (*analytics.SearchResult, error)
}

// Probe checks one backing dependency for the readiness endpoint.
type Probe func(ctx context.Context) error

// Deps bundles everything the HTTP layer serves. Stream may be nil when the
// telemetry gateway is disabled.
type Deps struct {
	Sessions SessionService
	Reports  ReportReader
	Trainees models.TraineeRepository
	Search   Searcher
	Tokens   *auth.TokenService
	Stream   echo.HandlerFunc
	Probes   map[string]Probe
}

// Server is the daemon's HTTP front end.
type Server struct {
	echo   *echo.Echo
	addr   string
	apiKey string
	deps   Deps
	log    logger.Logger
}

// NewServer wires routes and middleware onto a fresh echo instance.
func NewServer(serverCfg config.ServerConfig, authCfg config.AuthConfig, deps Deps, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		addr:   serverCfg.Address,
		apiKey: authCfg.APIKey,
		deps:   deps,
		log:    log,
	}
	e.HTTPErrorHandler = s.errorHandler
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/healthz", s.handleHealthz)
	e.GET("/readyz", s.handleReadyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/tokens", s.handleIssueToken)

	if s.deps.Stream != nil {
		e.GET("/ws/telemetry", s.deps.Stream)
	}

	api := e.Group("/api", s.requireAuth)
	api.POST("/sessions", s.handleStartSession)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
	api.POST("/sessions/:id/complete", s.handleCompleteSession)
	api.POST("/sessions/:id/abort", s.handleAbortSession)
	api.GET("/sessions/:id/live", s.handleLiveSession)
	api.GET("/sessions/:id/report", s.handleSessionReport)

	api.POST("/trainees", s.handleCreateTrainee, s.requireControl)
	api.GET("/trainees", s.handleLookupTrainee)
	api.GET("/trainees/:id", s.handleGetTrainee)
	api.PUT("/trainees/:id", s.handleUpdateTrainee, s.requireControl)
	api.GET("/trainees/:id/skills", s.handleSkillHistory)

	api.GET("/analytics/search", s.handleAnalyticsSearch)
}

// Run serves until the context is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.addr)
	}()
	s.log.Info("HTTP server started", map[string]interface{}{
		"address": s.addr,
	})

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// errorHandler renders stray errors (echo's own 404/405, handlers returning
// raw errors) in the same envelope the handlers use.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var std *apperrors.StandardError
	if stderrors.As(err, &std) {
		writeError(c, std)
		return
	}

	var httpErr *echo.HTTPError
	if stderrors.As(err, &httpErr) {
		writeEnvelope(c, httpErr.Code, "HTTP_ERROR", httpErr.Message)
		return
	}

	s.log.Error("Unhandled API error", map[string]interface{}{
		"path":  c.Path(),
		"error": err.Error(),
	})
	writeEnvelope(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
