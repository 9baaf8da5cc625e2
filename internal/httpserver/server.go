package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radiusdt/adsight/internal/config"
	"github.com/radiusdt/adsight/internal/database"
	"github.com/radiusdt/adsight/internal/insight"
	"github.com/radiusdt/adsight/internal/metrics"
	"github.com/radiusdt/adsight/internal/middleware"
	"github.com/radiusdt/adsight/internal/models"
)

const (
	maxBodyBytes    = 64 << 10
	maxQuestionLen  = 2000
	maxHistoryTurns = 50
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, req insight.AskRequest) *models.Result
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Pipeline Asker
	// Checks are run by /health, keyed by component name.
	Checks  map[string]HealthChecker
	DB      *database.PostgresDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps the HTTP handlers around the question pipeline.
type Server struct {
	pipeline Asker
	checks   map[string]HealthChecker
	db       *database.PostgresDB
	logger   *zap.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string                  `json:"question"`
	History  []models.HistoryMessage `json:"history"`
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		pipeline: deps.Pipeline,
		checks:   deps.Checks,
		db:       deps.DB,
		logger:   logger,
		config:   deps.Config,
		metrics:  deps.Metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestIDHandler)
	r.Use(middleware.NewRecoveryMiddleware(logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(logger).Handler)
	r.Use(middleware.NewAuthMiddleware(deps.Config.Auth, logger).Handler)

	r.Get("/health", s.handleHealth)

	if deps.Config.Metrics.Enabled && deps.Metrics != nil {
		r.Method(http.MethodGet, deps.Config.Metrics.Path, deps.Metrics.Handler())
	}

	limiter := middleware.NewRateLimitMiddleware(deps.Config.RateLimit, logger, deps.Metrics)
	r.With(limiter.Handler).Post("/ask", s.handleAsk)

	return r
}

// ---- Ask ----

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.errorResponse(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	switch {
	case req.Question == "":
		s.errorResponse(w, "question is required", http.StatusBadRequest)
		return
	case len(req.Question) > maxQuestionLen:
		s.errorResponse(w, "question is too long", http.StatusBadRequest)
		return
	}
	if len(req.History) > maxHistoryTurns {
		req.History = req.History[len(req.History)-maxHistoryTurns:]
	}

	ctx := r.Context()
	if s.config.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Server.RequestTimeout)
		defer cancel()
	}

	res := s.pipeline.Ask(ctx, insight.AskRequest{
		Question:  req.Question,
		History:   req.History,
		RequestID: middleware.RequestID(r.Context()),
	})
	s.jsonResponse(w, res)
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name].Health(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
			components[name] = "unavailable"
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	if s.db != nil && s.metrics != nil {
		stat := s.db.Stats()
		s.metrics.UpdateDBStats(int(stat.IdleConns()), int(stat.AcquiredConns()), int(stat.TotalConns()))
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "components": components})
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
