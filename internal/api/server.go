package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pubview/scholarstream/internal/scholar"
)

// Engine is the orchestration surface the HTTP layer drives.
type Engine interface {
	Submit(sourceURL, clientID, searchID string) (string, error)
	Status(clientID, searchID string) (scholar.Job, error)
	Cancel(clientID, searchID string) bool
	RecentCompleted(limit int) []scholar.Job
	Stats() scholar.PoolStats
}

// Config tunes the HTTP layer. MetricsMiddleware, when set, wraps the
// /api/v1 routes to record request metrics.
type Config struct {
	RequestTimeout    time.Duration
	MetricsMiddleware func(http.Handler) http.Handler
}

const (
	defaultRequestTimeout = 60 * time.Second
	defaultRecentLimit    = 20
)

// Server wires HTTP handlers to the engine and the progress stream.
type Server struct {
	router    chi.Router
	engine    Engine
	logger    *zap.Logger
	wsHandler http.HandlerFunc
}

// NewServer constructs a Server with middleware and routes. wsHandler mounts
// the progress stream at /ws; pass nil to disable streaming. gatherer backs
// /metrics and may be nil to use the default registry.
func NewServer(
	engine Engine,
	wsHandler http.HandlerFunc,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
	cfg Config,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		wsHandler: wsHandler,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	if wsHandler != nil {
		// The websocket route stays outside the timeout handler; upgraded
		// connections outlive any request budget.
		r.Get("/ws", wsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.MetricsMiddleware != nil {
			r.Use(cfg.MetricsMiddleware)
		}
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/recent", s.recentJobs)
			r.Route("/{client_id}/{search_id}", func(r chi.Router) {
				r.Get("/", s.jobStatus)
				r.Post("/cancel", s.cancelJob)
			})
		})
		r.Get("/pool", s.poolStats)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitJobRequest struct {
	URL      string `json:"url"`
	ClientID string `json:"client_id"`
	SearchID string `json:"search_id"`
}

func (r submitJobRequest) validate() error {
	if r.ClientID == "" {
		return errors.New("client_id required")
	}
	if r.SearchID == "" {
		return errors.New("search_id required")
	}
	if r.URL == "" {
		return errors.New("url required")
	}
	parsed, err := url.Parse(r.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errors.New("url must be absolute http(s)")
	}
	return nil
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.engine.Submit(req.URL, req.ClientID, req.SearchID)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	case errors.Is(err, scholar.ErrEngineStopped):
		s.writeError(w, http.StatusServiceUnavailable, "service shutting down")
	case errors.Is(err, scholar.ErrQueueFull):
		s.writeError(w, http.StatusServiceUnavailable, "job queue full")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	searchID := chi.URLParam(r, "search_id")
	job, err := s.engine.Status(clientID, searchID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	searchID := chi.URLParam(r, "search_id")
	if !s.engine.Cancel(clientID, searchID) {
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"canceled": false,
			"reason":   "job already executing or unknown",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"canceled": true})
}

func (s *Server) recentJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := parsePositiveInt(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	jobs := s.engine.RecentCompleted(limit)
	if jobs == nil {
		jobs = []scholar.Job{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (s *Server) poolStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Stats())
}

func parsePositiveInt(raw string) (int, error) {
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(r-'0')
		if n > 1<<20 {
			return 0, errors.New("too large")
		}
	}
	if n == 0 {
		return 0, errors.New("zero")
	}
	return n, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required so the websocket upgrade can take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacker not supported")
	}
	conn, buf, err := h.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("hijack connection: %w", err)
	}
	return conn, buf, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
