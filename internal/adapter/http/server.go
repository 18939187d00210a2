package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the query API alongside health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	api        Analyzer
	logger     *slog.Logger
	limiter    *clientLimiter
	audits     AuditLister
}

// Option configures a Server.
type Option func(*Server) error

// WithRateLimit limits each client IP to perMinute /api/v1 requests with the
// given burst. A non-positive perMinute leaves the API unlimited.
func WithRateLimit(perMinute, burst int) Option {
	return func(s *Server) error {
		if perMinute <= 0 {
			return nil
		}
		l, err := newClientLimiter(perMinute, max(burst, 1))
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		s.limiter = l
		return nil
	}
}

// WithAuditLog serves GET /api/v1/audits from l.
func WithAuditLog(l AuditLister) Option {
	return func(s *Server) error {
		s.audits = l
		return nil
	}
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /api/v1 routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api Analyzer, logger *slog.Logger, opts ...Option) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:    api,
		logger: logger,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/query", s.limited(s.handleQuery))
	mux.HandleFunc("GET /api/v1/datasets", s.limited(s.handleDatasets))
	mux.HandleFunc("GET /api/v1/datasets/{name}", s.limited(s.handleDataset))
	mux.HandleFunc("GET /api/v1/risk", s.limited(s.handleRisk))
	mux.HandleFunc("GET /api/v1/correlation", s.limited(s.handleCorrelation))
	mux.HandleFunc("GET /api/v1/insights", s.limited(s.handleInsights))
	if s.audits != nil {
		mux.HandleFunc("GET /api/v1/audits", s.limited(s.handleAudits))
	}

	return s, nil
}

func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return h
	}
	return s.limiter.wrap(h)
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
