package api

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/popn-score-crawler/internal/config"
	"github.com/JakeFAU/popn-score-crawler/internal/history"
	"github.com/JakeFAU/popn-score-crawler/internal/metrics"
	"github.com/JakeFAU/popn-score-crawler/internal/orchestrator"
	"github.com/JakeFAU/popn-score-crawler/internal/progress/sinks"
)

const requestTimeout = 30 * time.Second

// Runner starts, stops and reports crawl runs.
type Runner interface {
	Start(ctx context.Context, opts orchestrator.Options, done func(orchestrator.Result, error)) (uuid.UUID, error)
	RequestStop()
	Running() bool
	Last() (orchestrator.Result, bool)
}

// StatusSource exposes the live progress view of the latest run.
type StatusSource interface {
	Latest() (sinks.RunStatus, bool)
}

// Finisher handles a finished run: export, history row and notification.
type Finisher interface {
	Finish(ctx context.Context, res orchestrator.Result) (history.Record, error)
	ListRuns(ctx context.Context, limit int) ([]history.Record, error)
}

// Server wires HTTP handlers to the run orchestrator.
type Server struct {
	router   chi.Router
	runner   Runner
	status   StatusSource
	finisher Finisher
	limiter  *rate.Limiter
	cfg      config.Config
	logger   *zap.Logger

	finishing sync.WaitGroup

	// runCtx outlives individual requests; runs started over HTTP are bound
	// to it instead of the request context.
	runCtx context.Context
}

// NewServer constructs a Server with middleware and routes. finisher may be
// nil, in which case finished runs are only kept in memory.
func NewServer(
	runCtx context.Context,
	runner Runner,
	status StatusSource,
	finisher Finisher,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:   runner,
		status:   status,
		finisher: finisher,
		limiter:  newRunLimiter(cfg.Server.RunsPerHour),
		cfg:      cfg,
		logger:   logger.Named("api"),
		runCtx:   runCtx,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Post("/stop", s.stopRun)
			r.Get("/status", s.runStatus)
			r.Get("/history", s.runHistory)
		})
		snapshots := NewSnapshotHandler(runner, s.logger)
		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", snapshots.JSON)
			r.Get("/viewer", snapshots.Viewer)
			r.Get("/table", snapshots.Table)
			r.Get("/chart.png", snapshots.Chart)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// newRunLimiter allows perHour run starts per hour, one at a time. A
// non-positive value disables the limit.
func newRunLimiter(perHour int) *rate.Limiter {
	if perHour <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), 1)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("dur", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("panic", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
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

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
