// Package server provides the HTTP REST API for the auto-apply engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/batch"
	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/metrics"
	"github.com/jonathan/auto-apply/internal/platform"
	"github.com/jonathan/auto-apply/internal/schemas"
	"github.com/jonathan/auto-apply/internal/server/middleware"
	"github.com/jonathan/auto-apply/internal/server/ratelimit"
	"github.com/jonathan/auto-apply/internal/types"
	requestschema "github.com/jonathan/auto-apply/schemas"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes int64 = 1 << 20

var applyRequestSchema = schemas.MustCompile("apply_request.schema.json", requestschema.ApplyRequest)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	applier     batch.Applier
	registry    *platform.Registry
	metrics     *metrics.Recorder
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	concurrency int
	logger      *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port int
	// Concurrency caps batch requests; a batch file cannot raise it.
	Concurrency int
	// JWT enables bearer authentication on the apply routes when set.
	JWT       *config.JWTConfig
	RateLimit *ratelimit.Config
}

// New creates a new server instance
func New(cfg Config, applier batch.Applier, registry *platform.Registry, rec *metrics.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = platform.DefaultRegistry()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = batch.DefaultConcurrency
	}

	s := &Server{
		applier:     applier,
		registry:    registry,
		metrics:     rec,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		concurrency: cfg.Concurrency,
		logger:      logger.Named("server"),
	}
	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /platforms", s.handlePlatforms)
	if rec != nil {
		mux.Handle("GET /metrics", rec.Handler())
	}
	mux.Handle("POST /apply", s.protect(http.HandlerFunc(s.handleApply)))
	mux.Handle("POST /apply/batch", s.protect(http.HandlerFunc(s.handleBatch)))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute, // batches hold the connection until every attempt ends
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens until ctx is cancelled or the process receives SIGINT or SIGTERM,
// then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr), zap.Bool("auth", s.jwtService != nil))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.logger.Info("server stopped")
	return nil
}

// protect wraps apply routes with bearer authentication when JWT is configured.
func (s *Server) protect(next http.Handler) http.Handler {
	if s.jwtService == nil {
		return next
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(next)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// platformInfo is one entry of GET /platforms.
type platformInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Domains []string `json:"domains,omitempty"`
}

// handlePlatforms lists the registered platform strategies.
func (s *Server) handlePlatforms(w http.ResponseWriter, _ *http.Request) {
	strategies := s.registry.Strategies()
	out := make([]platformInfo, 0, len(strategies))
	for _, st := range strategies {
		out = append(out, platformInfo{
			ID:      st.ID,
			Name:    st.DisplayName(),
			Aliases: st.Aliases,
			Domains: st.Domains,
		})
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"platforms": out})
}

// ApplyRequest is the body of POST /apply.
type ApplyRequest struct {
	JobURL   string                `json:"job_url"`
	Platform string                `json:"platform"`
	Data     types.ApplicationData `json:"data"`
}

// handleApply runs a single attempt. Every attempt outcome, including failures,
// is a 200 with the result body; only unreadable requests are rejected.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readBody(w, r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if err := applyRequestSchema.Validate(raw); err != nil {
		s.errorResponse(w, err)
		return
	}

	var req ApplyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.errorResponse(w, &ErrMalformedJSON{Cause: err})
		return
	}

	clientID, _ := middleware.GetClientID(r)
	s.logger.Debug("apply request",
		zap.String("client", clientID),
		zap.String("platform", req.Platform),
		zap.String("job_url", req.JobURL))

	result := s.applier.ApplyToJob(r.Context(), req.JobURL, req.Platform, req.Data)
	s.jsonResponse(w, http.StatusOK, result)
}

// handleBatch runs a batch file body. Concurrency is capped at the server limit.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readBody(w, r)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	f, err := batch.Parse(raw)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	limit := s.concurrency
	if f.Concurrency > 0 && f.Concurrency < limit {
		limit = f.Concurrency
	}

	summary := batch.NewRunner(s.applier, limit, s.logger).Run(r.Context(), f)
	s.jsonResponse(w, http.StatusOK, summary)
}

// readBody reads at most MaxBodyBytes and rejects empty or non-JSON bodies.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &ErrPayloadTooLarge{Limit: tooLarge.Limit}
		}
		return nil, &ErrMalformedJSON{Cause: err}
	}
	if !json.Valid(raw) {
		return nil, &ErrMalformedJSON{Cause: errors.New("body is not valid JSON")}
	}
	return raw, nil
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response with the status HTTPStatus assigns
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	s.jsonResponse(w, HTTPStatus(err), newErrorBody(err))
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID),
		zap.Int("limit", info.Limit),
		zap.Time("reset", info.ResetTime))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
