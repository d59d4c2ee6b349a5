// Package api provides the HTTP REST API for the NOVA assistant.
//
// Endpoints:
//
//	POST /chat           →  answer a message (retrieval-augmented by default)
//	POST /clear-session  →  drop a conversation's history
//	GET  /health         →  liveness and knowledge base status
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, logging, CORS)
//   - ratelimit.go: per-IP rate limiting
//   - chat.go: chat endpoint
//   - session.go: session management endpoint
//   - health.go: health check endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/pipeline"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation calls dominate request latency, so this is generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Answerer is the pipeline surface the HTTP layer depends on.
type Answerer interface {
	Answer(ctx context.Context, sessionID, query string, opts ...pipeline.Option) (pipeline.Reply, error)
	AnswerDirect(ctx context.Context, sessionID, query string) (pipeline.Reply, error)
	ClearSession(sessionID string) bool
	DocumentCount(ctx context.Context) (int, error)
}

var _ Answerer = (*pipeline.Pipeline)(nil)

// Config tunes the HTTP server.
type Config struct {
	RateRPS     float64  // Per-IP sustained requests per second
	RateBurst   int      // Per-IP burst allowance
	TrustProxy  bool     // Trust X-Real-IP / X-Forwarded-For
	CORSOrigins []string // Allowed CORS origins; ["*"] allows all
}

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	cfg    Config
	logger log.Logger

	limiter *rateLimiter
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(svc Answerer, cfg Config, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:    mux,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.RateRPS > 0 {
		s.limiter = newRateLimiter(cfg.RateRPS, cfg.RateBurst)
	}

	NewChatHandler(svc, logger).RegisterRoutes(mux)
	NewSessionHandler(svc, logger).RegisterRoutes(mux)
	NewHealthHandler(svc, logger).RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → CORS → rate limit → handler
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(s.cfg.CORSOrigins),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, rateLimitMiddleware(s.limiter, s.cfg.TrustProxy, s.logger))
	}
	return chain(s.mux, middlewares...)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
