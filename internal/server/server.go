// Package server exposes the market ledger over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/server/handler"
	"github.com/openpredict/marketd/internal/server/middleware"
	"github.com/openpredict/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// RateLimiter throttles write endpoints per client IP when set. Nil
	// disables rate limiting.
	RateLimiter domain.RateLimiter
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Markets  *handler.MarketHandler
	Treasury *handler.TreasuryHandler
	Accounts *handler.AccountHandler
}

// Server is the HTTP + WebSocket API server for the market daemon.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// Write endpoints that move value go through the rate limiter; privileged
// endpoints carry their credential in the request and are authorized at the
// service layer.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	throttled := func(h http.HandlerFunc) http.HandlerFunc {
		if cfg.RateLimiter == nil {
			return h
		}
		limit := cfg.RateLimit
		if limit <= 0 {
			limit = 30
		}
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		wrapped := middleware.RateLimit(cfg.RateLimiter, limit, window)(h)
		return wrapped.ServeHTTP
	}

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/positions/{account}", handlers.Markets.GetPosition)
	mux.HandleFunc("POST /api/markets/{id}/stakes", throttled(handlers.Markets.Stake))
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/redeem", throttled(handlers.Markets.Redeem))

	// Fee treasury.
	mux.HandleFunc("GET /api/treasury", handlers.Treasury.Status)
	mux.HandleFunc("POST /api/treasury/sweep", handlers.Treasury.Sweep)

	// Custody accounts.
	mux.HandleFunc("POST /api/accounts/{account}/deposit", throttled(handlers.Accounts.Deposit))
	mux.HandleFunc("GET /api/accounts/{account}/balance", handlers.Accounts.Balance)

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Handler returns the fully configured handler chain, primarily for tests
// that serve it without binding a port.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
