package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/server/handler"
	"github.com/alanyoungcy/kalshibot/internal/server/middleware"
	"github.com/alanyoungcy/kalshibot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIToken    string // if empty, authentication is disabled
	RateLimit   int    // requests per minute per client; 0 disables
}

// Handlers aggregates all HTTP handlers the server registers. Conviction and
// Portfolio may be nil when the corresponding backend is not configured.
type Handlers struct {
	Health     *handler.HealthHandler
	Markets    *handler.MarketHandler
	Trades     *handler.TradeHandler
	Portfolio  *handler.PortfolioHandler
	Conviction *handler.ConvictionHandler
}

// Server is the headless HTTP + WebSocket API for the trade approval
// workflow.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. metricsHandler and
// limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, metricsHandler http.Handler, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and metrics bypass authentication.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Market index endpoints. The search route must register before the
	// ticker wildcard so it wins the match.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/search", handlers.Markets.SearchMarkets)
	mux.HandleFunc("GET /api/markets/{ticker}", handlers.Markets.GetMarket)

	// Trade workflow endpoints.
	mux.HandleFunc("POST /api/trades/propose", handlers.Trades.Propose)
	mux.HandleFunc("POST /api/trades/execute", handlers.Trades.Execute)
	mux.HandleFunc("GET /api/trades/executions", handlers.Trades.ListExecutions)
	mux.HandleFunc("GET /api/trades/{id}", handlers.Trades.GetProposal)
	mux.HandleFunc("DELETE /api/trades/{id}", handlers.Trades.Cancel)

	// Portfolio endpoints.
	if handlers.Portfolio != nil {
		mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.GetPortfolio)
		mux.HandleFunc("GET /api/balance", handlers.Portfolio.GetBalance)
	}

	// Conviction analysis endpoint.
	if handlers.Conviction != nil {
		mux.HandleFunc("POST /api/conviction", handlers.Conviction.Analyze)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first. Health and metrics stay
	// reachable without credentials.
	var h http.Handler = mux
	h = exemptPaths(middleware.Auth(cfg.APIToken), mux, "/api/health", "/metrics")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
	}
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

// exemptPaths applies mw to every request except those whose path matches one
// of the given paths, which go straight to the mux.
func exemptPaths(mw func(http.Handler) http.Handler, mux *http.ServeMux, paths ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]bool, len(paths))
	for _, p := range paths {
		exempt[p] = true
	}
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				mux.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
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
