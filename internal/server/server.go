package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/server/handler"
	"github.com/alanyoungcy/sealedpool/internal/server/middleware"
	"github.com/alanyoungcy/sealedpool/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port             int
	CORSOrigins      []string
	APIKey           string // if empty, API key checks are disabled
	SignatureMaxSkew time.Duration
	RateLimit        int // requests per RateLimitWindow; 0 disables
	RateLimitWindow  time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Auction *handler.AuctionHandler
	Bids    *handler.BidHandler
	Events  *handler.EventsHandler
	Audit   *handler.AuditHandler
	Metrics http.Handler
}

// Deps are the shared services the middleware chain needs.
type Deps struct {
	Replay  domain.ReplayGuard
	Limiter domain.RateLimiter
	Observe middleware.Observer
}

// Server is the auction's HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain: CORS, logging, rate limit, API key, request signature.
func NewServer(cfg Config, handlers Handlers, deps Deps, wsHub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      Routes(cfg, handlers, deps, wsHub, logger),
			ReadTimeout:  orDefault(cfg.ReadTimeout, 15*time.Second),
			WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
			IdleTimeout:  orDefault(cfg.IdleTimeout, 60*time.Second),
		},
		logger: logger,
	}
}

// Routes builds the full handler tree.
func Routes(cfg Config, handlers Handlers, deps Deps, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// Agent operations.
	mux.HandleFunc("POST /api/auction/initialize", handlers.Auction.Initialize)
	mux.HandleFunc("POST /api/auction/settle", handlers.Auction.Settle)
	mux.HandleFunc("PUT /api/auction/minimum-bid", handlers.Auction.SetMinimumBid)
	mux.HandleFunc("PUT /api/auction/agent", handlers.Auction.SetAgent)

	// Bidder operations.
	mux.HandleFunc("POST /api/bids", handlers.Bids.Open)
	mux.HandleFunc("PATCH /api/bids", handlers.Bids.Adjust)
	mux.HandleFunc("POST /api/bids/withdraw", handlers.Bids.Withdraw)
	mux.HandleFunc("DELETE /api/bids", handlers.Bids.Close)

	// Reads.
	mux.HandleFunc("GET /api/auction", handlers.Auction.GetState)
	mux.HandleFunc("GET /api/invariants", handlers.Auction.Invariants)
	mux.HandleFunc("GET /api/bids", handlers.Bids.List)
	mux.HandleFunc("GET /api/bids/{bidder}", handlers.Bids.Get)
	if handlers.Events != nil {
		mux.HandleFunc("GET /api/events", handlers.Events.List)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	mwLogger := logger.With(slog.String("component", "http"))
	var h http.Handler = mux
	h = middleware.Signature(middleware.SignatureConfig{
		MaxSkew: orDefault(cfg.SignatureMaxSkew, 30*time.Second),
		Guard:   deps.Replay,
	}, mwLogger)(h)
	h = middleware.APIKey(cfg.APIKey, "/api/health", "/metrics")(h)
	if deps.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(deps.Limiter, cfg.RateLimit, orDefault(cfg.RateLimitWindow, time.Second), mwLogger)(h)
	}
	h = middleware.Logging(mwLogger, deps.Observe)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
