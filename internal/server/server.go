package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
	"github.com/Engineer-Box/gmdemo/internal/server/handler"
	"github.com/Engineer-Box/gmdemo/internal/server/middleware"
	"github.com/Engineer-Box/gmdemo/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	JWTSecret    []byte
	AdminKeyHash string // bcrypt hash; empty disables the admin routes
	RateLimit    int
	RateWindow   time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Battles       *handler.BattleHandler
	Rankings      *handler.RankingHandler
	Notifications *handler.NotificationHandler
	Admin         *handler.AdminHandler
}

// Deps are the collaborators the middleware chain needs.
type Deps struct {
	Profiles middleware.ProfileResolver
	Limiter  domain.RateLimiter
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered.
func NewServer(cfg Config, handlers Handlers, deps Deps, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Routes(cfg, handlers, deps, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the routed handler with its middleware chain.
func Routes(cfg Config, handlers Handlers, deps Deps, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	authed := chain(
		middleware.Caller(cfg.JWTSecret, deps.Profiles, logger),
		middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger),
	)
	admin := chain(middleware.AdminKey(cfg.AdminKeyHash))

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	b := handlers.Battles
	mux.HandleFunc("GET /api/battles/{battleId}", b.GetBattle)
	mux.HandleFunc("GET /api/receipts/{battleId}", b.GetReceipt)
	mux.Handle("POST /api/battles/create/{captainTeamProfileId}", authed(b.CreateBattle))
	mux.Handle("POST /api/battles/join/{battleId}", authed(b.JoinBattle))
	mux.Handle("GET /api/battles/cancel/{battleId}", authed(b.CancelBattle))
	mux.Handle("GET /api/battles/withdraw-cancellation-request/{battleId}", authed(b.WithdrawCancellationRequest))
	mux.Handle("GET /api/battles/decline-invitation/{battleId}", authed(b.DeclineInvitation))
	mux.Handle("POST /api/battles/report-score/{battleId}", authed(b.ReportScore))
	mux.Handle("GET /api/matches/open-dispute/{id}", authed(b.OpenDispute))

	mux.HandleFunc("GET /api/rankings/{kind}/{subjectId}", handlers.Rankings.Standing)
	mux.Handle("GET /api/notifications", authed(handlers.Notifications.List))

	mux.Handle("POST /api/admin/disputes/{id}/resolve", admin(handlers.Admin.ResolveDispute))
	mux.Handle("GET /api/admin/fees", admin(handlers.Admin.Fees))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// chain applies middleware so the first one listed runs first.
func chain(mw ...func(http.Handler) http.Handler) func(http.HandlerFunc) http.Handler {
	return func(fn http.HandlerFunc) http.Handler {
		var h http.Handler = fn
		for i := len(mw) - 1; i >= 0; i-- {
			h = mw[i](h)
		}
		return h
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
