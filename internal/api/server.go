// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/sleeporgive/internal/auth"
	"github.com/taibuivan/sleeporgive/internal/platform/config"
	"github.com/taibuivan/sleeporgive/internal/platform/constants"
	"github.com/taibuivan/sleeporgive/internal/platform/middleware"
	"github.com/taibuivan/sleeporgive/internal/session"
	"github.com/taibuivan/sleeporgive/internal/users"
	"github.com/taibuivan/sleeporgive/internal/verification"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler, 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler, 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth serves /login/authorize and /join/create-user.
	Auth *auth.Handler

	// Users serves the sign-up availability checks and /user/me.
	Users *users.Handler

	// Verification serves the code page and the sign-up mail request.
	Verification *verification.Handler

	// Session serves /logout.
	Session *session.Handler

	// AuthRateLimit guards the login, sign-up and code endpoints. Nil disables it.
	AuthRateLimit func(http.Handler) http.Handler

	// Now backs /gettime. Nil means time.Now.
	Now func() time.Time
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, verifier middleware.SessionVerifier, h Handlers) *Server {
	r := NewRouter(context, cfg, log, verifier, h)

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// NewRouter builds the routing tree without binding a listener.
func NewRouter(context context.Context, cfg *config.Config, log *slog.Logger, verifier middleware.SessionVerifier, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	guard := h.AuthRateLimit
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	now := h.Now
	if now == nil {
		now = time.Now
	}

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context, middleware.DefaultBurstLimit))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.Authenticate(verifier))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Application API
	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/gettime", getTime(now))

		api.Mount("/login", guard(h.Auth.Routes()))
		api.Route("/join", func(join chi.Router) {
			join.Use(guard)
			h.Users.RegisterJoin(join)
			h.Verification.RegisterJoin(join)
			h.Auth.RegisterJoin(join)
		})
		api.Mount("/email-verification-code", guard(h.Verification.Routes()))

		api.Mount("/user", h.Users.MeRoutes())
		api.Mount("/logout", h.Session.Routes())
	})

	return r
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
