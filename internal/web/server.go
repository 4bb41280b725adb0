// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/quillboard/quillboard/internal/auth"
	"github.com/quillboard/quillboard/internal/config"
	"github.com/quillboard/quillboard/internal/forum"
	"github.com/quillboard/quillboard/internal/icon"
	"github.com/quillboard/quillboard/internal/observability"
)

// Server is the public HTTP server.
type Server struct {
	addr         string
	auth         *auth.Service
	users        auth.UserRepository
	messages     forum.MessageRepository
	icons        *icon.Store
	policy       *HeaderPolicy
	routes       *RouteClassifier
	cookieSecure bool
	logger       *slog.Logger
	metrics      *observability.Metrics

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// ServerOption configures optional server dependencies.
type ServerOption func(*Server)

// WithMetrics attaches the Prometheus metrics sink.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithServerLogger sets the structured logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewServer wires the middleware chain and routes. The header policy and
// route classifier are built here so a bad security configuration fails
// startup instead of weakening live traffic.
func NewServer(
	cfg config.Config,
	authService *auth.Service,
	users auth.UserRepository,
	messages forum.MessageRepository,
	icons *icon.Store,
	opts ...ServerOption,
) (*Server, error) {
	if authService == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("auth service is required")
	}
	if users == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("user repository is required")
	}
	if messages == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("message repository is required")
	}
	if icons == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("icon store is required")
	}

	policy, err := NewHeaderPolicy(cfg.Security)
	if err != nil {
		return nil, err
	}
	routes, err := NewRouteClassifier(cfg.Security.PublicRoutes)
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:         cfg.Server.ListenAddr,
		auth:         authService,
		users:        users,
		messages:     messages,
		icons:        icons,
		policy:       policy,
		routes:       routes,
		cookieSecure: cfg.Security.CookieSecure,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler assembles the middleware chain and routes. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Header injection comes first so rejections and 404s carry the set.
	r.Use(s.policy.Middleware)
	r.Use(s.recordMetrics)
	r.Use(s.sessionResolver)
	r.Use(s.requireUser)
	r.Use(s.csrfGuard)

	r.Get("/", s.handleIndex)
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Get("/session", s.handleSession)

	r.Get("/threads/{threadID}/messages", s.handleListMessages)
	r.Post("/threads/{threadID}/messages", s.handlePostMessage)

	r.Put("/preferences", s.handleUpdatePreferences)
	r.Post("/icons", s.handleUploadIcon)
	r.Get("/icons/{username}", s.handleFetchIcon)

	return r
}

// Start begins serving. It returns an error channel that receives any
// serve-loop error; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the bound listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
