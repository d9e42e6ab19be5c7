// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

// Package httpapi exposes the authentication and session API over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sitedesk/sitedesk/internal/auth"
	"github.com/sitedesk/sitedesk/internal/observability"
)

// AuthService is the authentication surface consumed by the HTTP layer.
type AuthService interface {
	Register(ctx context.Context, email, password, name, userAgent, ipAddress string) (*auth.Principal, *auth.Session, string, error)
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*auth.Principal, *auth.Session, string, error)
	Logout(ctx context.Context, token string) error
	ResolveSession(ctx context.Context, token string) (*auth.Principal, *auth.Session, error)
	ChangeRole(ctx context.Context, id ulid.ULID, role auth.Role) error
}

// ResetService is the password reset surface consumed by the HTTP layer.
type ResetService interface {
	RequestReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*auth.Principal, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	// Addr is the listen address in "host:port" format.
	Addr string
	// Debug enables gin debug mode and reset token exposure in responses.
	// Never enable in production.
	Debug bool
	// SecureCookies marks session cookies as Secure. Disable only for
	// local plain-HTTP development.
	SecureCookies bool
}

// Server serves the SiteDesk authentication API.
type Server struct {
	cfg        Config
	auth       AuthService
	resets     ResetService
	logger     *slog.Logger
	metrics    *observability.Metrics
	router     *gin.Engine
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a new API server. The metrics parameter may be nil.
func NewServer(cfg Config, authSvc AuthService, resetSvc ResetService, logger *slog.Logger, metrics *observability.Metrics) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if resetSvc == nil {
		return nil, oops.Errorf("reset service is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		auth:    authSvc,
		resets:  resetSvc,
		logger:  logger,
		metrics: metrics,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.authenticate())

	v1 := router.Group("/v1/auth")
	{
		v1.POST("/register", s.handleRegister)
		v1.POST("/login", s.handleLogin)
		v1.POST("/logout", s.handleLogout)
		v1.GET("/me", s.requireAuthenticated(), s.handleMe)
		v1.POST("/password-reset/request", s.handleResetRequest)
		v1.POST("/password-reset/confirm", s.handleResetConfirm)
	}

	admin := router.Group("/v1/admin")
	admin.Use(s.requireAuthenticated(), s.requireRole(auth.RoleAdmin))
	{
		admin.PATCH("/principals/:id/role", s.handleChangeRole)
	}

	return router
}

// Handler returns the underlying HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving the API. It returns an error channel that receives
// any serve error; the channel is closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
