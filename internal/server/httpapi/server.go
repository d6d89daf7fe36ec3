// Package httpapi exposes the auth flows as a JSON HTTP API built on gin.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/clockx"
	"github.com/dmitrijs2005/voiceauth/internal/logging"
	"github.com/dmitrijs2005/voiceauth/internal/server/models"
	"github.com/dmitrijs2005/voiceauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthAPI is the set of flows served over HTTP. *services.AuthService
// implements it.
type AuthAPI interface {
	Register(ctx context.Context, clientIP, email, password string) (*services.MessageResult, error)
	VerifyRegister(ctx context.Context, email, code string) (*services.TokenResult, error)
	Login(ctx context.Context, clientIP, email, password string) (*services.MessageResult, error)
	VerifyLogin(ctx context.Context, clientIP, email, code string) (*services.TokenResult, error)
	ResendCode(ctx context.Context, email, password string) (*services.MessageResult, error)
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	address string
	auth    AuthAPI
	logger  logging.Logger
	clock   clockx.Clock
	engine  *gin.Engine
}

// NewHTTPServer builds the router. Only requests arriving from
// trustedProxies may set the client IP through X-Forwarded-For.
func NewHTTPServer(address string, l logging.Logger, auth AuthAPI, clock clockx.Clock, trustedProxies []string) (*HTTPServer, error) {
	s := &HTTPServer{
		address: address,
		auth:    auth,
		logger:  l.With("module", "http_server"),
		clock:   clock,
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}
	engine.Use(gin.Recovery(), s.requestID(), s.accessLog())

	engine.GET("/health", s.health)

	api := engine.Group("/api/auth")
	api.POST("/register", s.register)
	api.POST("/verify-register", s.verifyRegister)
	api.POST("/login", s.login)
	api.POST("/verify-login", s.verifyLogin)
	api.POST("/resend-code", s.resendCode)
	api.GET("/me", s.bearerAuth(), s.me)

	s.engine = engine
	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
