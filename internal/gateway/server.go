package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietpay-gateway/internal/config"
)

// Server wraps the HTTP server lifecycle
type Server struct {
	logger *slog.Logger
	server *http.Server
}

// NewServer creates the gateway HTTP server around a configured router
func NewServer(logger *slog.Logger, cfg *config.Config, router *gin.Engine) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// Start begins listening for requests, blocking until the server stops
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server, draining in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
