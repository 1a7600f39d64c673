// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/donghouse/dongometer/internal/core/api"
	"github.com/donghouse/dongometer/internal/core/config"
)

// HTTPServer manages the API server lifecycle.
type HTTPServer struct {
	srv *http.Server
	cfg *config.Config
	log zerolog.Logger
}

// NewHTTPServer builds the gin engine with recovery and request logging
// middleware and registers the service routes.
func NewHTTPServer(cfg *config.Config, service *api.Service, log zerolog.Logger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestLogger(log))
	service.Register(router)

	return &HTTPServer{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.RequestTimeout,
			WriteTimeout: cfg.Server.RequestTimeout,
		},
		cfg: cfg,
		log: log,
	}, nil
}

// Start serves HTTP requests. Blocks until Shutdown is called or the
// listener fails; a clean shutdown returns nil.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.srv.Addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout, then
// forces the server closed.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.srv.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
