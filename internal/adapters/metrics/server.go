package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/config"
)

// Server exposes the global registry over HTTP for Prometheus scraping
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer creates a metrics server for cfg. InitRegistry must have been called.
func NewServer(cfg config.MetricsConfig, logger logging.Logger) (*Server, error) {
	if Registry == nil {
		return nil, errors.New("metrics registry is not initialized")
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))

	return &Server{
		httpServer: &http.Server{
			Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler: mux,
		},
		logger: logger,
	}, nil
}

// Start listens in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("metrics server listening", "address", listener.Addr().String())
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
