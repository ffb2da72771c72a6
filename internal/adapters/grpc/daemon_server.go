package grpc

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// ServiceName is the health service name reporting the mediator's state
const ServiceName = "disruptor.mediator"

// DaemonServer serves the gRPC health protocol on a unix socket for the
// lifetime of a mediator. The mediator is reported SERVING while it
// accepts dispatches; shutdown flips it to NOT_SERVING, closes the
// mediator (draining queued messages) and stops the gRPC server.
type DaemonServer struct {
	mediator        *mediator.Mediator
	listener        net.Listener
	health          *health.Server
	logger          logging.Logger
	shutdownTimeout time.Duration

	// Shutdown coordination
	shutdownChan chan os.Signal
	done         chan struct{}
	once         sync.Once
	closeErr     error
}

// NewDaemonServer creates a daemon server listening on socketPath
func NewDaemonServer(
	med *mediator.Mediator,
	socketPath string,
	shutdownTimeout time.Duration,
	logger logging.Logger,
) (*DaemonServer, error) {
	// Remove existing socket file if present
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create unix socket listener: %w", err)
	}

	// Set socket permissions (owner only)
	if err := os.Chmod(socketPath, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}

	server := &DaemonServer{
		mediator:        med,
		listener:        listener,
		health:          health.NewServer(),
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
		shutdownChan:    make(chan os.Signal, 1),
		done:            make(chan struct{}),
	}

	signal.Notify(server.shutdownChan, os.Interrupt, syscall.SIGTERM)

	return server, nil
}

// Addr returns the socket address
func (s *DaemonServer) Addr() string {
	return s.listener.Addr().String()
}

// Start serves until a shutdown signal, Shutdown or ctx cancellation, then
// drains the mediator and stops gracefully
func (s *DaemonServer) Start(ctx context.Context) error {
	s.logger.Info("daemon server listening", "socket", s.Addr(), "mediator_id", s.mediator.ID())

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go s.handleShutdown(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(s.listener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		s.Shutdown()
		<-s.done
		return err
	case <-s.done:
		s.logger.Info("initiating graceful shutdown of gRPC server")
		grpcServer.GracefulStop()
		return s.closeErr
	}
}

// Shutdown triggers the same sequence as a termination signal
func (s *DaemonServer) Shutdown() {
	select {
	case s.shutdownChan <- syscall.SIGTERM:
	default:
	}
}

// handleShutdown manages graceful shutdown
func (s *DaemonServer) handleShutdown(ctx context.Context) {
	select {
	case sig := <-s.shutdownChan:
		s.logger.Info("shutdown signal received, stopping daemon", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled, stopping daemon")
	}

	s.once.Do(func() {
		signal.Stop(s.shutdownChan)
		s.health.Shutdown()

		closeCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.mediator.Close(closeCtx); err != nil {
			s.logger.Error("failed to close mediator", "error", err)
			s.closeErr = err
		}
		close(s.done)
	})
}
