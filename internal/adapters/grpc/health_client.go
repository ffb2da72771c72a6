package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthClient queries a daemon's health service over its unix socket
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewHealthClient creates a client for the daemon at socketPath
// (e.g., "/tmp/mediator-daemon.sock")
func NewHealthClient(socketPath string) (*HealthClient, error) {
	conn, err := grpc.NewClient(
		"unix:"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon socket: %w", err)
	}

	return &HealthClient{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
	}, nil
}

// Check returns the serving status of service ("" for the whole daemon)
func (c *HealthClient) Check(ctx context.Context, service string) (*healthpb.HealthCheckResponse, error) {
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return resp, nil
}

// Close closes the gRPC connection
func (c *HealthClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
