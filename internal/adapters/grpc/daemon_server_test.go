package grpc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	daemongrpc "github.com/cosminstn/disruptor-mediator/internal/adapters/grpc"
	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
	"github.com/cosminstn/disruptor-mediator/internal/application/samples"
	"github.com/cosminstn/disruptor-mediator/test/helpers"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// unix socket paths are limited to ~100 bytes, t.TempDir can exceed that
	dir, err := os.MkdirTemp("", "med")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

func TestDaemonServer_ServesHealthAndDrainsOnShutdown(t *testing.T) {
	// Arrange
	logger := helpers.NewRecordingLogger()
	m, err := mediator.New(mediator.NewRegistry(mediator.StaticBindings(samples.Bindings(logger)...)))
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))

	path := socketPath(t)
	server, err := daemongrpc.NewDaemonServer(m, path, 5*time.Second, logger)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	done := make(chan error, 1)
	go func() { done <- server.Start(context.Background()) }()

	client, err := daemongrpc.NewHealthClient(path)
	require.NoError(t, err)
	defer client.Close()

	// Act + Assert: serving
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Eventually(t, func() bool {
		resp, err := client.Check(ctx, daemongrpc.ServiceName)
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)

	// Act + Assert: shutdown closes the mediator
	server.Shutdown()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = mediator.DispatchBlocking[int](context.Background(), m, samples.FindNextNumber{Number: 1})
	assert.ErrorIs(t, err, mediator.ErrClosed)
}

func TestDaemonServer_StopsWhenContextIsCancelled(t *testing.T) {
	m, err := mediator.New(mediator.NewRegistry(nil))
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))

	server, err := daemongrpc.NewDaemonServer(m, socketPath(t), time.Second, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
