package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/config"
)

func TestNewServer_RequiresRegistry(t *testing.T) {
	Registry = nil

	_, err := NewServer(config.MetricsConfig{Host: "localhost", Port: 9090, Path: "/metrics"}, logging.NewNopLogger())

	assert.Error(t, err)
}

func TestNewServer_BindsConfiguredAddress(t *testing.T) {
	InitRegistry()
	t.Cleanup(func() { Registry = nil })

	s, err := NewServer(config.MetricsConfig{Host: "127.0.0.1", Port: 9191, Path: "/metrics"}, logging.NewNopLogger())

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9191", s.httpServer.Addr)
}
