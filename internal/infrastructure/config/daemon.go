package config

import "time"

// DaemonConfig holds daemon service configuration
type DaemonConfig struct {
	// Unix socket path for the gRPC health endpoint
	SocketPath string `mapstructure:"socket_path" validate:"required"`

	// PID file location
	PIDFile string `mapstructure:"pid_file" validate:"required"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}
