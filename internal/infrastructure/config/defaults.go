package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Mediator defaults
	if cfg.Mediator.ExecutionGroups == 0 {
		cfg.Mediator.ExecutionGroups = 1
	}
	if cfg.Mediator.BufferSize == 0 {
		cfg.Mediator.BufferSize = 1024
	}
	if cfg.Mediator.BlockingTimeout == 0 {
		cfg.Mediator.BlockingTimeout = time.Minute
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "mediator.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "mediator"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "mediator"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}
	if cfg.Database.Journal.DedupWindow == 0 {
		cfg.Database.Journal.DedupWindow = time.Minute
	}

	// Daemon defaults
	if cfg.Daemon.SocketPath == "" {
		cfg.Daemon.SocketPath = "/tmp/mediator-daemon.sock"
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = "/tmp/mediator-daemon.pid"
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = 30 * time.Second
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Metrics defaults
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = "localhost"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.StatsInterval == 0 {
		cfg.Metrics.StatsInterval = 10 * time.Second
	}

	// Demo defaults
	if cfg.Demo.Interval == 0 {
		cfg.Demo.Interval = 5 * time.Second
	}
	if cfg.Demo.Rate == 0 {
		cfg.Demo.Rate = 1
	}
}
