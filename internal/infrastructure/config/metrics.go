package config

import "time"

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	// Enabled turns on the dispatch collectors and the HTTP endpoint
	Enabled bool `mapstructure:"enabled"`

	// Port of the HTTP endpoint
	Port int `mapstructure:"port" validate:"omitempty,min=1024,max=65535"`

	// Host to bind; localhost unless scraped from another machine
	Host string `mapstructure:"host"`

	// Path of the endpoint (default: /metrics)
	Path string `mapstructure:"path"`

	// StatsInterval is how often ring occupancy and worker gauges are refreshed
	StatsInterval time.Duration `mapstructure:"stats_interval" validate:"min=0"`
}
