package config

import "time"

// DemoConfig controls the sample job run by the daemon
type DemoConfig struct {
	// Run the sample job
	Enabled bool `mapstructure:"enabled"`

	// Interval of the liveness log
	Interval time.Duration `mapstructure:"interval" validate:"required"`

	// Sample dispatches per second
	Rate float64 `mapstructure:"rate" validate:"gt=0"`
}
