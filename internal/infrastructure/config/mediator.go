package config

import "time"

// MediatorConfig holds dispatch engine configuration
type MediatorConfig struct {
	// Number of execution groups, each served by one dedicated worker thread
	ExecutionGroups int `mapstructure:"execution_groups" validate:"min=1"`

	// Ring buffer capacity (number of pre-allocated envelope slots)
	BufferSize int `mapstructure:"buffer_size" validate:"min=2,pow2"`

	// Upper bound on a blocking dispatch
	BlockingTimeout time.Duration `mapstructure:"blocking_timeout" validate:"required"`

	// Handlers running longer than this are logged as slow (0 disables)
	SlowHandlerThreshold time.Duration `mapstructure:"slow_handler_threshold" validate:"min=0"`

	// Re-enumerate handlers when a lookup misses
	RescanOnMiss bool `mapstructure:"rescan_on_miss"`
}
