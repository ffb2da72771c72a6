package config

import "time"

// DatabaseConfig holds the failure journal's database settings
type DatabaseConfig struct {
	// Type selects the gorm driver: "postgres" or "sqlite"
	Type string `mapstructure:"type" validate:"required,oneof=postgres sqlite"`

	// URL is a full postgres connection string and wins over the discrete fields.
	// Also read from DATABASE_URL.
	URL string `mapstructure:"url"`

	// Postgres fields, used when URL is empty
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	// Path of the sqlite file; ":memory:" keeps the journal in process
	Path string `mapstructure:"path"`

	Pool PoolConfig `mapstructure:"pool"`

	Journal JournalConfig `mapstructure:"journal"`
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open" validate:"min=1"`
	MaxIdle     int           `mapstructure:"max_idle" validate:"min=1"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// JournalConfig tunes the handler failure journal
type JournalConfig struct {
	// DedupWindow folds identical failures seen within it into one row
	DedupWindow time.Duration `mapstructure:"dedup_window" validate:"min=0"`

	// Retention purges rows older than it when the daemon starts. Zero keeps everything.
	Retention time.Duration `mapstructure:"retention" validate:"min=0"`
}
