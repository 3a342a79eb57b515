package config

import "time"

// Config is the root configuration.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this deployment.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds market-data API settings.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"` // Retries after the first attempt
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 disables pacing
}

// DatabaseConfig holds the TimescaleDB connection for catalog and bars.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SyncConfig tunes the reconciler and batch runner.
type SyncConfig struct {
	EarliestDate       string        `yaml:"earliest_date"` // First date fetched for never-synced instruments
	Concurrency        int           `yaml:"concurrency"`   // 1 = sequential
	ProgressEvery      int           `yaml:"progress_every"`
	SuspiciousWeekdays int           `yaml:"suspicious_weekdays"` // Empty ranges spanning this many weekdays are flagged; holiday weeks count
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	StockExchanges     []string      `yaml:"stock_exchanges"`
	FundExchanges      []string      `yaml:"fund_exchanges"`
}

// ServerConfig holds HTTP trigger settings.
type ServerConfig struct {
	Port          int           `yaml:"port"`
	TaskRetention time.Duration `yaml:"task_retention"`
}

// ScheduleConfig holds the daily sync schedule.
type ScheduleConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Cron       string   `yaml:"cron"`
	Categories []string `yaml:"categories"`
}

// LoggingConfig selects log level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}
