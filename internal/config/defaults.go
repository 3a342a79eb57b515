package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL            = "https://www.tsanghi.com/api/fin"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 2
	DefaultRetryBackoff       = 1 * time.Second
	DefaultRequestsPerMinute  = 120
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultEarliestDate       = "2000-01-01"
	DefaultConcurrency        = 1
	DefaultProgressEvery      = 10
	DefaultSuspiciousWeekdays = 5
	DefaultWriteTimeout       = 2 * time.Minute
	DefaultServerPort         = 7777
	DefaultTaskRetention      = 24 * time.Hour
	DefaultScheduleCron       = "30 17 * * 1-5"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.RequestsPerMinute == 0 {
		c.API.RequestsPerMinute = DefaultRequestsPerMinute
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Sync defaults
	if c.Sync.EarliestDate == "" {
		c.Sync.EarliestDate = DefaultEarliestDate
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = DefaultConcurrency
	}
	if c.Sync.ProgressEvery == 0 {
		c.Sync.ProgressEvery = DefaultProgressEvery
	}
	if c.Sync.SuspiciousWeekdays == 0 {
		c.Sync.SuspiciousWeekdays = DefaultSuspiciousWeekdays
	}
	if c.Sync.WriteTimeout == 0 {
		c.Sync.WriteTimeout = DefaultWriteTimeout
	}
	if len(c.Sync.StockExchanges) == 0 {
		c.Sync.StockExchanges = []string{"XSHG", "XSHE", "BJSE"}
	}
	if len(c.Sync.FundExchanges) == 0 {
		c.Sync.FundExchanges = []string{"XSHG", "XSHE"}
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.TaskRetention == 0 {
		c.Server.TaskRetention = DefaultTaskRetention
	}

	// Schedule defaults
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultScheduleCron
	}
	if len(c.Schedule.Categories) == 0 {
		c.Schedule.Categories = []string{"stock", "fund"}
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
