package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rickgao/quotesync/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.Token == "" {
		return errors.New("api.token is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RequestsPerMinute < 0 {
		return errors.New("api.requests_per_minute must be >= 0")
	}

	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if _, err := c.Sync.Earliest(); err != nil {
		return fmt.Errorf("sync.earliest_date: %w", err)
	}
	if c.Sync.Concurrency < 1 {
		return errors.New("sync.concurrency must be >= 1")
	}
	if c.Sync.ProgressEvery < 1 {
		return errors.New("sync.progress_every must be >= 1")
	}
	if err := validateExchanges("sync.stock_exchanges", model.CategoryStock, c.Sync.StockExchanges); err != nil {
		return err
	}
	if err := validateExchanges("sync.fund_exchanges", model.CategoryFund, c.Sync.FundExchanges); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
		for _, name := range c.Schedule.Categories {
			if _, err := model.ParseCategory(name); err != nil {
				return fmt.Errorf("schedule.categories: %w", err)
			}
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// Earliest returns the parsed earliest sync date.
func (s SyncConfig) Earliest() (time.Time, error) {
	return model.ParseDate(s.EarliestDate)
}

// ExchangesFor returns the configured exchange codes for a category.
func (s SyncConfig) ExchangesFor(cat model.Category) []string {
	switch cat {
	case model.CategoryStock:
		return s.StockExchanges
	case model.CategoryFund:
		return s.FundExchanges
	}
	return nil
}

func validateExchanges(field string, cat model.Category, codes []string) error {
	for _, code := range codes {
		if !cat.SupportsExchange(code) {
			return fmt.Errorf("%s: exchange %q not supported for %s", field, code, cat)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
