package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-sync
api:
  base_url: https://example.test/api/fin
  token: abc123
  timeout: 10s
database:
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
sync:
  earliest_date: "2010-01-01"
  fund_exchanges: [XSHG]
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-sync" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-sync")
	}
	if cfg.API.BaseURL != "https://example.test/api/fin" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://example.test/api/fin")
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("API.Timeout = %v, want %v", cfg.API.Timeout, 10*time.Second)
	}
	if cfg.Database.Timescale.Host != "localhost" {
		t.Errorf("Database.Timescale.Host = %q, want %q", cfg.Database.Timescale.Host, "localhost")
	}
	if len(cfg.Sync.FundExchanges) != 1 || cfg.Sync.FundExchanges[0] != "XSHG" {
		t.Errorf("Sync.FundExchanges = %v, want [XSHG]", cfg.Sync.FundExchanges)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_API_TOKEN", "tok-xyz")

	yaml := `
instance:
  id: test-sync
api:
  token: ${TEST_API_TOKEN}
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Timescale.Password != "secret123" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "secret123")
	}
	if cfg.API.Token != "tok-xyz" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "tok-xyz")
	}
}

func TestLoadEnvFile(t *testing.T) {
	const key = "QUOTESYNC_TEST_ENV_FILE_TOKEN"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := writeTempFile(t, ".env", key+"=from-dotenv\n")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Errorf("%s = %q, want %q", key, got, "from-dotenv")
	}

	t.Run("missing file ignored", func(t *testing.T) {
		if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
			t.Errorf("LoadEnvFile(missing) = %v, want nil", err)
		}
	})

	t.Run("existing variables win", func(t *testing.T) {
		t.Setenv(key, "from-shell")
		if err := LoadEnvFile(path); err != nil {
			t.Fatalf("LoadEnvFile failed: %v", err)
		}
		if got := os.Getenv(key); got != "from-shell" {
			t.Errorf("%s = %q, want %q", key, got, "from-shell")
		}
	})
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-sync
api:
  token: abc
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, "config.yaml", yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("API.BaseURL = %q, want default %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	// Three requests in total: the first attempt plus two retries.
	if cfg.API.MaxRetries != 2 {
		t.Errorf("API.MaxRetries = %d, want 2", cfg.API.MaxRetries)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Sync.EarliestDate != DefaultEarliestDate {
		t.Errorf("Sync.EarliestDate = %q, want default %q", cfg.Sync.EarliestDate, DefaultEarliestDate)
	}
	if cfg.Sync.ProgressEvery != DefaultProgressEvery {
		t.Errorf("Sync.ProgressEvery = %d, want default %d", cfg.Sync.ProgressEvery, DefaultProgressEvery)
	}
	if len(cfg.Sync.StockExchanges) != 3 {
		t.Errorf("Sync.StockExchanges = %v, want 3 defaults", cfg.Sync.StockExchanges)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultServerPort)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after defaults: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.API.Token = "" },
			wantErr: "api.token is required",
		},
		{
			name:    "missing timescale password",
			mutate:  func(c *Config) { c.Database.Timescale.Password = "" },
			wantErr: "database.timescale.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database.Timescale.MaxConns = 5
				c.Database.Timescale.MinConns = 10
			},
			wantErr: "database.timescale.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "fund on beijing exchange",
			mutate:  func(c *Config) { c.Sync.FundExchanges = []string{"BJSE"} },
			wantErr: `sync.fund_exchanges: exchange "BJSE" not supported for fund`,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Sync.Concurrency = 0 },
			wantErr: "sync.concurrency must be >= 1",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Schedule.Enabled = true
	cfg.Schedule.Cron = "not a cron"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid cron expression")
	}

	cfg.Schedule.Cron = "30 17 * * 1-5"
	cfg.Schedule.Categories = []string{"bond"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown schedule category")
	}
}

func validConfig() Config {
	cfg := Config{
		Instance: InstanceConfig{ID: "test"},
		API:      APIConfig{Token: "tok"},
		Database: DatabaseConfig{
			Timescale: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass"},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestExampleConfig(t *testing.T) {
	t.Setenv("TSANGHI_TOKEN", "tok")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "quotes")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadAndValidate("../../configs/quotesync.example.yaml")
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
	if cfg.Schedule.Cron != DefaultScheduleCron {
		t.Errorf("Schedule.Cron = %q, want %q", cfg.Schedule.Cron, DefaultScheduleCron)
	}
	if cfg.API.MaxRetries != DefaultMaxRetries {
		t.Errorf("API.MaxRetries = %d, want %d", cfg.API.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Sync.SuspiciousWeekdays != DefaultSuspiciousWeekdays {
		t.Errorf("Sync.SuspiciousWeekdays = %d, want %d", cfg.Sync.SuspiciousWeekdays, DefaultSuspiciousWeekdays)
	}
	if len(cfg.Sync.FundExchanges) != 2 {
		t.Errorf("Sync.FundExchanges = %v, want 2 codes", cfg.Sync.FundExchanges)
	}
}
