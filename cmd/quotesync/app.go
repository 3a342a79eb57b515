package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/quotesync/internal/api"
	"github.com/rickgao/quotesync/internal/config"
	"github.com/rickgao/quotesync/internal/database"
	"github.com/rickgao/quotesync/internal/logging"
	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
	"github.com/rickgao/quotesync/internal/syncer"
	"github.com/rickgao/quotesync/internal/version"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	store  *store.Postgres
	svc    *syncer.Service
}

// loadConfig reads the env file and config and builds the logger.
func loadConfig(flags *rootFlags) (*config.Config, *slog.Logger, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadAndValidate(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Instance.ID != "" {
		logger = logger.With("instance_id", cfg.Instance.ID)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// connect loads config and opens the database pool.
func connect(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, pool: pool, store: store.NewPostgres(pool, logger)}, nil
}

// newApp connects and wires the sync service.
func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	a, err := connect(ctx, flags)
	if err != nil {
		return nil, err
	}

	earliest, err := a.cfg.Sync.Earliest()
	if err != nil {
		a.Close()
		return nil, err
	}

	client := api.NewClient(
		a.cfg.API.BaseURL,
		a.cfg.API.Token,
		api.WithLogger(a.logger),
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithRetries(a.cfg.API.MaxRetries, a.cfg.API.RetryBackoff),
		api.WithRateLimit(a.cfg.API.RequestsPerMinute),
	)

	a.svc = syncer.NewService(syncer.ServiceConfig{
		Reconciler: syncer.Config{
			Earliest:           earliest,
			SuspiciousWeekdays: a.cfg.Sync.SuspiciousWeekdays,
			WriteTimeout:       a.cfg.Sync.WriteTimeout,
			Location:           model.ChinaTZ,
		},
		Runner: syncer.RunnerConfig{
			Concurrency:   a.cfg.Sync.Concurrency,
			ProgressEvery: a.cfg.Sync.ProgressEvery,
		},
		Exchanges: map[model.Category][]string{
			model.CategoryStock: a.cfg.Sync.ExchangesFor(model.CategoryStock),
			model.CategoryFund:  a.cfg.Sync.ExchangesFor(model.CategoryFund),
		},
	}, client, a.store, a.logger)

	a.logger.Info("quotesync ready",
		"version", version.Version,
		"commit", version.Commit,
		"api_url", a.cfg.API.BaseURL,
		"concurrency", a.cfg.Sync.Concurrency,
	)
	return a, nil
}

// Close releases the database pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
