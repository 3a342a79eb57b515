package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the embedded DDL.
func Schema() string {
	return schemaSQL
}

// Migrate applies the schema idempotently. When the timescaledb extension is
// installed, daily_bars is promoted to a hypertable. Reports whether it is one.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (hypertable bool, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return false, fmt.Errorf("apply schema: %w", err)
	}

	var hasTimescale bool
	if err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')`,
	).Scan(&hasTimescale); err != nil {
		return false, fmt.Errorf("check timescaledb: %w", err)
	}
	if !hasTimescale {
		logger.Info("timescaledb extension not installed, daily_bars stays a plain table")
		return false, nil
	}

	if _, err := pool.Exec(ctx,
		`SELECT create_hypertable('daily_bars', 'trade_date', if_not_exists => TRUE, migrate_data => TRUE)`,
	); err != nil {
		return false, fmt.Errorf("create hypertable: %w", err)
	}

	logger.Info("schema applied", "hypertable", true)
	return true, nil
}
