// Package database provides the PostgreSQL/TimescaleDB connection pool and
// schema migration.
//
// One database holds everything:
//   - instruments: the catalog, keyed by symbol, carrying the sync watermark
//   - daily_bars: time-series bars, a TimescaleDB hypertable when available
//   - sync_runs: batch bookkeeping
package database
