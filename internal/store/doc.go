// Package store persists the instrument catalog, daily bars and sync runs.
//
// Postgres is the production implementation (TimescaleDB hypertable for
// daily_bars). Memory implements the same contract for tests and dry runs.
//
// Write guarantees:
//   - WriteBars stores bars and advances the watermark in one transaction
//   - Bars are upserted on (trade_date, symbol); an existing row only changes
//     to fill a previously-missing derived field
//   - The watermark never moves backwards
package store
