// Package model defines shared data types used across the quote sync service.
//
// All types mirror the database schema in internal/database/schema.sql.
//
// Conventions:
//   - Symbols: "{PREFIX}.{CODE}" where PREFIX is SH, SZ or BJ (e.g. "SH.510050")
//   - Prices: shopspring decimal.Decimal, never float64
//   - Trade dates: time.Time at UTC midnight of the exchange calendar date
//   - IDs: uuid.UUID for sync runs and tasks
package model
