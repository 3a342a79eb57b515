package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/quotesync/internal/model"
)

// ErrNotFound is returned when an instrument or run does not exist.
var ErrNotFound = errors.New("not found")

// Filter selects catalog rows. Zero values match everything.
type Filter struct {
	Category   model.Category
	Exchanges  []string
	ActiveOnly bool
}

func (f Filter) match(inst model.Instrument) bool {
	if f.Category.Valid() && inst.Category != f.Category {
		return false
	}
	if f.ActiveOnly && !inst.Active {
		return false
	}
	if len(f.Exchanges) == 0 {
		return true
	}
	for _, e := range f.Exchanges {
		if e == inst.Exchange {
			return true
		}
	}
	return false
}

// UpsertStats counts catalog rows touched by UpsertInstruments.
type UpsertStats struct {
	Inserted int
	Updated  int // Existing rows whose attributes changed
}

// WriteResult describes one WriteBars transaction.
type WriteResult struct {
	Inserted   int       // New bar rows
	Backfilled int       // Existing rows that gained a missing field
	Watermark  time.Time // Stored watermark after the write
}

// Written returns the number of rows inserted or backfilled.
func (r WriteResult) Written() int {
	return r.Inserted + r.Backfilled
}

// Catalog is the instrument repository.
type Catalog interface {
	GetInstrument(ctx context.Context, symbol string) (model.Instrument, error)
	// ListInstruments returns matching instruments ordered by symbol.
	ListInstruments(ctx context.Context, f Filter) ([]model.Instrument, error)
	// UpsertInstruments inserts new instruments and refreshes existing ones.
	// The watermark is never touched and the category of an instrument with
	// history is kept.
	UpsertInstruments(ctx context.Context, insts []model.Instrument) (UpsertStats, error)
	// DeactivateMissing deactivates active instruments of (cat, exchange) whose
	// symbol is not in keep.
	DeactivateMissing(ctx context.Context, cat model.Category, exchange string, keep []string) (int, error)
}

// BarStore holds daily bars.
type BarStore interface {
	// LastClose returns the close of the latest bar before date, or null.
	LastClose(ctx context.Context, symbol string, before time.Time) (decimal.NullDecimal, error)
	// WriteBars upserts bars and advances the instrument's watermark to at
	// least watermark, atomically. Nothing persists if any step fails.
	WriteBars(ctx context.Context, symbol string, bars []model.DailyBar, watermark time.Time) (WriteResult, error)
}

// RunStore records SyncRun bookkeeping.
type RunStore interface {
	CreateRun(ctx context.Context, run model.SyncRun) error
	UpdateRun(ctx context.Context, run model.SyncRun) error
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
}

// Store is the full persistence contract.
type Store interface {
	Catalog
	BarStore
	RunStore
	Ping(ctx context.Context) error
}
