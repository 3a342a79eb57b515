package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/quotesync/internal/model"
)

// Memory is an in-process Store with the same upsert and watermark rules as
// Postgres.
type Memory struct {
	mu          sync.Mutex
	instruments map[string]model.Instrument
	bars        map[string]map[time.Time]model.DailyBar
	runs        []model.SyncRun
	now         func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		instruments: make(map[string]model.Instrument),
		bars:        make(map[string]map[time.Time]model.DailyBar),
		now:         time.Now,
	}
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// PutInstrument stores inst as-is, including its watermark.
func (m *Memory) PutInstrument(inst model.Instrument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments[inst.Symbol] = inst
}

// Bars returns the stored bars for symbol in date order.
func (m *Memory) Bars(symbol string) []model.DailyBar {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.DailyBar, 0, len(m.bars[symbol]))
	for _, b := range m.bars[symbol] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out
}

// GetInstrument returns one instrument or ErrNotFound.
func (m *Memory) GetInstrument(ctx context.Context, symbol string) (model.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instruments[symbol]
	if !ok {
		return model.Instrument{}, fmt.Errorf("instrument %s: %w", symbol, ErrNotFound)
	}
	return inst, nil
}

// ListInstruments returns matching instruments ordered by symbol.
func (m *Memory) ListInstruments(ctx context.Context, f Filter) ([]model.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Instrument
	for _, inst := range m.instruments {
		if f.match(inst) {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// UpsertInstruments inserts or refreshes catalog rows.
func (m *Memory) UpsertInstruments(ctx context.Context, insts []model.Instrument) (UpsertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats UpsertStats
	now := m.now()
	for _, in := range insts {
		cur, ok := m.instruments[in.Symbol]
		if !ok {
			in.LastSyncedOn = nil
			in.FirstSeenAt = now
			in.UpdatedAt = now
			m.instruments[in.Symbol] = in
			stats.Inserted++
			continue
		}

		next := cur
		next.Code = in.Code
		next.Name = in.Name
		next.Exchange = in.Exchange
		next.Active = in.Active
		if !cur.HasHistory() {
			next.Category = in.Category
		}
		if in.ListedOn != nil {
			next.ListedOn = in.ListedOn
		}
		if in.DelistedOn != nil {
			next.DelistedOn = in.DelistedOn
		}

		if instrumentChanged(cur, next) {
			next.UpdatedAt = now
			m.instruments[in.Symbol] = next
			stats.Updated++
		}
	}
	return stats, nil
}

func instrumentChanged(a, b model.Instrument) bool {
	return a.Code != b.Code || a.Name != b.Name || a.Exchange != b.Exchange ||
		a.Active != b.Active || a.Category != b.Category ||
		!sameDate(a.ListedOn, b.ListedOn) || !sameDate(a.DelistedOn, b.DelistedOn)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// DeactivateMissing flips active off for instruments absent from keep.
func (m *Memory) DeactivateMissing(ctx context.Context, cat model.Category, exchange string, keep []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make(map[string]bool, len(keep))
	for _, s := range keep {
		kept[s] = true
	}

	n := 0
	for sym, inst := range m.instruments {
		if inst.Category != cat || inst.Exchange != exchange || !inst.Active || kept[sym] {
			continue
		}
		inst.Active = false
		inst.UpdatedAt = m.now()
		m.instruments[sym] = inst
		n++
	}
	return n, nil
}

// LastClose returns the close of the latest stored bar before the given date.
func (m *Memory) LastClose(ctx context.Context, symbol string, before time.Time) (decimal.NullDecimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		best  time.Time
		close decimal.NullDecimal
	)
	for d, b := range m.bars[symbol] {
		if d.Before(before) && (!close.Valid || d.After(best)) {
			best = d
			close = decimal.NewNullDecimal(b.Close)
		}
	}
	return close, nil
}

// WriteBars upserts bars and advances the watermark atomically.
func (m *Memory) WriteBars(ctx context.Context, symbol string, bars []model.DailyBar, watermark time.Time) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instruments[symbol]
	if !ok {
		return WriteResult{}, fmt.Errorf("advance watermark %s: %w", symbol, ErrNotFound)
	}

	var res WriteResult
	stored := m.bars[symbol]
	if stored == nil {
		stored = make(map[time.Time]model.DailyBar)
		m.bars[symbol] = stored
	}

	for _, b := range bars {
		cur, exists := stored[b.TradeDate]
		if !exists {
			stored[b.TradeDate] = b
			res.Inserted++
			continue
		}
		if next, changed := backfill(cur, b); changed {
			stored[b.TradeDate] = next
			res.Backfilled++
		}
	}

	if inst.LastSyncedOn == nil || watermark.After(*inst.LastSyncedOn) {
		w := watermark
		inst.LastSyncedOn = &w
	}
	inst.UpdatedAt = m.now()
	m.instruments[symbol] = inst
	res.Watermark = *inst.LastSyncedOn

	return res, nil
}

// backfill fills fields of cur that are missing but present in in.
func backfill(cur, in model.DailyBar) (model.DailyBar, bool) {
	changed := false
	if !cur.Change.Valid && in.Change.Valid {
		cur.Change = in.Change
		changed = true
	}
	if !cur.ChangePct.Valid && in.ChangePct.Valid {
		cur.ChangePct = in.ChangePct
		changed = true
	}
	if !cur.PremiumRate.Valid && in.PremiumRate.Valid {
		cur.PremiumRate = in.PremiumRate
		changed = true
	}
	if cur.TurnoverEstimated && !in.TurnoverEstimated {
		cur.Turnover = in.Turnover
		cur.TurnoverEstimated = false
		changed = true
	}
	return cur, changed
}

// CreateRun records a new run.
func (m *Memory) CreateRun(ctx context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// UpdateRun replaces the stored run with the same ID.
func (m *Memory) UpdateRun(ctx context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	return fmt.Errorf("update run %s: %w", run.ID, ErrNotFound)
}

// ListRuns returns the most recent runs first.
func (m *Memory) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.SyncRun, len(m.runs))
	copy(out, m.runs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
