package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/quotesync/internal/api"
	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a clock at 10:00 Shanghai time on the given date.
func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time {
		return time.Date(y, m, d, 10, 0, 0, 0, model.ChinaTZ)
	}
}

func testConfig(now func() time.Time) Config {
	cfg := DefaultConfig()
	cfg.Now = now
	cfg.Earliest = model.Date(2024, 1, 1)
	return cfg
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := model.Date(y, m, d)
	return &t
}

func fundInstrument(symbol string, watermark *time.Time) model.Instrument {
	ex, code, _ := model.ParseSymbol(symbol)
	return model.Instrument{
		Symbol:       symbol,
		Code:         code,
		Name:         symbol,
		Exchange:     ex.Code,
		Category:     model.CategoryFund,
		Active:       true,
		LastSyncedOn: watermark,
	}
}

func barItem(date, open, high, low, close string) api.BarItem {
	return api.BarItem{
		Date:   date,
		Open:   api.Number(open),
		High:   api.Number(high),
		Low:    api.Number(low),
		Close:  api.Number(close),
		Volume: api.Number("100000"),
	}
}

func fiveBars() []api.BarItem {
	return []api.BarItem{
		barItem("2024-01-11", "2.40", "2.45", "2.38", "2.42"),
		barItem("2024-01-12", "2.42", "2.47", "2.40", "2.46"),
		barItem("2024-01-13", "2.46", "2.48", "2.44", "2.45"),
		barItem("2024-01-14", "2.45", "2.50", "2.43", "2.49"),
		barItem("2024-01-15", "2.49", "2.52", "2.47", "2.51"),
	}
}

// fakeFetcher serves canned bars per ticker and records calls.
type fakeFetcher struct {
	mu    sync.Mutex
	bars  map[string][]api.BarItem
	errs  map[string]error
	calls []api.BarsRequest
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bars: map[string][]api.BarItem{}, errs: map[string]error{}}
}

func (f *fakeFetcher) FetchDailyBars(ctx context.Context, req api.BarsRequest) (*api.BarsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.Ticker]; err != nil {
		return nil, err
	}
	return &api.BarsResult{Bars: f.bars[req.Ticker]}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// failingWrites rejects every WriteBars call.
type failingWrites struct {
	*store.Memory
}

func (f failingWrites) WriteBars(ctx context.Context, symbol string, bars []model.DailyBar, watermark time.Time) (store.WriteResult, error) {
	return store.WriteResult{}, errors.New("connection reset by peer")
}
