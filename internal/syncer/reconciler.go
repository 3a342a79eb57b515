package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/quotesync/internal/api"
	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/normalize"
	"github.com/rickgao/quotesync/internal/store"
)

// BarFetcher fetches daily bars. *api.Client implements it.
type BarFetcher interface {
	FetchDailyBars(ctx context.Context, req api.BarsRequest) (*api.BarsResult, error)
}

// Config holds reconciler settings.
type Config struct {
	Earliest           time.Time        // First date for never-synced instruments
	SuspiciousWeekdays int              // Empty ranges with at least this many weekdays are flagged
	WriteTimeout       time.Duration    // Bound on one instrument's write transaction
	Location           *time.Location   // Exchange calendar zone for "today"
	Now                func() time.Time // Clock; nil = time.Now
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Earliest:           model.Date(2000, 1, 1),
		SuspiciousWeekdays: 5,
		WriteTimeout:       2 * time.Minute,
		Location:           model.ChinaTZ,
	}
}

// Reconciler brings one instrument's stored history up to date.
type Reconciler struct {
	cfg     Config
	fetcher BarFetcher
	bars    store.BarStore
	logger  *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg Config, fetcher BarFetcher, bars store.BarStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = model.ChinaTZ
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Reconciler{cfg: cfg, fetcher: fetcher, bars: bars, logger: logger}
}

// Today returns the current exchange calendar date.
func (r *Reconciler) Today() time.Time {
	return model.DateOf(r.cfg.Now(), r.cfg.Location)
}

// Range returns the candidate range for inst: the day after the watermark
// (or the earliest date, or the listing date if later) through today.
// ok is false when the range is empty.
func (r *Reconciler) Range(inst model.Instrument) (start, end time.Time, ok bool) {
	end = r.Today()
	if inst.LastSyncedOn != nil {
		start = inst.LastSyncedOn.AddDate(0, 0, 1)
	} else {
		start = r.cfg.Earliest
		if inst.ListedOn != nil && inst.ListedOn.After(start) {
			start = *inst.ListedOn
		}
	}
	return start, end, !start.After(end)
}

// Sync reconciles one instrument. Per-instrument failures are reported in
// the Outcome with a nil error; a non-nil error is a *FatalError that should
// abort the batch.
func (r *Reconciler) Sync(ctx context.Context, inst model.Instrument) (Outcome, error) {
	out := Outcome{Symbol: inst.Symbol, Category: inst.Category, Watermark: inst.LastSyncedOn}
	log := r.logger.With("symbol", inst.Symbol, "category", inst.Category.String())

	// PENDING
	ex, code, err := model.ParseSymbol(inst.Symbol)
	if err != nil {
		return r.fail(log, out, err), nil
	}
	if !inst.Category.Valid() {
		err := fmt.Errorf("%w: instrument %s has no category", api.ErrUnsupported, inst.Symbol)
		out.Status, out.Err = StatusFailed, err
		return out, &FatalError{Symbol: inst.Symbol, Err: err}
	}

	start, end, ok := r.Range(inst)
	if !ok {
		out.Status, out.Empty = StatusUpToDate, EmptyNoRange
		log.Debug("instrument up to date", "start", model.FormatDate(start), "today", model.FormatDate(end))
		return out, nil
	}
	out.RangeStart, out.RangeEnd = &start, &end

	// FETCHING
	log.Debug("fetching bars", "start", model.FormatDate(start), "end", model.FormatDate(end))
	res, err := r.fetcher.FetchDailyBars(ctx, api.BarsRequest{
		Category: inst.Category,
		Exchange: ex.Code,
		Ticker:   code,
		Start:    start,
		End:      end,
	})
	if err != nil {
		if api.Classify(err) == api.KindFatal {
			out.Status, out.Err = StatusFailed, err
			log.Error("fatal fetch error", "error", err)
			return out, &FatalError{Symbol: inst.Symbol, Err: err}
		}
		return r.fail(log, out, err), nil
	}

	prevClose, err := r.bars.LastClose(ctx, inst.Symbol, start)
	if err != nil {
		return r.fail(log, out, err), nil
	}

	raws := make([]model.RawBar, len(res.Bars))
	for i, b := range res.Bars {
		raws[i] = b.ToRaw()
	}
	batch := normalize.NormalizeBatch(inst.Symbol, inst.Category, raws, prevClose, start, end)
	for _, rej := range batch.Rejected {
		log.Warn("discarding invalid bar", "date", rej.Date, "reason", string(rej.Reason), "detail", rej.Detail)
	}
	out.Rejected = len(batch.Rejected)

	maxDate, ok := batch.MaxDate()
	if !ok {
		out.Status = StatusUpToDate
		out.Empty = r.classifyEmpty(res, start, end)
		r.logEmpty(log, out)
		return out, nil
	}

	// Write outlives caller cancellation so bars and watermark land together.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.WriteTimeout)
	defer cancel()

	wr, err := r.bars.WriteBars(writeCtx, inst.Symbol, batch.Bars, maxDate)
	if err != nil {
		return r.fail(log, out, fmt.Errorf("write bars: %w", err)), nil
	}

	out.Status = StatusCompleted
	out.RowsWritten = wr.Written()
	wm := wr.Watermark
	out.Watermark = &wm

	log.Info("instrument synced",
		"rows", out.RowsWritten,
		"rejected", out.Rejected,
		"watermark", model.FormatDate(wm),
	)
	return out, nil
}

func (r *Reconciler) classifyEmpty(res *api.BarsResult, start, end time.Time) EmptyReason {
	switch {
	case res.Malformed:
		return EmptyMalformed
	case len(res.Bars) > 0:
		return EmptyAllRejected
	case model.Weekdays(start, end) >= r.cfg.SuspiciousWeekdays:
		return EmptyResponse
	}
	return EmptyNoTradingDays
}

func (r *Reconciler) logEmpty(log *slog.Logger, out Outcome) {
	attrs := []any{
		"reason", string(out.Empty),
		"start", model.FormatDate(*out.RangeStart),
		"end", model.FormatDate(*out.RangeEnd),
	}
	if !out.Empty.Suspicious() {
		log.Debug("no new trading days", attrs...)
		return
	}
	attrs = append(attrs, "path", out.Category.PathSegment())
	log.Warn("zero usable bars for non-empty range, check instrument category", attrs...)
}

func (r *Reconciler) fail(log *slog.Logger, out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	log.Error("instrument sync failed", "error", err, "kind", api.Classify(err).String())
	return out
}
