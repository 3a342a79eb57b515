package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/quotesync/internal/api"
	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
)

// InstrumentLister fetches upstream instrument lists. *api.Client implements it.
type InstrumentLister interface {
	ListInstruments(ctx context.Context, cat model.Category, exchange string) ([]api.InstrumentItem, error)
}

// ExchangeFailure records an exchange whose list could not be synced.
type ExchangeFailure struct {
	Exchange string `json:"exchange"`
	Error    string `json:"error"`
}

// ListResult summarizes an instrument list sync.
type ListResult struct {
	Category          model.Category    `json:"category"`
	TotalFetched      int               `json:"total_fetched"`
	NewCount          int               `json:"new_count"`
	UpdatedCount      int               `json:"updated_count"`
	DeactivatedCount  int               `json:"deactivated_count"`
	CategoryConflicts int               `json:"category_conflicts"`
	Skipped           int               `json:"skipped"` // Items that could not be converted
	FailedExchanges   []ExchangeFailure `json:"failed_exchanges,omitempty"`
}

// ListSyncer refreshes the instrument catalog from upstream lists.
type ListSyncer struct {
	lister  InstrumentLister
	catalog store.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewListSyncer creates a ListSyncer.
func NewListSyncer(lister InstrumentLister, catalog store.Catalog, logger *slog.Logger) *ListSyncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListSyncer{lister: lister, catalog: catalog, logger: logger, now: time.Now}
}

// Sync refreshes cat on each exchange. Empty exchanges means every exchange
// the category trades on. A fatal error is returned as *FatalError with the
// partial result; other per-exchange failures are recorded and skipped.
func (s *ListSyncer) Sync(ctx context.Context, cat model.Category, exchanges []string) (ListResult, error) {
	res := ListResult{Category: cat}
	if !cat.Valid() {
		return res, &FatalError{Symbol: "-", Err: fmt.Errorf("%w: category %s", api.ErrUnsupported, cat)}
	}
	if len(exchanges) == 0 {
		exchanges = cat.Exchanges()
	}
	for _, ex := range exchanges {
		if !cat.SupportsExchange(ex) {
			return res, &FatalError{Symbol: ex, Err: fmt.Errorf("%w: %s on exchange %q", api.ErrUnsupported, cat, ex)}
		}
	}

	for _, ex := range exchanges {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.syncExchange(ctx, cat, ex, &res); err != nil {
			if api.Classify(err) == api.KindFatal {
				return res, &FatalError{Symbol: ex, Err: err}
			}
			s.logger.Error("instrument list sync failed",
				"category", cat.String(),
				"exchange", ex,
				"error", err,
			)
			res.FailedExchanges = append(res.FailedExchanges, ExchangeFailure{Exchange: ex, Error: err.Error()})
		}
	}

	s.logger.Info("instrument list synced",
		"category", cat.String(),
		"fetched", res.TotalFetched,
		"new", res.NewCount,
		"updated", res.UpdatedCount,
		"deactivated", res.DeactivatedCount,
		"conflicts", res.CategoryConflicts,
		"failed_exchanges", len(res.FailedExchanges),
	)
	return res, nil
}

func (s *ListSyncer) syncExchange(ctx context.Context, cat model.Category, exchange string, res *ListResult) error {
	log := s.logger.With("category", cat.String(), "exchange", exchange)

	items, err := s.lister.ListInstruments(ctx, cat, exchange)
	if err != nil {
		return err
	}
	res.TotalFetched += len(items)
	if len(items) == 0 {
		log.Warn("upstream returned an empty instrument list, skipping deactivation")
		return nil
	}

	existing, err := s.catalog.ListInstruments(ctx, store.Filter{Exchanges: []string{exchange}})
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	known := make(map[string]model.Instrument, len(existing))
	for _, inst := range existing {
		known[inst.Symbol] = inst
	}

	now := s.now().UTC()
	insts := make([]model.Instrument, 0, len(items))
	keep := make([]string, 0, len(items))
	for _, item := range items {
		inst, err := item.ToModel(cat, exchange, now)
		if err != nil {
			res.Skipped++
			log.Warn("skipping instrument", "ticker", item.Ticker, "error", err)
			continue
		}
		keep = append(keep, inst.Symbol)
		if cur, ok := known[inst.Symbol]; ok {
			if cur.Category != cat && cur.HasHistory() {
				res.CategoryConflicts++
				log.Warn("category conflict, keeping stored category",
					"symbol", inst.Symbol,
					"stored", cur.Category.String(),
					"listed_as", cat.String(),
				)
			}
			if cur.Active && !inst.Active {
				res.DeactivatedCount++
			}
		}
		insts = append(insts, inst)
	}

	stats, err := s.catalog.UpsertInstruments(ctx, insts)
	if err != nil {
		return fmt.Errorf("upsert instruments: %w", err)
	}
	res.NewCount += stats.Inserted
	res.UpdatedCount += stats.Updated

	n, err := s.catalog.DeactivateMissing(ctx, cat, exchange, keep)
	if err != nil {
		return fmt.Errorf("deactivate missing: %w", err)
	}
	res.DeactivatedCount += n

	log.Debug("exchange list synced",
		"fetched", len(items),
		"new", stats.Inserted,
		"updated", stats.Updated,
		"deactivated", n,
	)
	return nil
}
