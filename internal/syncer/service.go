package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
)

// Fetcher is the upstream surface the service needs. *api.Client implements it.
type Fetcher interface {
	InstrumentLister
	BarFetcher
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Reconciler Config
	Runner     RunnerConfig
	// Exchanges per category used when a list sync or batch names none.
	// Missing entries fall back to every exchange the category trades on.
	Exchanges map[model.Category][]string
}

// OneResult is the result of syncing a single symbol.
type OneResult struct {
	Symbol       string         `json:"symbol"`
	Category     model.Category `json:"category"`
	Status       Status         `json:"status"`
	RowsWritten  int            `json:"rows_written"`
	Rejected     int            `json:"rejected"`
	NewWatermark string         `json:"new_watermark,omitempty"`
	Suspicious   bool           `json:"suspicious"`
	EmptyReason  EmptyReason    `json:"empty_reason,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// BatchRequest selects a batch.
type BatchRequest struct {
	Category model.Category
	Options  Options
}

// Service exposes the sync operations to the CLI, HTTP and scheduler.
type Service struct {
	cfg        ServiceConfig
	store      store.Store
	lists      *ListSyncer
	reconciler *Reconciler
	runner     *Runner
	logger     *slog.Logger
}

// NewService wires a Service over fetcher and st.
func NewService(cfg ServiceConfig, fetcher Fetcher, st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	rec := NewReconciler(cfg.Reconciler, fetcher, st, logger)
	return &Service{
		cfg:        cfg,
		store:      st,
		lists:      NewListSyncer(fetcher, st, logger),
		reconciler: rec,
		runner:     NewRunner(cfg.Runner, rec, st, logger),
		logger:     logger,
	}
}

// Today returns the current exchange calendar date.
func (s *Service) Today() time.Time {
	return s.reconciler.Today()
}

func (s *Service) exchangesFor(cat model.Category) []string {
	if ex := s.cfg.Exchanges[cat]; len(ex) > 0 {
		return ex
	}
	return cat.Exchanges()
}

// SyncInstrumentList refreshes the catalog for cat on exchanges.
func (s *Service) SyncInstrumentList(ctx context.Context, cat model.Category, exchanges []string) (ListResult, error) {
	if len(exchanges) == 0 {
		exchanges = s.exchangesFor(cat)
	}
	return s.lists.Sync(ctx, cat, exchanges)
}

// SyncOne reconciles a single cataloged symbol. Unknown symbols fail with
// ErrUnknownInstrument; the category is never guessed.
func (s *Service) SyncOne(ctx context.Context, symbol string) (OneResult, error) {
	res := OneResult{Symbol: symbol, Status: StatusFailed}

	if _, _, err := model.ParseSymbol(symbol); err != nil {
		res.Error = err.Error()
		return res, err
	}
	inst, err := s.store.GetInstrument(ctx, symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
		}
		res.Error = err.Error()
		return res, err
	}

	out, err := s.reconciler.Sync(ctx, inst)
	res = oneResult(out)
	return res, err
}

func oneResult(out Outcome) OneResult {
	res := OneResult{
		Symbol:      out.Symbol,
		Category:    out.Category,
		Status:      out.Status,
		RowsWritten: out.RowsWritten,
		Rejected:    out.Rejected,
		Suspicious:  out.Suspicious(),
		EmptyReason: out.Empty,
	}
	if out.Watermark != nil {
		res.NewWatermark = model.FormatDate(*out.Watermark)
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	return res
}

// SyncBatch reconciles every active instrument of a category on its
// configured exchanges.
func (s *Service) SyncBatch(ctx context.Context, req BatchRequest, onProgress ProgressFunc) (Summary, error) {
	if !req.Category.Valid() {
		return Summary{}, fmt.Errorf("invalid category %s", req.Category)
	}
	insts, err := s.store.ListInstruments(ctx, store.Filter{
		Category:   req.Category,
		Exchanges:  s.exchangesFor(req.Category),
		ActiveOnly: true,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("list instruments: %w", err)
	}

	scope := Scope{Category: req.Category, Label: "batch:" + req.Category.String()}
	sum := s.runner.Run(ctx, scope, insts, req.Options, onProgress)
	if sum.Aborted {
		return sum, fmt.Errorf("batch aborted: %s", sum.AbortError)
	}
	return sum, nil
}

// Runs returns recent SyncRun rows.
func (s *Service) Runs(ctx context.Context, limit int) ([]model.SyncRun, error) {
	return s.store.ListRuns(ctx, limit)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
