package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
)

// InstrumentSyncer reconciles one instrument. *Reconciler implements it.
type InstrumentSyncer interface {
	Sync(ctx context.Context, inst model.Instrument) (Outcome, error)
}

// Options selects a window of the instrument list.
type Options struct {
	SkipCount int // Instruments to skip from the start
	MaxCount  int // Maximum instruments to process; 0 = no limit
}

// Window applies skip and limit to insts.
func (o Options) Window(insts []model.Instrument) []model.Instrument {
	if o.SkipCount > 0 {
		if o.SkipCount >= len(insts) {
			return nil
		}
		insts = insts[o.SkipCount:]
	}
	if o.MaxCount > 0 && o.MaxCount < len(insts) {
		insts = insts[:o.MaxCount]
	}
	return insts
}

// RunnerConfig holds batch runner settings.
type RunnerConfig struct {
	Concurrency   int // Concurrent instruments; 1 = sequential
	ProgressEvery int // Emit progress every N instruments
}

// DefaultRunnerConfig returns sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Concurrency:   1,
		ProgressEvery: 10,
	}
}

// Failure is one FAILED instrument in a Summary.
type Failure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// Summary aggregates one batch.
type Summary struct {
	RunID       uuid.UUID     `json:"run_id"`
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Succeeded   int           `json:"succeeded"`
	UpToDate    int           `json:"up_to_date"`
	Failed      int           `json:"failed"`
	Suspicious  int           `json:"suspicious"`
	RowsWritten int64         `json:"rows_written"`
	Elapsed     time.Duration `json:"elapsed"`
	Aborted     bool          `json:"aborted"`
	AbortError  string        `json:"abort_error,omitempty"`
	Cancelled   bool          `json:"cancelled"`
	Failures    []Failure     `json:"failures,omitempty"`
}

// Status maps the summary to a SyncRun status.
func (s Summary) Status() model.RunStatus {
	switch {
	case s.Aborted:
		return model.RunAborted
	case s.Cancelled:
		return model.RunCancelled
	case s.Failed > 0:
		return model.RunCompletedWithErrors
	}
	return model.RunCompleted
}

// Progress is a periodic snapshot of a running batch.
type Progress struct {
	Done      int
	Total     int
	Elapsed   time.Duration
	Remaining time.Duration // Estimate from the average pace so far
	Succeeded int
	UpToDate  int
	Failed    int
}

// ProgressFunc receives progress snapshots. It must not block for long.
type ProgressFunc func(Progress)

// Scope describes a batch for bookkeeping.
type Scope struct {
	Category model.Category
	Label    string
}

// Runner iterates the Reconciler over a list of instruments.
type Runner struct {
	cfg    RunnerConfig
	syncer InstrumentSyncer
	runs   store.RunStore // Optional
	logger *slog.Logger
}

// NewRunner creates a Runner. runs may be nil to skip SyncRun bookkeeping.
func NewRunner(cfg RunnerConfig, syncer InstrumentSyncer, runs store.RunStore, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ProgressEvery < 1 {
		cfg.ProgressEvery = DefaultRunnerConfig().ProgressEvery
	}
	return &Runner{cfg: cfg, syncer: syncer, runs: runs, logger: logger}
}

// Run processes the window of insts selected by opts. Cancelling ctx stops
// the batch before the next instrument starts; the instrument in flight
// finishes. A fatal error stops it the same way and marks it aborted.
func (r *Runner) Run(ctx context.Context, scope Scope, insts []model.Instrument, opts Options, onProgress ProgressFunc) Summary {
	selected := opts.Window(insts)
	acc := &accumulator{
		every:      r.cfg.ProgressEvery,
		onProgress: onProgress,
		start:      time.Now(),
		sum:        Summary{RunID: uuid.New(), Total: len(selected)},
	}
	log := r.logger.With("run_id", acc.sum.RunID.String(), "scope", scope.Label)

	run := model.SyncRun{
		ID:        acc.sum.RunID,
		Scope:     scope.Label,
		Category:  scope.Category,
		StartedAt: acc.start.UTC(),
		Status:    model.RunRunning,
	}
	r.recordRun(ctx, log, &run, true)
	acc.onTick = func(s Summary) {
		snapshot := run
		applySummary(&snapshot, s)
		r.recordRun(ctx, log, &snapshot, false)
	}

	log.Info("batch started",
		"total", len(selected),
		"skip", opts.SkipCount,
		"max", opts.MaxCount,
		"concurrency", r.cfg.Concurrency,
	)

	g, gctx := errgroup.WithContext(context.Background())
	jobs := make(chan model.Instrument)

	g.Go(func() error {
		defer close(jobs)
		for _, inst := range selected {
			if ctx.Err() != nil || gctx.Err() != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-gctx.Done():
				return nil
			case jobs <- inst:
			}
		}
		return nil
	})

	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			for inst := range jobs {
				// Instrument boundary: honour stop and abort before starting.
				if ctx.Err() != nil || gctx.Err() != nil {
					continue
				}
				out, err := r.syncer.Sync(context.WithoutCancel(ctx), inst)
				acc.record(out)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	sum := acc.finish()
	if err != nil {
		sum.Aborted = true
		sum.AbortError = err.Error()
	} else if sum.Processed < sum.Total && ctx.Err() != nil {
		sum.Cancelled = true
	}

	applySummary(&run, sum)
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Error = sum.AbortError
	r.recordRun(context.WithoutCancel(ctx), log, &run, false)

	attrs := []any{
		"status", string(sum.Status()),
		"processed", sum.Processed,
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"up_to_date", sum.UpToDate,
		"failed", sum.Failed,
		"suspicious", sum.Suspicious,
		"rows_written", sum.RowsWritten,
		"elapsed", sum.Elapsed.Round(time.Millisecond),
	}
	switch {
	case sum.Aborted:
		log.Error("batch aborted", append(attrs, "error", sum.AbortError)...)
	case sum.Cancelled:
		log.Warn("batch cancelled", attrs...)
	case sum.Failed > 0:
		log.Warn("batch completed with failures", attrs...)
	default:
		log.Info("batch completed", attrs...)
	}

	return sum
}

func (r *Runner) recordRun(ctx context.Context, log *slog.Logger, run *model.SyncRun, create bool) {
	if r.runs == nil {
		return
	}
	var err error
	if create {
		err = r.runs.CreateRun(ctx, *run)
	} else {
		err = r.runs.UpdateRun(ctx, *run)
	}
	if err != nil {
		log.Warn("failed to record sync run", "error", err)
	}
}

func applySummary(run *model.SyncRun, s Summary) {
	run.Status = s.Status()
	if run.FinishedAt == nil && !s.Aborted && !s.Cancelled && s.Processed < s.Total {
		run.Status = model.RunRunning
	}
	run.Succeeded = s.Succeeded
	run.UpToDate = s.UpToDate
	run.Failed = s.Failed
	run.Suspicious = s.Suspicious
	run.RowsWritten = s.RowsWritten
}

// accumulator aggregates outcomes from concurrent workers.
type accumulator struct {
	mu         sync.Mutex
	sum        Summary
	start      time.Time
	every      int
	onProgress ProgressFunc
	onTick     func(Summary)
}

func (a *accumulator) record(out Outcome) {
	a.mu.Lock()
	a.sum.Processed++
	switch out.Status {
	case StatusCompleted:
		a.sum.Succeeded++
		a.sum.RowsWritten += int64(out.RowsWritten)
	case StatusUpToDate:
		a.sum.UpToDate++
		if out.Suspicious() {
			a.sum.Suspicious++
		}
	default:
		a.sum.Failed++
		msg := "unknown error"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		a.sum.Failures = append(a.sum.Failures, Failure{Symbol: out.Symbol, Error: msg})
	}

	var (
		p    Progress
		tick bool
		snap Summary
	)
	if a.sum.Processed%a.every == 0 || a.sum.Processed == a.sum.Total {
		tick = true
		elapsed := time.Since(a.start)
		p = Progress{
			Done:      a.sum.Processed,
			Total:     a.sum.Total,
			Elapsed:   elapsed,
			Remaining: estimateRemaining(elapsed, a.sum.Processed, a.sum.Total),
			Succeeded: a.sum.Succeeded,
			UpToDate:  a.sum.UpToDate,
			Failed:    a.sum.Failed,
		}
		snap = a.sum
	}
	a.mu.Unlock()

	if !tick {
		return
	}
	if a.onProgress != nil {
		a.onProgress(p)
	}
	if a.onTick != nil {
		a.onTick(snap)
	}
}

func (a *accumulator) finish() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum.Elapsed = time.Since(a.start)
	return a.sum
}

func estimateRemaining(elapsed time.Duration, done, total int) time.Duration {
	if done == 0 || done >= total {
		return 0
	}
	return elapsed / time.Duration(done) * time.Duration(total-done)
}
