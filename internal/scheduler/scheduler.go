// Package scheduler runs the daily sync on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/syncer"
	"github.com/rickgao/quotesync/internal/task"
)

// KindDaily is the task kind of scheduled runs.
const KindDaily = "scheduled_daily"

// Syncer is the part of *syncer.Service the daily job drives.
type Syncer interface {
	SyncInstrumentList(ctx context.Context, cat model.Category, exchanges []string) (syncer.ListResult, error)
	SyncBatch(ctx context.Context, req syncer.BatchRequest, onProgress syncer.ProgressFunc) (syncer.Summary, error)
}

// CategoryResult is the outcome of one category in a daily run.
type CategoryResult struct {
	List  *syncer.ListResult `json:"list,omitempty"`
	Batch *syncer.Summary    `json:"batch,omitempty"`
}

// DailyJob refreshes the instrument list and then syncs bars for each
// category in order. A list or batch abort stops the job.
func DailyJob(s Syncer, categories []model.Category) task.Func {
	return func(ctx context.Context, report task.ReportFunc) (any, error) {
		results := make(map[string]CategoryResult, len(categories))
		for i, cat := range categories {
			if ctx.Err() != nil {
				return results, nil
			}
			label := fmt.Sprintf("%s (%d/%d)", cat, i+1, len(categories))

			report(task.NewProgress(0, 0, "syncing instrument list: "+label))
			lr, err := s.SyncInstrumentList(ctx, cat, nil)
			cr := CategoryResult{List: &lr}
			results[cat.String()] = cr
			if err != nil {
				return results, fmt.Errorf("instrument list %s: %w", cat, err)
			}

			sum, err := s.SyncBatch(ctx, syncer.BatchRequest{Category: cat}, func(p syncer.Progress) {
				report(task.NewProgress(p.Done, p.Total, "syncing bars: "+label))
			})
			cr.Batch = &sum
			results[cat.String()] = cr
			if err != nil {
				return results, err
			}
		}
		return results, nil
	}
}

// Config holds scheduler settings.
type Config struct {
	Spec     string         // Standard 5-field cron spec
	Location *time.Location // Zone the cron expression is evaluated in
}

// Scheduler fires a task on a cron schedule through the task manager, so
// scheduled runs share the single-writer rule with manual ones.
type Scheduler struct {
	cron   *cron.Cron
	tasks  *task.Manager
	job    task.Func
	logger *slog.Logger
	entry  cron.EntryID
}

// New creates a Scheduler. It does not start it.
func New(cfg Config, tasks *task.Manager, job task.Func, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = model.ChinaTZ
	}
	cl := cronLogger{logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		tasks:  tasks,
		job:    job,
		logger: logger,
	}

	id, err := s.cron.AddFunc(cfg.Spec, s.Fire)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", cfg.Spec, err)
	}
	s.entry = id
	return s, nil
}

// Fire starts the job now unless another task is running.
func (s *Scheduler) Fire() {
	tk, err := s.tasks.Start(KindDaily, nil, s.job)
	if err != nil {
		if errors.Is(err, task.ErrAlreadyRunning) {
			s.logger.Warn("skipping scheduled sync, task already running", "error", err)
			return
		}
		s.logger.Error("failed to start scheduled sync", "error", err)
		return
	}
	s.logger.Info("scheduled sync started", "task_id", tk.ID.String())
}

// Next returns the next scheduled fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "next", s.Next())
}

// Stop halts the schedule. Tasks already started are left to the task
// manager.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
