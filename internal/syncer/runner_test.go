package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/store"
)

// scriptedSyncer returns outcomes from a function and records the order of calls.
type scriptedSyncer struct {
	mu    sync.Mutex
	seen  []string
	count map[string]int
	fn    func(ctx context.Context, inst model.Instrument) (Outcome, error)
}

func (s *scriptedSyncer) Sync(ctx context.Context, inst model.Instrument) (Outcome, error) {
	s.mu.Lock()
	s.seen = append(s.seen, inst.Symbol)
	if s.count == nil {
		s.count = map[string]int{}
	}
	s.count[inst.Symbol]++
	s.mu.Unlock()

	if s.fn != nil {
		return s.fn(ctx, inst)
	}
	return Outcome{Symbol: inst.Symbol, Status: StatusCompleted, RowsWritten: 1}, nil
}

func instruments(n int) []model.Instrument {
	out := make([]model.Instrument, n)
	for i := range out {
		out[i] = fundInstrument(fmt.Sprintf("SH.5100%02d", i+1), nil)
	}
	return out
}

func TestRunnerPartialFailure(t *testing.T) {
	insts := instruments(5)
	s := &scriptedSyncer{fn: func(ctx context.Context, inst model.Instrument) (Outcome, error) {
		if inst.Symbol == insts[2].Symbol {
			return Outcome{Symbol: inst.Symbol, Status: StatusFailed, Err: errors.New("timeout")}, nil
		}
		return Outcome{Symbol: inst.Symbol, Status: StatusCompleted, RowsWritten: 3}, nil
	}}

	runs := store.NewMemory()
	r := NewRunner(RunnerConfig{Concurrency: 1, ProgressEvery: 10}, s, runs, discardLogger())
	sum := r.Run(context.Background(), Scope{Category: model.CategoryFund, Label: "test"}, insts, Options{}, nil)

	if sum.Succeeded != 4 || sum.Failed != 1 {
		t.Errorf("Succeeded = %d, Failed = %d, want 4 and 1", sum.Succeeded, sum.Failed)
	}
	if sum.RowsWritten != 12 {
		t.Errorf("RowsWritten = %d, want 12", sum.RowsWritten)
	}
	if len(s.seen) != 5 || s.seen[3] != insts[3].Symbol || s.seen[4] != insts[4].Symbol {
		t.Errorf("seen = %v, want all five in order", s.seen)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Symbol != insts[2].Symbol {
		t.Errorf("Failures = %+v", sum.Failures)
	}
	if sum.Aborted || sum.Cancelled {
		t.Errorf("Aborted = %v, Cancelled = %v, want false", sum.Aborted, sum.Cancelled)
	}
	if sum.Status() != model.RunCompletedWithErrors {
		t.Errorf("Status() = %q, want %q", sum.Status(), model.RunCompletedWithErrors)
	}

	recorded, _ := runs.ListRuns(context.Background(), 10)
	if len(recorded) != 1 {
		t.Fatalf("recorded runs = %d, want 1", len(recorded))
	}
	run := recorded[0]
	if run.ID != sum.RunID || run.Status != model.RunCompletedWithErrors || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}
	if run.Succeeded != 4 || run.Failed != 1 || run.RowsWritten != 12 {
		t.Errorf("run counters = %d/%d/%d, want 4/1/12", run.Succeeded, run.Failed, run.RowsWritten)
	}
}

func TestRunnerFatalAborts(t *testing.T) {
	insts := instruments(5)
	s := &scriptedSyncer{fn: func(ctx context.Context, inst model.Instrument) (Outcome, error) {
		if inst.Symbol == insts[1].Symbol {
			err := errors.New("unauthorized")
			return Outcome{Symbol: inst.Symbol, Status: StatusFailed, Err: err}, &FatalError{Symbol: inst.Symbol, Err: err}
		}
		return Outcome{Symbol: inst.Symbol, Status: StatusCompleted}, nil
	}}

	r := NewRunner(DefaultRunnerConfig(), s, nil, discardLogger())
	sum := r.Run(context.Background(), Scope{Label: "test"}, insts, Options{}, nil)

	if !sum.Aborted {
		t.Fatal("Aborted = false, want true")
	}
	if sum.AbortError == "" {
		t.Error("AbortError is empty")
	}
	if sum.Processed != 2 || len(s.seen) != 2 {
		t.Errorf("Processed = %d, seen = %v, want 2", sum.Processed, s.seen)
	}
	if sum.Status() != model.RunAborted {
		t.Errorf("Status() = %q, want %q", sum.Status(), model.RunAborted)
	}
}

func TestRunnerWindow(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []int
	}{
		{"all", Options{}, []int{0, 1, 2, 3, 4}},
		{"skip", Options{SkipCount: 3}, []int{3, 4}},
		{"max", Options{MaxCount: 2}, []int{0, 1}},
		{"skip and max", Options{SkipCount: 1, MaxCount: 2}, []int{1, 2}},
		{"skip past end", Options{SkipCount: 9}, nil},
		{"max past end", Options{MaxCount: 9}, []int{0, 1, 2, 3, 4}},
	}

	insts := instruments(5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedSyncer{}
			r := NewRunner(DefaultRunnerConfig(), s, nil, discardLogger())
			sum := r.Run(context.Background(), Scope{Label: "test"}, insts, tt.opts, nil)

			if sum.Total != len(tt.want) {
				t.Errorf("Total = %d, want %d", sum.Total, len(tt.want))
			}
			if len(s.seen) != len(tt.want) {
				t.Fatalf("seen = %v, want %d instruments", s.seen, len(tt.want))
			}
			for i, idx := range tt.want {
				if s.seen[i] != insts[idx].Symbol {
					t.Errorf("seen[%d] = %s, want %s", i, s.seen[i], insts[idx].Symbol)
				}
			}
		})
	}
}

func TestRunnerCancelAtBoundary(t *testing.T) {
	insts := instruments(5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &scriptedSyncer{fn: func(sctx context.Context, inst model.Instrument) (Outcome, error) {
		if inst.Symbol == insts[1].Symbol {
			cancel()
			// The instrument in flight keeps a live context.
			if sctx.Err() != nil {
				return Outcome{Symbol: inst.Symbol, Status: StatusFailed, Err: sctx.Err()}, nil
			}
		}
		return Outcome{Symbol: inst.Symbol, Status: StatusCompleted}, nil
	}}

	runs := store.NewMemory()
	r := NewRunner(DefaultRunnerConfig(), s, runs, discardLogger())
	sum := r.Run(ctx, Scope{Label: "test"}, insts, Options{}, nil)

	if !sum.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if sum.Processed != 2 || sum.Succeeded != 2 {
		t.Errorf("Processed = %d, Succeeded = %d, want 2 and 2", sum.Processed, sum.Succeeded)
	}
	recorded, _ := runs.ListRuns(context.Background(), 1)
	if len(recorded) != 1 || recorded[0].Status != model.RunCancelled {
		t.Errorf("recorded = %+v, want one cancelled run", recorded)
	}
}

func TestRunnerProgress(t *testing.T) {
	var ticks []Progress
	r := NewRunner(RunnerConfig{Concurrency: 1, ProgressEvery: 2}, &scriptedSyncer{}, nil, discardLogger())
	r.Run(context.Background(), Scope{Label: "test"}, instruments(5), Options{}, func(p Progress) {
		ticks = append(ticks, p)
	})

	want := []int{2, 4, 5}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %d, want %d", len(ticks), len(want))
	}
	for i, w := range want {
		if ticks[i].Done != w || ticks[i].Total != 5 {
			t.Errorf("tick[%d] = %d/%d, want %d/5", i, ticks[i].Done, ticks[i].Total, w)
		}
	}
	if ticks[2].Remaining != 0 {
		t.Errorf("final Remaining = %v, want 0", ticks[2].Remaining)
	}
}

func TestRunnerConcurrent(t *testing.T) {
	insts := make([]model.Instrument, 40)
	for i := range insts {
		insts[i] = fundInstrument(fmt.Sprintf("SZ.1599%02d", i), nil)
	}
	s := &scriptedSyncer{fn: func(ctx context.Context, inst model.Instrument) (Outcome, error) {
		if inst.Symbol == "SZ.159907" {
			return Outcome{Symbol: inst.Symbol, Status: StatusUpToDate, Empty: EmptyResponse}, nil
		}
		return Outcome{Symbol: inst.Symbol, Status: StatusCompleted, RowsWritten: 2}, nil
	}}

	r := NewRunner(RunnerConfig{Concurrency: 4, ProgressEvery: 5}, s, nil, discardLogger())
	sum := r.Run(context.Background(), Scope{Label: "test"}, insts, Options{}, nil)

	if sum.Processed != 40 || sum.Succeeded != 39 || sum.UpToDate != 1 || sum.Suspicious != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.RowsWritten != 78 {
		t.Errorf("RowsWritten = %d, want 78", sum.RowsWritten)
	}
	for _, inst := range insts {
		if n := s.count[inst.Symbol]; n != 1 {
			t.Errorf("%s synced %d times, want 1", inst.Symbol, n)
		}
	}
}

func TestEstimateRemaining(t *testing.T) {
	if got := estimateRemaining(10, 0, 5); got != 0 {
		t.Errorf("estimateRemaining(done=0) = %v, want 0", got)
	}
	if got := estimateRemaining(100, 2, 6); got != 200 {
		t.Errorf("estimateRemaining = %v, want 200", got)
	}
}
