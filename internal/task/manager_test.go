package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// waitFor polls the task until it reaches a finished state.
func waitFor(t *testing.T, m *Manager, id uuid.UUID) Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		tk, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if tk.Status.Finished() {
			return tk
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", id)
	return Task{}
}

func TestManagerCompleted(t *testing.T) {
	m := newTestManager()
	tk, err := m.Start("batch", map[string]any{"category": "fund"}, func(ctx context.Context, report ReportFunc) (any, error) {
		report(NewProgress(1, 2, "halfway"))
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if tk.Status != StatusRunning {
		t.Errorf("Status = %q, want %q", tk.Status, StatusRunning)
	}

	got := waitFor(t, m, tk.ID)
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.Result != "done" {
		t.Errorf("Result = %v, want done", got.Result)
	}
	if got.Progress.Percent != 50 || got.Progress.Message != "halfway" {
		t.Errorf("Progress = %+v", got.Progress)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt = nil")
	}
	if m.Running() != 0 {
		t.Errorf("Running() = %d, want 0", m.Running())
	}
}

func TestManagerSingleWriter(t *testing.T) {
	m := newTestManager()
	release := make(chan struct{})
	tk, err := m.Start("batch", nil, func(ctx context.Context, report ReportFunc) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := m.Start("list", nil, func(ctx context.Context, report ReportFunc) (any, error) {
		return nil, nil
	}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	if m.Running() != 1 {
		t.Errorf("Running() = %d, want 1", m.Running())
	}

	close(release)
	waitFor(t, m, tk.ID)

	if _, err := m.Start("list", nil, func(ctx context.Context, report ReportFunc) (any, error) {
		return nil, nil
	}); err != nil {
		t.Errorf("Start() after finish error = %v", err)
	}
}

func TestManagerStop(t *testing.T) {
	m := newTestManager()
	started := make(chan struct{})
	tk, _ := m.Start("batch", nil, func(ctx context.Context, report ReportFunc) (any, error) {
		close(started)
		<-ctx.Done()
		return "partial", nil
	})
	<-started

	stopped, err := m.Stop(tk.ID)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if stopped.Status != StatusStopping {
		t.Errorf("Status = %q, want %q", stopped.Status, StatusStopping)
	}

	got := waitFor(t, m, tk.ID)
	if got.Status != StatusStopped {
		t.Errorf("Status = %q, want %q", got.Status, StatusStopped)
	}
	if got.Result != "partial" {
		t.Errorf("Result = %v, want partial", got.Result)
	}

	if _, err := m.Stop(tk.ID); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() on finished task error = %v, want ErrNotRunning", err)
	}
	if _, err := m.Stop(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stop() unknown error = %v, want ErrNotFound", err)
	}
}

func TestManagerFailed(t *testing.T) {
	m := newTestManager()

	tests := []struct {
		name string
		fn   Func
		want string
	}{
		{
			name: "error",
			fn: func(ctx context.Context, report ReportFunc) (any, error) {
				return nil, errors.New("batch aborted")
			},
			want: "batch aborted",
		},
		{
			name: "panic",
			fn: func(ctx context.Context, report ReportFunc) (any, error) {
				panic("boom")
			},
			want: "task panicked: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk, err := m.Start(tt.name, nil, tt.fn)
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			got := waitFor(t, m, tk.ID)
			if got.Status != StatusFailed || got.Error != tt.want {
				t.Errorf("task = %q/%q, want failed/%q", got.Status, got.Error, tt.want)
			}
		})
	}
}

func TestManagerListAndCleanup(t *testing.T) {
	m := newTestManager()
	clock := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		tk, err := m.Start("batch", nil, func(ctx context.Context, report ReportFunc) (any, error) { return nil, nil })
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		waitFor(t, m, tk.ID)
		ids = append(ids, tk.ID)
		clock = clock.Add(time.Hour)
	}

	list := m.List("")
	if len(list) != 3 || list[0].ID != ids[2] {
		t.Errorf("List() = %d tasks, first %v, want 3 newest first", len(list), list[0].ID)
	}
	if got := len(m.List(StatusFailed)); got != 0 {
		t.Errorf("List(failed) = %d, want 0", got)
	}

	// Clock is now 12:00; tasks finished at 09:00, 10:00 and 11:00.
	if n := m.Cleanup(90 * time.Minute); n != 2 {
		t.Errorf("Cleanup() = %d, want 2", n)
	}
	if _, err := m.Get(ids[2]); err != nil {
		t.Errorf("Get(newest) error = %v", err)
	}
	if _, err := m.Get(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(oldest) error = %v, want ErrNotFound", err)
	}
}

func TestManagerShutdown(t *testing.T) {
	m := newTestManager()
	started := make(chan struct{})
	tk, _ := m.Start("batch", nil, func(ctx context.Context, report ReportFunc) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	got, _ := m.Get(tk.ID)
	if got.Status != StatusStopped {
		t.Errorf("Status = %q, want %q", got.Status, StatusStopped)
	}
	if _, err := m.Start("batch", nil, nil); err == nil {
		t.Error("Start() after Shutdown error = nil, want error")
	}
}

func TestNewProgress(t *testing.T) {
	if p := NewProgress(1, 3, ""); p.Percent != 33.33 {
		t.Errorf("Percent = %v, want 33.33", p.Percent)
	}
	if p := NewProgress(0, 0, ""); p.Percent != 0 {
		t.Errorf("Percent = %v, want 0", p.Percent)
	}
}

func TestManagerRun(t *testing.T) {
	m := newTestManager()

	tk, err := m.Run(context.Background(), "one", nil, func(ctx context.Context, report ReportFunc) (any, error) {
		return 5, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tk.Status != StatusCompleted || tk.Result != 5 {
		t.Errorf("task = %q/%v, want completed/5", tk.Status, tk.Result)
	}

	t.Run("caller cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		tk, err := m.Run(ctx, "one", nil, func(tctx context.Context, report ReportFunc) (any, error) {
			cancel()
			<-tctx.Done()
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if tk.Status != StatusStopped {
			t.Errorf("Status = %q, want %q", tk.Status, StatusStopped)
		}
	})
}
