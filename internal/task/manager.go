package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyRunning is returned by Start while another task is active.
	ErrAlreadyRunning = errors.New("a sync task is already running")
	// ErrNotFound is returned for an unknown task id.
	ErrNotFound = errors.New("task not found")
	// ErrNotRunning is returned by Stop for a task that is not running.
	ErrNotRunning = errors.New("task is not running")
)

// ReportFunc publishes progress from inside a task.
type ReportFunc func(Progress)

// Func is the body of a task. The returned result is kept even on error.
type Func func(ctx context.Context, report ReportFunc) (any, error)

type entry struct {
	task   Task
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns background tasks.
type Manager struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*entry
	active  *entry
	wg      sync.WaitGroup
	logger  *slog.Logger
	now     func() time.Time
	closing bool
}

// NewManager creates a Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tasks:  make(map[uuid.UUID]*entry),
		logger: logger,
		now:    time.Now,
	}
}

// Start launches fn in the background. It fails with ErrAlreadyRunning while
// another task is pending, running or stopping.
func (m *Manager) Start(kind string, params map[string]any, fn Func) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return Task{}, errors.New("task manager is shutting down")
	}
	if m.active != nil {
		return Task{}, fmt.Errorf("%w: %s (%s)", ErrAlreadyRunning, m.active.task.ID, m.active.task.Kind)
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := m.now()
	e := &entry{
		task: Task{
			ID:        uuid.New(),
			Kind:      kind,
			Params:    params,
			Status:    StatusRunning,
			CreatedAt: now,
			StartedAt: &now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.tasks[e.task.ID] = e
	m.active = e

	m.wg.Add(1)
	go m.run(ctx, e, fn)

	m.logger.Info("task started", "task_id", e.task.ID.String(), "kind", kind)
	return e.task, nil
}

func (m *Manager) run(ctx context.Context, e *entry, fn Func) {
	defer m.wg.Done()
	defer close(e.done)
	defer e.cancel()

	report := func(p Progress) {
		m.mu.Lock()
		e.task.Progress = p
		m.mu.Unlock()
	}

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		result, err = fn(ctx, report)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	finished := m.now()
	e.task.FinishedAt = &finished
	e.task.Result = result
	log := m.logger.With("task_id", e.task.ID.String(), "kind", e.task.Kind)

	switch {
	case err != nil:
		e.task.Status = StatusFailed
		e.task.Error = err.Error()
		log.Error("task failed", "error", err)
	case e.task.Status == StatusStopping:
		e.task.Status = StatusStopped
		log.Info("task stopped")
	default:
		e.task.Status = StatusCompleted
		log.Info("task completed", "duration", e.task.Duration(finished).Round(time.Millisecond))
	}
	if m.active == e {
		m.active = nil
	}
}

// Run starts fn and waits for it to finish. Cancelling ctx stops the task
// and still waits for it to wind down.
func (m *Manager) Run(ctx context.Context, kind string, params map[string]any, fn Func) (Task, error) {
	tk, err := m.Start(kind, params, fn)
	if err != nil {
		return tk, err
	}

	m.mu.Lock()
	e := m.tasks[tk.ID]
	m.mu.Unlock()

	select {
	case <-e.done:
	case <-ctx.Done():
		_, _ = m.Stop(tk.ID)
		<-e.done
	}
	return m.Get(tk.ID)
}

// Get returns a snapshot of one task.
func (m *Manager) Get(id uuid.UUID) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return e.task, nil
}

// List returns all tasks, newest first. An empty status matches all.
func (m *Manager) List(status Status) []Task {
	m.mu.Lock()
	out := make([]Task, 0, len(m.tasks))
	for _, e := range m.tasks {
		if status != "" && e.task.Status != status {
			continue
		}
		out = append(out, e.task)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Running returns the number of unfinished tasks.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return 1
	}
	return 0
}

// Stop requests cancellation of a running task.
func (m *Manager) Stop(id uuid.UUID) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	if e.task.Status != StatusRunning {
		return e.task, fmt.Errorf("%w: status %s", ErrNotRunning, e.task.Status)
	}
	e.task.Status = StatusStopping
	e.cancel()

	m.logger.Info("task stop requested", "task_id", id.String(), "kind", e.task.Kind)
	return e.task, nil
}

// Cleanup removes finished tasks that ended more than olderThan ago.
func (m *Manager) Cleanup(olderThan time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-olderThan)
	n := 0
	for id, e := range m.tasks {
		if e.task.Status.Finished() && e.task.FinishedAt != nil && e.task.FinishedAt.Before(cutoff) {
			delete(m.tasks, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Debug("cleaned up tasks", "removed", n)
	}
	return n
}

// Shutdown stops the active task and waits for it to finish or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	if m.active != nil && m.active.task.Status == StatusRunning {
		m.active.task.Status = StatusStopping
		m.active.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("task manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
