package task

import (
	"time"

	"github.com/google/uuid"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	return s == StatusStopped || s == StatusCompleted || s == StatusFailed
}

// Progress is the latest progress report of a task.
type Progress struct {
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// NewProgress builds a Progress with the percentage rounded to 2 places.
func NewProgress(current, total int, message string) Progress {
	p := Progress{Current: current, Total: total, Message: message}
	if total > 0 {
		p.Percent = float64(current*10000/total) / 100
	}
	return p
}

// Task is a snapshot of one background execution.
type Task struct {
	ID         uuid.UUID      `json:"id"`
	Kind       string         `json:"kind"`
	Params     map[string]any `json:"params,omitempty"`
	Status     Status         `json:"status"`
	Progress   Progress       `json:"progress"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Duration returns how long the task has run, or ran.
func (t Task) Duration(now time.Time) time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	if t.FinishedAt != nil {
		return t.FinishedAt.Sub(*t.StartedAt)
	}
	return now.Sub(*t.StartedAt)
}
