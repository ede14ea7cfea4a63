// Package tasks manages cancellable background work (redetect, rebuild,
// concatenate) with per-night exclusivity: at most one active task per
// night, a second request is rejected rather than queued.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/skymonitor/meteor-go/internal/errors"
	"github.com/skymonitor/meteor-go/internal/logging"
)

// Kind identifies the work a task performs.
type Kind string

const (
	KindRedetect    Kind = "redetect"
	KindRebuild     Kind = "rebuild"
	KindConcatenate Kind = "concatenate"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Task is one background unit of work. Progress increases monotonically as
// the work advances (one increment per clip for redetect).
type Task struct {
	ID    string
	Kind  Kind
	Night string

	mu       sync.RWMutex
	status   Status
	err      error
	progress atomic.Int64
	cancel   context.CancelFunc
}

// Status returns the task's current lifecycle state.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the failure cause for a failed task.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Progress returns the monotonically increasing progress counter.
func (t *Task) Progress() int64 {
	return t.progress.Load()
}

// Advance increments the progress counter.
func (t *Task) Advance() {
	t.progress.Add(1)
}

func (t *Task) setStatus(status Status, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.err = err
}

var (
	taskLogger *slog.Logger
	levelVar   = new(slog.LevelVar)
	loggerOnce sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		taskLogger, _ = logging.ForService("tasks", levelVar)
	})
	return taskLogger
}

// Fn is the work body. It must check ctx at iteration boundaries and
// return ctx.Err() when cancelled.
type Fn func(ctx context.Context, task *Task) error

// Manager starts, tracks and cancels background tasks.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*Task // by ID
	byNight map[string]*Task // active task per night
}

// NewManager creates an empty task manager.
func NewManager() *Manager {
	return &Manager{
		tasks:   make(map[string]*Task),
		byNight: make(map[string]*Task),
	}
}

// Start launches fn as a background task for the given night. A second
// task for a night whose previous task is still pending or running is
// rejected with a conflict error.
func (m *Manager) Start(kind Kind, night string, fn Fn) (*Task, error) {
	m.mu.Lock()
	if active, ok := m.byNight[night]; ok {
		status := active.Status()
		if status == StatusPending || status == StatusRunning {
			m.mu.Unlock()
			return nil, errors.Newf("a %s task is already active for night %s", active.Kind, night).
				Component("tasks").
				Category(errors.CategoryConflict).
				Build()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{
		ID:     uuid.NewString(),
		Kind:   kind,
		Night:  night,
		status: StatusPending,
		cancel: cancel,
	}
	m.tasks[task.ID] = task
	m.byNight[night] = task
	m.mu.Unlock()

	go m.run(ctx, task, fn)
	return task, nil
}

func (m *Manager) run(ctx context.Context, task *Task, fn Fn) {
	defer task.cancel()

	task.setStatus(StatusRunning, nil)
	logger().Info("Task started", "id", task.ID, "kind", task.Kind, "night", task.Night)

	err := fn(ctx, task)
	switch {
	case err == nil:
		task.setStatus(StatusDone, nil)
		logger().Info("Task done", "id", task.ID, "kind", task.Kind, "progress", task.Progress())
	case errors.Is(err, context.Canceled):
		task.setStatus(StatusCancelled, nil)
		logger().Info("Task cancelled", "id", task.ID, "kind", task.Kind, "progress", task.Progress())
	default:
		task.setStatus(StatusFailed, err)
		logger().Error("Task failed", "id", task.ID, "kind", task.Kind, "error", err)
	}
}

// Get returns a task by ID.
func (m *Manager) Get(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		return task, nil
	}
	return nil, errors.New(fmt.Errorf("task %s not found", id)).
		Component("tasks").
		Category(errors.CategoryNotFound).
		Build()
}

// GetByNight returns the most recently started task for a night.
func (m *Manager) GetByNight(night string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.byNight[night]; ok {
		return task, nil
	}
	return nil, errors.New(fmt.Errorf("no task for night %s", night)).
		Component("tasks").
		Category(errors.CategoryNotFound).
		Build()
}

// Cancel requests cancellation of a running task. The task stops before
// starting its next unit of work; completed work is not rolled back.
func (m *Manager) Cancel(id string) error {
	task, err := m.Get(id)
	if err != nil {
		return err
	}
	task.cancel()
	return nil
}
