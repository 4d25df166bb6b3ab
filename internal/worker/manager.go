package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/task"
)

// ErrBusy is returned when a task is submitted while another is active
var ErrBusy = errors.New("a task is already running")

// Observer is notified once a submitted task reaches a terminal state
type Observer func(t *task.Task)

// Manager runs at most one task at a time
type Manager struct {
	mu        sync.Mutex
	current   *task.Task
	observers []Observer
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// NewManager creates a manager
func NewManager(logger *zap.Logger, observers ...Observer) *Manager {
	return &Manager{
		observers: observers,
		logger:    logger,
	}
}

// Submit starts t unless another task is still active
func (m *Manager) Submit(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.State().IsTerminal() {
		m.logger.Warn("Task refused, manager busy",
			zap.String("active", m.current.Name),
			zap.String("requested", t.Name))
		return ErrBusy
	}
	if err := t.Start(ctx); err != nil {
		return err
	}
	m.current = t

	m.wg.Add(1)
	go m.watch(t)
	return nil
}

func (m *Manager) watch(t *task.Task) {
	defer m.wg.Done()
	<-t.Done()
	for _, o := range m.observers {
		o(t)
	}
}

// Current returns the most recent task, running or finished, or nil
func (m *Manager) Current() *task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Busy reports whether a task is active
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.State().IsTerminal()
}

// Cancel requests cancellation of the active task. It reports whether
// there was one.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	t := m.current
	m.mu.Unlock()

	if t == nil || t.State().IsTerminal() {
		return false
	}
	t.Cancel()
	return true
}

// Wait blocks until every submitted task finished and its observers ran
func (m *Manager) Wait() {
	m.wg.Wait()
}
