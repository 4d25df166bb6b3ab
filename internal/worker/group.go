package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the common contract for long-running background services
type Worker interface {
	Start(ctx context.Context) error
	Stop()
	Name() string
}

// Group manages the lifecycle of a set of workers
type Group struct {
	workers []Worker
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewGroup creates an empty group
func NewGroup(logger *zap.Logger) *Group {
	return &Group{
		workers: make([]Worker, 0),
		logger:  logger,
	}
}

// Register adds a worker to be managed
func (g *Group) Register(w Worker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.workers = append(g.workers, w)
}

// StartAll starts all registered workers in order. Workers already started
// are stopped again if a later one fails.
func (g *Group) StartAll(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for i, w := range g.workers {
		if err := w.Start(ctx); err != nil {
			g.logger.Error("Failed to start worker",
				zap.String("name", w.Name()),
				zap.Error(err))
			for j := i - 1; j >= 0; j-- {
				g.workers[j].Stop()
			}
			return err
		}
		g.logger.Info("Worker started", zap.String("name", w.Name()))
	}
	return nil
}

// StopAll stops all registered workers in reverse order
func (g *Group) StopAll() {
	g.mu.RLock()
	workers := make([]Worker, len(g.workers))
	copy(workers, g.workers)
	g.mu.RUnlock()

	for i := len(workers) - 1; i >= 0; i-- {
		w := workers[i]
		w.Stop()
		g.logger.Info("Worker stopped", zap.String("name", w.Name()))
	}
}

// Count returns the number of registered workers
func (g *Group) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.workers)
}
