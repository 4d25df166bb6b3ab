package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HistoryStore deletes run history older than a cutoff
type HistoryStore interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrunerConfig holds configuration for the history pruner
type PrunerConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// Pruner periodically removes old run history
type Pruner struct {
	config PrunerConfig
	store  HistoryStore
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPruner creates a pruner
func NewPruner(config PrunerConfig, store HistoryStore, logger *zap.Logger) *Pruner {
	return &Pruner{
		config: config,
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

// Start prunes once and then on every interval until stopped
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("history pruner already running")
	}
	if p.config.Interval <= 0 || p.config.Retention <= 0 {
		return fmt.Errorf("history pruner needs a positive interval and retention")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(runCtx, p.done)
	return nil
}

// Stop terminates the loop and waits for it to exit
func (p *Pruner) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Name returns the worker name for identification
func (p *Pruner) Name() string {
	return "HistoryPruner"
}

func (p *Pruner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.PruneOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce deletes history older than the retention window
func (p *Pruner) PruneOnce(ctx context.Context) {
	cutoff := p.now().Add(-p.config.Retention)
	n, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to prune run history", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("Pruned run history",
			zap.Int64("deleted", n),
			zap.Time("cutoff", cutoff))
	}
}
