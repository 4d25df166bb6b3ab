package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Func is the routine a task runs. It reports progress and checks for
// cancellation through the Reporter, and returns the paths it produced.
type Func func(ctx context.Context, r *Reporter) ([]string, error)

// Result is the terminal outcome of a task
type Result struct {
	Outcome State
	Outputs []string
	Reason  string
	Err     error
}

// Task runs one routine in the background
type Task struct {
	ID   string
	Name string

	fn     Func
	logger *zap.Logger

	mu         sync.Mutex
	machine    *Machine
	result     Result
	startedAt  time.Time
	finishedAt time.Time

	canceled atomic.Bool
	percent  atomic.Int32
	cancel   context.CancelFunc
	progress chan int
	done     chan struct{}
}

// New creates an idle task
func New(name string, fn Func, logger *zap.Logger) *Task {
	return &Task{
		ID:       uuid.NewString(),
		Name:     name,
		fn:       fn,
		logger:   logger.With(zap.String("task", name)),
		machine:  NewLifecycle(),
		progress: make(chan int, 32),
		done:     make(chan struct{}),
	}
}

// Start moves the task to RUNNING and runs the routine on its own goroutine
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.machine.Fire(TriggerStart); err != nil {
		return err
	}
	t.startedAt = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.run(runCtx)

	t.logger.Info("Task started", zap.String("id", t.ID))
	return nil
}

func (t *Task) run(ctx context.Context) {
	var (
		outputs []string
		err     error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		outputs, err = t.fn(ctx, &Reporter{task: t, ctx: ctx})
	}()

	t.finish(outputs, err)
}

func (t *Task) finish(outputs []string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trigger := TriggerComplete
	switch {
	case err == nil:
	case errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled):
		trigger = TriggerCancel
	default:
		trigger = TriggerFail
	}

	if fireErr := t.machine.Fire(trigger); fireErr != nil {
		t.logger.Error("Task finished in unexpected state", zap.Error(fireErr))
	}
	t.finishedAt = time.Now()
	t.result = Result{Outcome: t.machine.State(), Outputs: outputs, Err: err}
	if err != nil {
		t.result.Reason = err.Error()
	}
	if trigger == TriggerComplete {
		t.setProgress(100)
	}
	if t.cancel != nil {
		t.cancel()
	}

	t.logger.Info("Task finished",
		zap.String("id", t.ID),
		zap.String("outcome", t.result.Outcome.String()),
		zap.Strings("outputs", outputs),
		zap.Duration("elapsed", t.finishedAt.Sub(t.startedAt)),
		zap.Error(err))

	close(t.progress)
	close(t.done)
}

// Cancel requests cooperative cancellation. An idle task is canceled
// immediately; on a finished task it does nothing.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.machine.State() {
	case StateIdle:
		_ = t.machine.Fire(TriggerCancel)
		t.finishedAt = time.Now()
		t.result = Result{Outcome: StateCanceled, Reason: ErrCanceled.Error(), Err: ErrCanceled}
		close(t.progress)
		close(t.done)
	case StateRunning:
		if t.canceled.CompareAndSwap(false, true) {
			t.logger.Info("Cancellation requested", zap.String("id", t.ID))
			if t.cancel != nil {
				t.cancel()
			}
		}
	}
}

// Progress streams percentages as they increase; it is closed when the
// task finishes. Slow readers may miss intermediate values.
func (t *Task) Progress() <-chan int {
	return t.progress
}

// Percent returns the last reported progress
func (t *Task) Percent() int {
	return int(t.percent.Load())
}

// Done is closed when the task reaches a terminal state
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// State returns the current lifecycle state
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.machine.State()
}

// Result returns the terminal result; it is zero until Done is closed
func (t *Task) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// StartedAt returns when the task started running
func (t *Task) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// FinishedAt returns when the task reached a terminal state
func (t *Task) FinishedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishedAt
}

// Wait blocks until the task finishes or ctx is done
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// setProgress records p if it advances past the last value
func (t *Task) setProgress(p int) {
	p = min(max(p, 0), 100)
	for {
		cur := t.percent.Load()
		if int32(p) <= cur {
			return
		}
		if t.percent.CompareAndSwap(cur, int32(p)) {
			break
		}
	}
	select {
	case t.progress <- p:
	default:
	}
}

// Reporter is handed to the routine for progress and cancellation checks
type Reporter struct {
	task *Task
	ctx  context.Context
}

// Report publishes a progress percentage
func (r *Reporter) Report(percent int) {
	r.task.setProgress(percent)
}

// Canceled reports whether cancellation was requested
func (r *Reporter) Canceled() bool {
	return r.task.canceled.Load() || r.ctx.Err() != nil
}

// Check returns ErrCanceled once cancellation was requested
func (r *Reporter) Check() error {
	if r.Canceled() {
		return ErrCanceled
	}
	return nil
}

// NewReporter returns a reporter not bound to a running task, for running a
// routine synchronously. Progress is discarded.
func NewReporter(ctx context.Context) *Reporter {
	t := &Task{progress: make(chan int, 1)}
	t.logger = zap.NewNop()
	return &Reporter{task: t, ctx: ctx}
}
