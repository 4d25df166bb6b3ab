package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func wait(t *testing.T, tk *Task) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := tk.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestTask_Completes(t *testing.T) {
	tk := New("ok", func(ctx context.Context, r *Reporter) ([]string, error) {
		r.Report(2)
		r.Report(50)
		r.Report(40)
		return []string{"/tmp/out.xlsx"}, nil
	}, zap.NewNop())

	assert.Equal(t, StateIdle, tk.State())
	require.NoError(t, tk.Start(context.Background()))

	res := wait(t, tk)
	assert.Equal(t, StateCompleted, res.Outcome)
	assert.Equal(t, []string{"/tmp/out.xlsx"}, res.Outputs)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 100, tk.Percent())

	var seen []int
	for p := range tk.Progress() {
		seen = append(seen, p)
	}
	assert.Equal(t, []int{2, 50, 100}, seen)
}

func TestTask_Fails(t *testing.T) {
	boom := errors.New("no matching data")
	tk := New("fail", func(ctx context.Context, r *Reporter) ([]string, error) {
		return nil, boom
	}, zap.NewNop())
	require.NoError(t, tk.Start(context.Background()))

	res := wait(t, tk)
	assert.Equal(t, StateFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "no matching data", res.Reason)
}

func TestTask_PanicMapsToFailed(t *testing.T) {
	tk := New("panic", func(ctx context.Context, r *Reporter) ([]string, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	}, zap.NewNop())
	require.NoError(t, tk.Start(context.Background()))

	res := wait(t, tk)
	assert.Equal(t, StateFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrPanic)
}

func TestTask_CooperativeCancel(t *testing.T) {
	started := make(chan struct{})
	tk := New("cancel", func(ctx context.Context, r *Reporter) ([]string, error) {
		close(started)
		for {
			if err := r.Check(); err != nil {
				return nil, err
			}
			time.Sleep(time.Millisecond)
		}
	}, zap.NewNop())
	require.NoError(t, tk.Start(context.Background()))

	<-started
	tk.Cancel()
	tk.Cancel()

	res := wait(t, tk)
	assert.Equal(t, StateCanceled, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrCanceled)
}

func TestTask_CancelAfterCompletionIsNoop(t *testing.T) {
	tk := New("done", func(ctx context.Context, r *Reporter) ([]string, error) {
		return []string{"a"}, nil
	}, zap.NewNop())
	require.NoError(t, tk.Start(context.Background()))
	wait(t, tk)

	tk.Cancel()
	assert.Equal(t, StateCompleted, tk.State())
	assert.Equal(t, StateCompleted, tk.Result().Outcome)
}

func TestTask_CancelBeforeStart(t *testing.T) {
	tk := New("idle", func(ctx context.Context, r *Reporter) ([]string, error) {
		t.Fatal("routine must not run")
		return nil, nil
	}, zap.NewNop())

	tk.Cancel()
	res := wait(t, tk)
	assert.Equal(t, StateCanceled, res.Outcome)
	assert.ErrorIs(t, tk.Start(context.Background()), ErrInvalidTransition)
}

func TestTask_StartTwice(t *testing.T) {
	release := make(chan struct{})
	tk := New("twice", func(ctx context.Context, r *Reporter) ([]string, error) {
		<-release
		return nil, nil
	}, zap.NewNop())

	require.NoError(t, tk.Start(context.Background()))
	assert.ErrorIs(t, tk.Start(context.Background()), ErrInvalidTransition)
	close(release)
	wait(t, tk)
}

func TestNewReporter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReporter(ctx)
	r.Report(10)
	r.Report(20)
	assert.NoError(t, r.Check())

	cancel()
	assert.True(t, r.Canceled())
	assert.ErrorIs(t, r.Check(), ErrCanceled)
}
