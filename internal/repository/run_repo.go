package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/task"
)

// ErrInvalidLimit is returned by List for a non-positive limit
var ErrInvalidLimit = errors.New("limit must be positive")

// Run is one finished task as stored in the history
type Run struct {
	ID         string    `json:"id"`
	Customer   string    `json:"customer"`
	State      string    `json:"state"`
	Outputs    []string  `json:"outputs"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunRepository handles run history database operations
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a run record
func (r *RunRepository) Create(ctx context.Context, run *Run) error {
	outputs := run.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	encoded, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("failed to encode outputs: %w", err)
	}

	query := `
		INSERT INTO runs (id, customer, state, outputs, reason, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Customer,
		run.State,
		string(encoded),
		run.Reason,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create run record", zap.String("id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// Record stores the terminal result of t
func (r *RunRepository) Record(ctx context.Context, t *task.Task) error {
	res := t.Result()
	started := t.StartedAt()
	if started.IsZero() {
		// canceled before it ran
		started = t.FinishedAt()
	}
	return r.Create(ctx, &Run{
		ID:         t.ID,
		Customer:   t.Name,
		State:      res.Outcome.String(),
		Outputs:    res.Outputs,
		Reason:     res.Reason,
		StartedAt:  started,
		FinishedAt: t.FinishedAt(),
	})
}

// Observer returns a callback that records every finished task. Failures
// are logged; history is best effort and never fails a run.
func (r *RunRepository) Observer() func(*task.Task) {
	return func(t *task.Task) {
		if err := r.Record(context.Background(), t); err != nil {
			r.logger.Warn("Run not recorded", zap.String("id", t.ID), zap.Error(err))
		}
	}
}

// List returns the most recent runs, newest first
func (r *RunRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	query := `
		SELECT id, customer, state, outputs, reason, started_at, finished_at
		FROM runs
		ORDER BY finished_at DESC, id
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run     Run
			outputs string
		)
		err := rows.Scan(
			&run.ID,
			&run.Customer,
			&run.State,
			&outputs,
			&run.Reason,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(outputs), &run.Outputs); err != nil {
			return nil, fmt.Errorf("failed to decode outputs of run %s: %w", run.ID, err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// DeleteBefore removes runs that finished before cutoff
func (r *RunRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM runs WHERE finished_at < ?", cutoff.UTC())
	if err != nil {
		r.logger.Error("Failed to prune runs", zap.Error(err))
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return result.RowsAffected()
}
