package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/argmaster/cssfinder/internal/model"

	_ "modernc.org/sqlite"
)

const createExecutionsTable = `
CREATE TABLE IF NOT EXISTS executions (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL,
    task_name   TEXT NOT NULL,
    status      TEXT NOT NULL,
    termination TEXT,
    value       REAL,
    iterations  INTEGER,
    duration_ms INTEGER,
    error       TEXT,
    created_at  DATETIME NOT NULL
)`

// ExecutionRecord is one row of the run index: the outcome of a single task
// execution within a run.
type ExecutionRecord struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	TaskName    string    `json:"task_name"`
	Status      string    `json:"status"`
	Termination string    `json:"termination,omitempty"`
	Value       float64   `json:"value"`
	Iterations  int       `json:"iterations"`
	DurationMS  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Index records task execution outcomes in SQLite for reporting. Workers
// append rows concurrently; SQLite's WAL mode and busy timeout make that
// safe without application-level locking.
type Index struct {
	db *sql.DB
}

// OpenIndex opens the run index database at dbPath and runs migrations.
func OpenIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(createExecutionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create executions table: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// RecordResult appends one successful (or cancelled) execution to the index.
func (ix *Index) RecordResult(ctx context.Context, runID string, res *model.ExecutionResult) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO executions (
			id, run_id, task_name, status, termination, value,
			iterations, duration_ms, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.NewID(), runID, res.TaskName, res.Status(), res.Termination, res.Value,
		res.Iterations, res.Elapsed.Milliseconds(), "", time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// RecordFailure appends one failed execution to the index.
func (ix *Index) RecordFailure(ctx context.Context, runID, taskName string, taskErr error) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO executions (
			id, run_id, task_name, status, termination, value,
			iterations, duration_ms, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.NewID(), runID, taskName, model.StatusFailed, model.TerminationError, 0.0,
		0, 0, taskErr.Error(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert failed execution: %w", err)
	}
	return nil
}

// ListRun returns all execution records of one run, ordered by task name.
func (ix *Index) ListRun(ctx context.Context, runID string) ([]*ExecutionRecord, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, run_id, task_name, status, termination, value,
			iterations, duration_ms, error, created_at
		FROM executions WHERE run_id = ? ORDER BY task_name`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListTask returns all execution records of one task across runs, newest
// first, so reporting can track a task's history.
func (ix *Index) ListTask(ctx context.Context, taskName string) ([]*ExecutionRecord, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, run_id, task_name, status, termination, value,
			iterations, duration_ms, error, created_at
		FROM executions WHERE task_name = ? ORDER BY created_at DESC`, taskName,
	)
	if err != nil {
		return nil, fmt.Errorf("list task: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LatestRunID returns the run id of the most recently recorded execution.
func (ix *Index) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := ix.db.QueryRowContext(ctx,
		"SELECT run_id FROM executions ORDER BY created_at DESC, id DESC LIMIT 1",
	).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: index is empty", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return runID, nil
}

func scanRecords(rows *sql.Rows) ([]*ExecutionRecord, error) {
	var records []*ExecutionRecord
	for rows.Next() {
		r := &ExecutionRecord{}
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.TaskName, &r.Status, &r.Termination, &r.Value,
			&r.Iterations, &r.DurationMS, &r.Error, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return records, nil
}
