package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petal-labs/retrofit/runtime"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	crew         TEXT NOT NULL,
	started      TEXT NOT NULL,
	finished     TEXT,
	status       TEXT NOT NULL,
	total_tokens INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS task_outputs (
	run_id     TEXT NOT NULL,
	task       TEXT NOT NULL,
	agent      TEXT NOT NULL,
	output     TEXT NOT NULL,
	elapsed_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, task),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
`

// RunRecord is a stored summary of a crew run.
type RunRecord struct {
	ID          string
	Crew        string
	Started     time.Time
	Finished    time.Time
	Status      string
	TotalTokens int
}

// TaskRecord is a stored task output within a run.
type TaskRecord struct {
	RunID   string
	Task    string
	Agent   string
	Output  string
	Elapsed time.Duration
}

// SQLiteStore persists run history in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteStoreConfig configures a SQLiteStore.
type SQLiteStoreConfig struct {
	// DSN is the SQLite data source name, typically a file path.
	DSN string
}

// NewSQLiteStore opens the database at cfg.DSN and ensures the schema exists.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("run history sqlite store: DSN is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("run history sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run history sqlite store enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run history sqlite store enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run history sqlite store apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores the run summary and every task output in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *runtime.RunResult, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("run history sqlite store begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	finished := result.Started.Add(result.Elapsed)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, crew, started, finished, status, total_tokens)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.CrewName,
		result.Started.UTC().Format(time.RFC3339Nano),
		finished.UTC().Format(time.RFC3339Nano),
		status,
		result.Usage.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("run history sqlite store insert run: %w", err)
	}

	for _, id := range result.Order {
		tr, ok := result.Outputs[id]
		if !ok {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO task_outputs (run_id, task, agent, output, elapsed_ms)
			 VALUES (?, ?, ?, ?, ?)`,
			result.RunID, tr.TaskID, tr.Agent, tr.Output, tr.Elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("run history sqlite store insert task output: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("run history sqlite store commit: %w", err)
	}
	return nil
}

// GetRun returns the stored summary for a run ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, crew, started, finished, status, total_tokens FROM runs WHERE id = ?`,
		runID,
	)

	var rec RunRecord
	var started, finished string
	err := row.Scan(&rec.ID, &rec.Crew, &started, &finished, &rec.Status, &rec.TotalTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("run history sqlite store get run: %w", err)
	}

	if rec.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return RunRecord{}, fmt.Errorf("run history sqlite store parse started: %w", err)
	}
	if finished != "" {
		if rec.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return RunRecord{}, fmt.Errorf("run history sqlite store parse finished: %w", err)
		}
	}
	return rec, nil
}

// ListRuns returns stored runs newest first, up to limit. A limit of zero
// or less returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, crew, started, finished, status, total_tokens FROM runs ORDER BY started DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("run history sqlite store list runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &rec.Crew, &started, &finished, &rec.Status, &rec.TotalTokens); err != nil {
			return nil, fmt.Errorf("run history sqlite store scan run: %w", err)
		}
		if rec.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run history sqlite store parse started: %w", err)
		}
		if finished != "" {
			if rec.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
				return nil, fmt.Errorf("run history sqlite store parse finished: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run history sqlite store iterate runs: %w", err)
	}
	return recs, nil
}

// TaskOutputs returns the stored task outputs for a run, in insertion order.
func (s *SQLiteStore) TaskOutputs(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, task, agent, output, elapsed_ms FROM task_outputs WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("run history sqlite store list task outputs: %w", err)
	}
	defer rows.Close()

	var recs []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var elapsedMS int64
		if err := rows.Scan(&rec.RunID, &rec.Task, &rec.Agent, &rec.Output, &elapsedMS); err != nil {
			return nil, fmt.Errorf("run history sqlite store scan task output: %w", err)
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run history sqlite store iterate task outputs: %w", err)
	}
	return recs, nil
}
