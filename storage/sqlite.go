// SQLite journal.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteJournal implements Journal using SQLite.
type SqliteJournal struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite journal at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteJournal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqliteJournal(db)
}

// NewSqliteInMemory creates an in-memory journal (useful for testing).
func NewSqliteInMemory() (*SqliteJournal, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// each connection would get its own empty database
	db.SetMaxOpenConns(1)
	return newSqliteJournal(db)
}

func newSqliteJournal(db *sql.DB) (*SqliteJournal, error) {
	j := &SqliteJournal{db: db}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *SqliteJournal) Close() error {
	return j.db.Close()
}

func (j *SqliteJournal) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			workspace TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			iterations INTEGER NOT NULL DEFAULT 0,
			tool_calls INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);

		CREATE TABLE IF NOT EXISTS tool_calls (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tool TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			exit_code INTEGER,
			input_bytes INTEGER NOT NULL,
			output_bytes INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			at INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		);
	`

	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// BeginRun stores a new run in the running state.
func (j *SqliteJournal) BeginRun(ctx context.Context, run RunRecord) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, task, provider, model, workspace, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Task, run.Provider, run.Model, run.Workspace, string(RunRunning), toMillis(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to begin run: %w", err)
	}
	return nil
}

// RecordToolCall appends a tool call to a run.
func (j *SqliteJournal) RecordToolCall(ctx context.Context, call ToolCallRecord) error {
	var exitCode sql.NullInt64
	if call.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*call.ExitCode), Valid: true}
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO tool_calls (run_id, seq, tool, status, error_kind, exit_code, input_bytes, output_bytes, duration_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.RunID, call.Seq, call.Tool, call.Status, call.ErrorKind, exitCode,
		call.InputBytes, call.OutputBytes, int64(call.DurationMs), toMillis(call.At),
	)
	if err != nil {
		return fmt.Errorf("failed to record tool call: %w", err)
	}
	return nil
}

// FinishRun marks a run done or failed.
func (j *SqliteJournal) FinishRun(ctx context.Context, runID string, outcome RunOutcome) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, reason = ?, iterations = ?, tool_calls = ?, total_tokens = ?, finished_at = ?
		 WHERE run_id = ?`,
		string(outcome.Status), outcome.Reason, outcome.Iterations, outcome.ToolCalls,
		int64(outcome.TotalTokens), toMillis(outcome.FinishedAt), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, task, provider, model, workspace, status, reason, iterations, tool_calls, total_tokens, started_at, finished_at`

// Run returns one run by ID.
func (j *SqliteJournal) Run(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// RecentRuns returns up to limit runs, newest first.
func (j *SqliteJournal) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// ToolCalls returns the calls of a run in order.
func (j *SqliteJournal) ToolCalls(ctx context.Context, runID string) ([]ToolCallRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, seq, tool, status, error_kind, exit_code, input_bytes, output_bytes, duration_ms, at
		 FROM tool_calls WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	calls := []ToolCallRecord{}
	for rows.Next() {
		var (
			call     ToolCallRecord
			exitCode sql.NullInt64
			duration int64
			at       int64
		)
		if err := rows.Scan(&call.RunID, &call.Seq, &call.Tool, &call.Status, &call.ErrorKind, &exitCode,
			&call.InputBytes, &call.OutputBytes, &duration, &at); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			call.ExitCode = &code
		}
		call.DurationMs = uint64(duration)
		call.At = fromMillis(at)
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tool calls: %w", err)
	}
	return calls, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		run      RunRecord
		status   string
		tokens   int64
		started  int64
		finished int64
	)
	err := row.Scan(&run.ID, &run.Task, &run.Provider, &run.Model, &run.Workspace, &status, &run.Reason,
		&run.Iterations, &run.ToolCalls, &tokens, &started, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = RunStatus(status)
	run.TotalTokens = uint32(tokens)
	run.StartedAt = fromMillis(started)
	run.FinishedAt = fromMillis(finished)
	return run, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Verify SqliteJournal implements Journal
var _ Journal = (*SqliteJournal)(nil)
