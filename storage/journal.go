// Package storage provides the run journal: an audit trail of agent runs
// and the tool calls they made.
//
// Information Hiding:
// - Backend (SQLite or in-memory) hidden behind the Journal interface
// - Schema and row mapping encapsulated
//
// The journal holds metadata only. Script output and file contents never
// reach it.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// RunRecord describes one agent run.
type RunRecord struct {
	ID          string    `json:"id"`
	Task        string    `json:"task"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Workspace   string    `json:"workspace"`
	Status      RunStatus `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Iterations  int       `json:"iterations"`
	ToolCalls   int       `json:"tool_calls"`
	TotalTokens uint32    `json:"total_tokens"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunOutcome is recorded when a run ends.
type RunOutcome struct {
	Status      RunStatus
	Reason      string
	Iterations  int
	ToolCalls   int
	TotalTokens uint32
	FinishedAt  time.Time
}

// ToolCallRecord describes one dispatched tool call.
type ToolCallRecord struct {
	RunID       string    `json:"run_id"`
	Seq         int       `json:"seq"`
	Tool        string    `json:"tool"`
	Status      string    `json:"status"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ExitCode    *int      `json:"exit_code,omitempty"`
	InputBytes  int       `json:"input_bytes"`
	OutputBytes int       `json:"output_bytes"`
	DurationMs  uint64    `json:"duration_ms"`
	At          time.Time `json:"at"`
}

// Journal records runs and their tool calls.
type Journal interface {
	// BeginRun stores a new run in the running state.
	BeginRun(ctx context.Context, run RunRecord) error

	// RecordToolCall appends a tool call to a run.
	RecordToolCall(ctx context.Context, call ToolCallRecord) error

	// FinishRun marks a run done or failed.
	FinishRun(ctx context.Context, runID string, outcome RunOutcome) error

	// Run returns one run by ID.
	Run(ctx context.Context, runID string) (RunRecord, error)

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// ToolCalls returns the calls of a run in order.
	ToolCalls(ctx context.Context, runID string) ([]ToolCallRecord, error)

	// Close releases resources.
	Close() error
}
