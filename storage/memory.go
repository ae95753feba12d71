// In-memory journal.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryJournal implements Journal in memory. Data is lost when the process
// terminates.
type MemoryJournal struct {
	mu    sync.RWMutex
	runs  map[string]RunRecord
	calls map[string][]ToolCallRecord
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		runs:  make(map[string]RunRecord),
		calls: make(map[string][]ToolCallRecord),
	}
}

// BeginRun stores a new run.
func (j *MemoryJournal) BeginRun(ctx context.Context, run RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.runs[run.ID]; exists {
		return fmt.Errorf("run '%s' already exists", run.ID)
	}
	run.Status = RunRunning
	j.runs[run.ID] = run
	return nil
}

// RecordToolCall appends a tool call.
func (j *MemoryJournal) RecordToolCall(ctx context.Context, call ToolCallRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.runs[call.RunID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, call.RunID)
	}
	j.calls[call.RunID] = append(j.calls[call.RunID], call)
	return nil
}

// FinishRun records the outcome of a run.
func (j *MemoryJournal) FinishRun(ctx context.Context, runID string, outcome RunOutcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	run, ok := j.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.Status = outcome.Status
	run.Reason = outcome.Reason
	run.Iterations = outcome.Iterations
	run.ToolCalls = outcome.ToolCalls
	run.TotalTokens = outcome.TotalTokens
	run.FinishedAt = outcome.FinishedAt
	j.runs[runID] = run
	return nil
}

// Run returns one run.
func (j *MemoryJournal) Run(ctx context.Context, runID string) (RunRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	run, ok := j.runs[runID]
	if !ok {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (j *MemoryJournal) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	runs := make([]RunRecord, 0, len(j.runs))
	for _, run := range j.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a].StartedAt.After(runs[b].StartedAt) })

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ToolCalls returns a copy of the calls of a run.
func (j *MemoryJournal) ToolCalls(ctx context.Context, runID string) ([]ToolCallRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	calls := j.calls[runID]
	copied := make([]ToolCallRecord, len(calls))
	copy(copied, calls)
	return copied, nil
}

// Close is a no-op.
func (j *MemoryJournal) Close() error {
	return nil
}

// Verify MemoryJournal implements Journal
var _ Journal = (*MemoryJournal)(nil)
