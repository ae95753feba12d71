package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryJournalConcurrentCalls(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	if err := j.BeginRun(ctx, testRun("run-1", time.Now())); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			call := ToolCallRecord{RunID: "run-1", Seq: seq, Tool: "list_workspace", Status: "ok", At: time.Now()}
			if err := j.RecordToolCall(ctx, call); err != nil {
				t.Errorf("RecordToolCall %d failed: %v", seq, err)
			}
		}(i)
	}
	wg.Wait()

	calls, err := j.ToolCalls(ctx, "run-1")
	if err != nil {
		t.Fatalf("ToolCalls failed: %v", err)
	}
	if len(calls) != 20 {
		t.Errorf("expected 20 calls, got %d", len(calls))
	}
}

func TestMemoryJournalReturnsCopies(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	_ = j.BeginRun(ctx, testRun("run-1", time.Now()))
	_ = j.RecordToolCall(ctx, ToolCallRecord{RunID: "run-1", Seq: 1, Tool: "read_file", Status: "ok"})

	calls, _ := j.ToolCalls(ctx, "run-1")
	calls[0].Tool = "mutated"

	again, _ := j.ToolCalls(ctx, "run-1")
	if again[0].Tool != "read_file" {
		t.Errorf("journal state was mutated through returned slice: %s", again[0].Tool)
	}
}

func TestMemoryJournalBeginForcesRunning(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	run := testRun("run-1", time.Now())
	run.Status = RunDone
	_ = j.BeginRun(ctx, run)

	got, err := j.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got.Status != RunRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
}

func TestMemoryJournalClose(t *testing.T) {
	j := NewMemoryJournal()
	for i := 0; i < 3; i++ {
		_ = j.BeginRun(context.Background(), testRun(fmt.Sprintf("r%d", i), time.Now()))
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}
