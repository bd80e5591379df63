package execstate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tailored-agentic-units/orchestrator/memory"
)

func record(agent, status string) ExecutionRecord {
	return ExecutionRecord{Agent: agent, StatusTag: status}
}

func TestIterationMatchesHistoryLength(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Record(ctx, record("architect", "READY")); err != nil {
			t.Fatal(err)
		}
		if s.Iteration() != len(s.History()) {
			t.Fatalf("iteration %d != len(history) %d", s.Iteration(), len(s.History()))
		}
	}
}

func TestRecordAfterTerminalFails(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ctx := context.Background()
	s.MarkComplete(ctx)

	if err := s.Record(ctx, record("architect", "READY")); err == nil {
		t.Fatal("expected TerminalStateError after MarkComplete")
	}
}

func TestIsInLoopFalseBelowLookback(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = s.Record(ctx, record("code-editor", "BLOCKED"))
	}
	if s.IsInLoop() {
		t.Fatal("history shorter than LoopLookback must never report a loop")
	}
}

func TestIsInLoopDetectsAlternation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoopLookback = 4
	s := New(cfg, nil)
	ctx := context.Background()

	agents := []string{"code-editor", "code-reviewer", "code-editor", "code-reviewer"}
	for _, a := range agents {
		_ = s.Record(ctx, record(a, "BLOCKED"))
	}
	if !s.IsInLoop() {
		t.Fatal("expected A-B-A-B alternation to be detected as a loop")
	}
}

func TestIsInLoopDetectsTripleRepeat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoopLookback = 3
	s := New(cfg, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = s.Record(ctx, record("code-reviewer", "BLOCKED"))
	}
	if !s.IsInLoop() {
		t.Fatal("expected three consecutive same-agent records to be detected as a loop")
	}
}

func TestCanRetryBudget(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ctx := context.Background()

	max := 2
	calls := 0
	for s.CanRetry("rule-1", max) {
		s.IncrementRetry(ctx, "rule-1")
		calls++
		if calls > max {
			t.Fatal("CanRetry should become false at or before max increments")
		}
	}
	if calls != max {
		t.Fatalf("expected exactly %d successful increments before CanRetry turned false, got %d", max, calls)
	}
}

func TestIsFailedAndLastContext(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ctx := context.Background()

	if s.IsFailed() {
		t.Fatal("a fresh ExecutionState must not report failed")
	}
	if err := s.Record(ctx, ExecutionRecord{Agent: "architect", StatusTag: "BLOCKED", Context: "waiting on input"}); err != nil {
		t.Fatal(err)
	}
	if got := s.LastContext(); got != "waiting on input" {
		t.Fatalf("LastContext() = %q, want %q", got, "waiting on input")
	}

	s.MarkFailed(ctx, "user declined to continue")
	if !s.IsFailed() {
		t.Fatal("expected IsFailed() to report true after MarkFailed")
	}
	if s.IsComplete() {
		t.Fatal("MarkFailed must not also mark the run complete")
	}
}

func TestIsAtLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxWorkflowIterations = 3
	s := New(cfg, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = s.Record(ctx, record("architect", "READY"))
	}
	if !s.IsAtLimit() {
		t.Fatal("expected IsAtLimit to be true once iteration reaches the cap")
	}
}

func TestSaveLogPersistsTrimmedPrompt(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ctx := context.Background()

	longPrompt := make([]rune, 500)
	for i := range longPrompt {
		longPrompt[i] = 'x'
	}
	_ = s.Record(ctx, ExecutionRecord{Agent: "architect", Prompt: string(longPrompt), StatusTag: "READY"})
	s.MarkComplete(ctx)

	store := memory.NewFileStore(t.TempDir())
	key, err := s.SaveLog(ctx, store, "abc123")
	if err != nil {
		t.Fatal(err)
	}

	entries, err := store.Load(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one loaded entry, got %d", len(entries))
	}

	var doc struct {
		Records []struct {
			Prompt string `json:"prompt"`
		} `json:"records"`
	}
	if err := json.Unmarshal(entries[0].Value, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Records) != 1 || len([]rune(doc.Records[0].Prompt)) != maxLoggedPromptRunes+1 {
		t.Fatalf("expected one record with the prompt trimmed to %d runes plus ellipsis, got %+v", maxLoggedPromptRunes, doc.Records)
	}
}

func TestTrimRunes(t *testing.T) {
	short := "hello"
	if got := trimRunes(short, 200); got != short {
		t.Fatalf("short string should be unchanged, got %q", got)
	}

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'a'
	}
	got := trimRunes(string(long), 200)
	if len([]rune(got)) != 201 { // 200 runes + ellipsis
		t.Fatalf("expected trimmed string of 201 runes, got %d", len([]rune(got)))
	}
}
