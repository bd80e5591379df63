package execstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/orchestrator/memory"
	"github.com/tailored-agentic-units/orchestrator/observability"
)

// ExecutionState is the mutable record of one workflow run. iteration and
// history are kept in lock-step: iteration == len(history) holds after
// every call to Record (post-increment — there is no pre-increment/revert
// dance).
type ExecutionState struct {
	mu sync.Mutex

	iteration   int
	history     []ExecutionRecord
	retryCounts map[string]int
	complete    bool
	failed      bool
	failReason  string
	lastContext string
	startTime   time.Time
	endTime     time.Time

	cfg      *Config
	observer observability.Observer
}

// New creates a fresh ExecutionState. A nil observer is replaced with
// observability.NoOpObserver{}.
func New(cfg *Config, observer observability.Observer) *ExecutionState {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &ExecutionState{
		retryCounts: make(map[string]int),
		startTime:   time.Now(),
		cfg:         cfg,
		observer:    observer,
	}
}

// Record appends rec to history and increments iteration. Returns
// TerminalStateError if the state already reached complete or failed.
func (s *ExecutionState) Record(ctx context.Context, rec ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.complete || s.failed {
		return &TerminalStateError{Complete: s.complete, Failed: s.failed}
	}

	s.history = append(s.history, rec)
	s.iteration++
	s.lastContext = rec.Context

	s.observer.OnEvent(ctx, observability.Event{
		Type:      EventRecord,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "execstate",
		Data:      map[string]any{"agent": rec.Agent, "status": rec.StatusTag, "iteration": s.iteration},
	})
	return nil
}

// Iteration returns the current iteration count.
func (s *ExecutionState) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// History returns a copy of the recorded history, preserving append order.
func (s *ExecutionState) History() []ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExecutionRecord, len(s.history))
	copy(out, s.history)
	return out
}

// LastContext returns the context string of the most recently recorded
// step, or "" if nothing has been recorded yet.
func (s *ExecutionState) LastContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastContext
}

// IsComplete reports whether the run ended successfully.
func (s *ExecutionState) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// IsFailed reports whether the run ended in failure.
func (s *ExecutionState) IsFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// MarkComplete ends the run successfully. No further Record calls succeed.
func (s *ExecutionState) MarkComplete(ctx context.Context) {
	s.mu.Lock()
	s.complete = true
	s.endTime = time.Now()
	s.mu.Unlock()

	s.observer.OnEvent(ctx, observability.Event{
		Type: EventComplete, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "execstate",
	})
}

// MarkFailed ends the run in failure with reason recorded for Summary.
func (s *ExecutionState) MarkFailed(ctx context.Context, reason string) {
	s.mu.Lock()
	s.failed = true
	s.failReason = reason
	s.endTime = time.Now()
	s.mu.Unlock()

	s.observer.OnEvent(ctx, observability.Event{
		Type: EventFailed, Level: observability.LevelError, Timestamp: time.Now(), Source: "execstate",
		Data: map[string]any{"reason": reason},
	})
}

// IsAtLimit reports whether iteration has reached the configured cap.
func (s *ExecutionState) IsAtLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration >= s.cfg.MaxWorkflowIterations
}

// IsInLoop classifies the tail of history for two patterns: the same
// agent thrice consecutively (A-A-A), or two agents alternating across
// the last four records (A-B-A-B, A != B). It requires at least
// cfg.LoopLookback records before it can fire at all — on shorter
// histories it always returns false, which is also why it is false on any
// history shorter than 3 (3 < LoopLookback's default of 6).
func (s *ExecutionState) IsInLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) < s.cfg.LoopLookback {
		return false
	}

	tail := s.history[len(s.history)-s.cfg.LoopLookback:]
	agents := make([]string, len(tail))
	for i, r := range tail {
		agents[i] = r.Agent
	}

	last3 := agents[len(agents)-3:]
	if last3[0] == last3[1] && last3[1] == last3[2] {
		return true
	}

	last4 := agents[len(agents)-4:]
	if last4[0] == last4[2] && last4[1] == last4[3] && last4[0] != last4[1] {
		return true
	}

	return false
}

// CanRetry reports whether rule ruleID may fire again without exceeding
// max additional invocations.
func (s *ExecutionState) CanRetry(ruleID string, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCounts[ruleID] < max
}

// IncrementRetry records one more invocation of ruleID. Call once per
// dispatch of a rule carrying a retry block.
func (s *ExecutionState) IncrementRetry(ctx context.Context, ruleID string) {
	s.mu.Lock()
	s.retryCounts[ruleID]++
	count := s.retryCounts[ruleID]
	s.mu.Unlock()

	s.observer.OnEvent(ctx, observability.Event{
		Type: EventRetry, Level: observability.LevelVerbose, Timestamp: time.Now(), Source: "execstate",
		Data: map[string]any{"rule_id": ruleID, "count": count},
	})
}

// Summary renders a human-readable table of the run for terminal/UI-sink
// display.
func (s *ExecutionState) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := fmt.Sprintf("workflow run: iterations=%d complete=%v failed=%v\n", s.iteration, s.complete, s.failed)
	if s.failed {
		out += fmt.Sprintf("  reason: %s\n", s.failReason)
	}
	for i, r := range s.history {
		out += fmt.Sprintf("  %2d. %-16s %-10s %s\n", i+1, r.Agent, r.StatusTag, r.Context)
	}
	return out
}

type logDocument struct {
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Iterations  int            `json:"iterations"`
	Complete    bool           `json:"complete"`
	Failed      bool           `json:"failed"`
	FailReason  string         `json:"fail_reason,omitempty"`
	RetryCounts map[string]int `json:"retry_counts"`
	Records     []loggedRecord `json:"records"`
}

// SaveLog persists the run's execution log as a JSON document named
// workflow-<YYYYmmdd_HHMMSS>.json under the given memory.Store, namespaced
// by runID (used to disambiguate two runs starting in the same second).
func (s *ExecutionState) SaveLog(ctx context.Context, store memory.Store, runID string) (string, error) {
	s.mu.Lock()
	doc := logDocument{
		StartTime:   s.startTime.Format(time.RFC3339),
		Iterations:  s.iteration,
		Complete:    s.complete,
		Failed:      s.failed,
		FailReason:  s.failReason,
		RetryCounts: s.retryCounts,
		Records:     make([]loggedRecord, len(s.history)),
	}
	if !s.endTime.IsZero() {
		doc.EndTime = s.endTime.Format(time.RFC3339)
	}
	for i, r := range s.history {
		doc.Records[i] = r.MarshalLog()
	}
	filename := fmt.Sprintf("workflow-%s", s.startTime.Format("20060102_150405"))
	s.mu.Unlock()

	if runID != "" {
		filename += "-" + runID
	}
	filename += ".json"

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("execstate: marshal log: %w", err)
	}

	key := "logs/" + filename
	if err := store.Save(ctx, memory.Entry{Key: key, Value: data}); err != nil {
		return "", fmt.Errorf("execstate: save log: %w", err)
	}

	s.observer.OnEvent(ctx, observability.Event{
		Type: EventLogSaved, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "execstate",
		Data: map[string]any{"key": key},
	})
	return key, nil
}
