// Package execstate tracks the mutable, process-local state of one
// workflow run: the append-only history of agent invocations, retry
// accounting, loop and limit detection, and the persisted execution log.
//
// ExecutionState is owned exclusively by the Sequential Driver; it must
// never be shared across concurrent tasks (the Parallel Executor owns its
// own per-task bookkeeping instead, see package parallel).
package execstate

import "time"

const maxLoggedPromptRunes = 200

// ExecutionRecord is one agent invocation. Records are append-only: once
// written to an ExecutionState's history they are never mutated.
type ExecutionRecord struct {
	Agent           string
	Prompt          string
	StatusTag       string
	Context         string
	Source          string
	Timestamp       time.Time
	DurationSeconds float64
	RuleID          string // optional; empty if no rule produced this step
}

// loggedRecord is the JSON shape persisted to the workflow log. Unlike the
// in-memory ExecutionRecord, its prompt is trimmed — the original
// implementation this module is based on only trims at serialization time,
// keeping the full prompt available in memory for an in-process UI sink.
type loggedRecord struct {
	Agent           string  `json:"agent"`
	Prompt          string  `json:"prompt"`
	Status          string  `json:"status"`
	Context         string  `json:"context"`
	Source          string  `json:"source"`
	Timestamp       string  `json:"timestamp"`
	DurationSeconds float64 `json:"duration_seconds"`
	RuleID          string  `json:"rule_id,omitempty"`
}

// MarshalLog renders the record in its persisted, trimmed-prompt form.
func (r ExecutionRecord) MarshalLog() loggedRecord {
	return loggedRecord{
		Agent:           r.Agent,
		Prompt:          trimRunes(r.Prompt, maxLoggedPromptRunes),
		Status:          r.StatusTag,
		Context:         r.Context,
		Source:          r.Source,
		Timestamp:       r.Timestamp.Format(time.RFC3339),
		DurationSeconds: r.DurationSeconds,
		RuleID:          r.RuleID,
	}
}

func trimRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
