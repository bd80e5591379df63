package runner

import "github.com/tailored-agentic-units/orchestrator/observability"

const (
	EventInvoke   observability.EventType = "runner.invoke"
	EventComplete observability.EventType = "runner.complete"
	EventTimeout  observability.EventType = "runner.timeout"
	EventError    observability.EventType = "runner.error"
)
