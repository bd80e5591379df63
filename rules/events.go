package rules

import "github.com/tailored-agentic-units/orchestrator/observability"

const (
	EventMatch        observability.EventType = "rules.match"
	EventNoMatch      observability.EventType = "rules.no_match"
	EventInitialMatch observability.EventType = "rules.initial_match"
)
