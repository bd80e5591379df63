package graph

import "github.com/tailored-agentic-units/orchestrator/observability"

const (
	EventGroupEmitted observability.EventType = "graph.group_emitted"
	EventCycle        observability.EventType = "graph.cycle_detected"
	EventParsed       observability.EventType = "graph.parsed"
)
