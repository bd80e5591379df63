package workspace

import "github.com/tailored-agentic-units/orchestrator/observability"

const (
	EventCreate        observability.EventType = "workspace.create"
	EventDelete        observability.EventType = "workspace.delete"
	EventMerge         observability.EventType = "workspace.merge"
	EventMergeConflict observability.EventType = "workspace.merge_conflict"
	EventCleanup       observability.EventType = "workspace.cleanup"
	EventCapacity      observability.EventType = "workspace.capacity_exceeded"
)
