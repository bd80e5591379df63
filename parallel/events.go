package parallel

import "github.com/tailored-agentic-units/orchestrator/observability"

const (
	EventTaskStart    observability.EventType = "parallel.task_start"
	EventTaskComplete observability.EventType = "parallel.task_complete"
	EventGroupStart   observability.EventType = "parallel.group_start"
	EventGroupDone    observability.EventType = "parallel.group_done"
	EventSkipped      observability.EventType = "parallel.skipped"
)
