package execstate

import "github.com/tailored-agentic-units/orchestrator/observability"

const (
	EventRecord       observability.EventType = "execstate.record"
	EventLoopDetected observability.EventType = "execstate.loop_detected"
	EventAtLimit      observability.EventType = "execstate.at_limit"
	EventComplete     observability.EventType = "execstate.complete"
	EventFailed       observability.EventType = "execstate.failed"
	EventRetry        observability.EventType = "execstate.retry"
	EventLogSaved     observability.EventType = "execstate.log_saved"
)
