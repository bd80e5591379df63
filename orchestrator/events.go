package orchestrator

import "github.com/tailored-agentic-units/orchestrator/observability"

// Event types emitted by the Sequential Driver's loop. Completion and
// failure are reported by execstate (execstate.EventComplete/EventFailed),
// which owns that state; these cover the moments execstate can't see.
const (
	EventRunStart       observability.EventType = "orchestrator.run.start"
	EventIterationStart observability.EventType = "orchestrator.iteration.start"
	EventDispatch       observability.EventType = "orchestrator.dispatch"
	EventFallback       observability.EventType = "orchestrator.fallback"
)
