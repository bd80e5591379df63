package protocol

import "github.com/tailored-agentic-units/orchestrator/observability"

// Event types emitted by the protocol package.
const (
	EventParseExplicit observability.EventType = "protocol.parse.explicit"
	EventParseFallback observability.EventType = "protocol.parse.fallback"
	EventParseUnknown  observability.EventType = "protocol.parse.unknown"
	EventInject        observability.EventType = "protocol.inject"
)
