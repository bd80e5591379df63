package hub

import (
	"context"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

// EventHandler receives one observability.Event delivered to a
// subscriber. A returned error is logged but never unsubscribes the
// handler or blocks delivery to other subscribers.
type EventHandler func(ctx context.Context, event observability.Event) error
