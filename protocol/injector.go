package protocol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

const envelopeTemplate = `
=====
Before finishing your reply you MUST end it with a status envelope in
exactly this form:

%s
status: <%s>
context: <one line describing what happened>
next_hint: <one line suggestion for what should happen next, or blank>
=====
`

// Injector appends the status-envelope instruction block to outgoing
// prompts, unless disabled by configuration.
type Injector struct {
	cfg      *Config
	observer observability.Observer
}

// NewInjector constructs an Injector. A nil observer is replaced with
// observability.NoOpObserver{}.
func NewInjector(cfg *Config, observer observability.Observer) *Injector {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Injector{cfg: cfg, observer: observer}
}

// Inject appends the envelope instruction block to prompt. Idempotent in
// effect: injecting into an already-injected prompt only adds a second,
// redundant instruction block — callers should inject exactly once per
// outgoing prompt.
func (in *Injector) Inject(ctx context.Context, prompt string) string {
	if !in.cfg.InjectionEnabled {
		return prompt
	}

	statuses := strings.Join(in.cfg.ValidStatuses, "|")
	block := fmt.Sprintf(envelopeTemplate, in.cfg.StatusBlockMarker, statuses)

	in.observer.OnEvent(ctx, observability.Event{
		Type:      EventInject,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "protocol",
		Data:      map[string]any{"prompt_len": len(prompt)},
	})

	return prompt + block
}
