package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

// Backend is the seam between RealRunner and whatever transport actually
// reaches the external agent service (an RPC client, a subprocess, an
// HTTP call). RealRunner owns timeout enforcement and failure-envelope
// synthesis; Backend owns only the raw request/response.
type Backend interface {
	Invoke(ctx context.Context, agent, prompt string) (string, error)
}

// RealRunner delegates to a Backend under a bounded wall-clock timeout.
// On timeout or backend error it synthesizes an output that itself
// contains a status: FAILED envelope, so the protocol/rules pipeline
// never special-cases a runner-level failure.
type RealRunner struct {
	backend  Backend
	cfg      *Config
	marker   string
	observer observability.Observer
}

// NewRealRunner constructs a RealRunner. marker should match the
// configured protocol.Config.StatusBlockMarker so synthesized failures
// are recognized by the explicit parse tier. A nil observer is replaced
// with observability.NoOpObserver{}.
func NewRealRunner(backend Backend, cfg *Config, marker string, observer observability.Observer) *RealRunner {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &RealRunner{backend: backend, cfg: cfg, marker: marker, observer: observer}
}

// Run invokes the backend, enforcing cfg.AgentTimeoutSeconds. On timeout
// or backend error it returns (synthetic FAILED envelope, nil) — never a
// Go error — so the caller can always hand the output straight to the
// Status Protocol parser.
func (r *RealRunner) Run(ctx context.Context, agent, prompt string) (string, error) {
	timeout := time.Duration(r.cfg.AgentTimeoutSeconds) * time.Second
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.observer.OnEvent(ctx, observability.Event{
		Type: EventInvoke, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "runner",
		Data: map[string]any{"agent": agent},
	})

	output, err := r.backend.Invoke(callCtx, agent, prompt)
	if err == nil {
		r.observer.OnEvent(ctx, observability.Event{
			Type: EventComplete, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "runner",
			Data: map[string]any{"agent": agent},
		})
		return output, nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		r.observer.OnEvent(ctx, observability.Event{
			Type: EventTimeout, Level: observability.LevelError, Timestamp: time.Now(), Source: "runner",
			Data: map[string]any{"agent": agent},
		})
		return r.syntheticFailure(fmt.Sprintf("agent %s timed out after %ds", agent, r.cfg.AgentTimeoutSeconds)), nil
	}

	r.observer.OnEvent(ctx, observability.Event{
		Type: EventError, Level: observability.LevelError, Timestamp: time.Now(), Source: "runner",
		Data: map[string]any{"agent": agent, "error": err.Error()},
	})
	return r.syntheticFailure(fmt.Sprintf("agent %s backend error: %v", agent, err)), nil
}

func (r *RealRunner) syntheticFailure(context string) string {
	return fmt.Sprintf("%s\nstatus: FAILED\ncontext: %s\n", r.marker, context)
}
