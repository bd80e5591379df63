package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

// mockDelay is a small synthetic suspension so tests and demos exercise
// real cancellation/timeout wiring instead of returning instantly.
const mockDelay = 500 * time.Millisecond

// MockRunner returns canned per-agent responses without touching any
// external service. It tracks per-agent call counts so a second
// invocation of the same agent (e.g. task-manager closing out a
// workflow) can differ from the first.
type MockRunner struct {
	mu        sync.Mutex
	callCount map[string]int
	marker    string
	observer  observability.Observer
}

// NewMockRunner constructs a MockRunner. marker should match the
// configured protocol.Config.StatusBlockMarker.
func NewMockRunner(marker string, observer observability.Observer) *MockRunner {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &MockRunner{callCount: make(map[string]int), marker: marker, observer: observer}
}

// Run returns the canned response for agent, respecting ctx cancellation
// during the synthetic delay.
func (m *MockRunner) Run(ctx context.Context, agent, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount[agent]++
	count := m.callCount[agent]
	m.mu.Unlock()

	m.observer.OnEvent(ctx, observability.Event{
		Type: EventInvoke, Level: observability.LevelVerbose, Timestamp: time.Now(), Source: "runner.mock",
		Data: map[string]any{"agent": agent, "call_count": count},
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(mockDelay):
	}

	return m.canned(agent, count), nil
}

// CallCount returns how many times agent has been invoked so far.
func (m *MockRunner) CallCount(agent string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[agent]
}

func (m *MockRunner) canned(agent string, count int) string {
	switch agent {
	case "task-manager":
		if count >= 2 {
			return m.envelope("READY", "plan reviewed and workflow complete", "")
		}
		return m.envelope("READY", "broke task into architecture, build, and test phases", "dispatch to architect")
	case "architect":
		return m.envelope("READY", "drafted component design and interfaces", "hand off to code-writer")
	case "designer":
		return m.envelope("READY", "produced UI mockups and component spec", "hand off to code-writer")
	case "code-writer":
		return m.envelope("READY", "implemented the requested changes", "hand off to code-reviewer")
	case "code-editor":
		return m.envelope("READY", "applied the requested edits", "hand off to code-reviewer")
	case "code-reviewer":
		return m.envelope("READY", "review passed, no blocking comments", "hand off to tester")
	case "tester":
		return m.envelope("READY", "all tests pass", "hand off to task-manager for closeout")
	case "devops":
		return m.envelope("READY", "deployment pipeline configured", "")
	default:
		return m.envelope("UNKNOWN", fmt.Sprintf("no canned response for agent %q", agent), "")
	}
}

func (m *MockRunner) envelope(tag, context, hint string) string {
	return fmt.Sprintf("%s\nstatus: %s\ncontext: %s\nnext_hint: %s\n", m.marker, tag, context, hint)
}
