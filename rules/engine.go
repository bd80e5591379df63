package rules

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
	"github.com/tailored-agentic-units/orchestrator/protocol"
)

// Match is the result of a successful rule match.
type Match struct {
	Rule Rule
}

// HasRetry reports whether the matched rule carries a retry block.
func (m Match) HasRetry() bool {
	return m.Rule.Retry != nil
}

// MaxRetries returns the matched rule's retry budget, or 0 if it has none.
func (m Match) MaxRetries() int {
	if m.Rule.Retry == nil {
		return 0
	}
	return m.Rule.Retry.Max
}

// Engine matches agent/status pairs against a loaded, validated rule
// table. Engine holds no mutable state beyond its observer and is safe for
// concurrent read-only use once constructed.
type Engine struct {
	rules    []Rule
	observer observability.Observer
	excludes map[string]*regexp.Regexp
	contains map[string]*regexp.Regexp
}

// New constructs an Engine from an already-validated Config, precompiling
// every trigger's context regexes once. Callers must run Validate before
// New — New does not re-validate and assumes all patterns compile.
func New(cfg *Config, observer observability.Observer) *Engine {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	e := &Engine{
		rules:    cfg.Rules,
		observer: observer,
		excludes: make(map[string]*regexp.Regexp),
		contains: make(map[string]*regexp.Regexp),
	}
	for _, r := range cfg.Rules {
		if r.Trigger.ContextExcludes != "" {
			if re, err := regexp.Compile(`(?i)` + r.Trigger.ContextExcludes); err == nil {
				e.excludes[r.ID] = re
			}
		}
		if r.Trigger.ContextContains != "" {
			if re, err := regexp.Compile(`(?i)` + r.Trigger.ContextContains); err == nil {
				e.contains[r.ID] = re
			}
		}
	}
	return e
}

// FindInitial selects the rule that starts a workflow, given the user's
// initial prompt text and whether a resume file is present. Candidates are
// rules whose trigger type is start or session_start, ordered by declared
// priority descending, ties broken by declaration order (stable sort).
func (e *Engine) FindInitial(ctx context.Context, userPrompt string, resumeFileExists bool) (Match, error) {
	candidates := make([]Rule, 0)
	for _, r := range e.rules {
		if r.Trigger.Type == TriggerStart || r.Trigger.Type == TriggerSessionStart {
			candidates = append(candidates, r)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Trigger.Priority > candidates[j].Trigger.Priority
	})

	for _, r := range candidates {
		if r.Trigger.Type == TriggerStart {
			e.emitInitial(ctx, r)
			return Match{Rule: r}, nil
		}
		// session_start
		if r.Trigger.ResumeFileRequired {
			if resumeFileExists {
				e.emitInitial(ctx, r)
				return Match{Rule: r}, nil
			}
			continue
		}
		if r.Trigger.PromptSubstring != "" && strings.Contains(userPrompt, r.Trigger.PromptSubstring) {
			e.emitInitial(ctx, r)
			return Match{Rule: r}, nil
		}
	}

	return Match{}, &MatchError{Agent: "", Status: "<initial>"}
}

// Match walks the rule table in declaration order and returns the first
// rule whose trigger accepts (agent, status). No match is a legitimate
// outcome: the caller falls back to its own UI-sink path.
func (e *Engine) Match(ctx context.Context, agent string, status protocol.Status) (Match, error) {
	for _, r := range e.rules {
		if r.Trigger.Type == TriggerStart || r.Trigger.Type == TriggerSessionStart {
			continue
		}
		if !e.triggerAccepts(r, agent, status) {
			continue
		}

		e.observer.OnEvent(ctx, observability.Event{
			Type:      EventMatch,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "rules",
			Data:      map[string]any{"rule_id": r.ID, "agent": agent, "status": status.Tag},
		})
		return Match{Rule: r}, nil
	}

	e.observer.OnEvent(ctx, observability.Event{
		Type:      EventNoMatch,
		Level:     observability.LevelWarning,
		Timestamp: time.Now(),
		Source:    "rules",
		Data:      map[string]any{"agent": agent, "status": status.Tag},
	})
	return Match{}, &MatchError{Agent: agent, Status: status.Tag}
}

func (e *Engine) triggerAccepts(r Rule, agent string, status protocol.Status) bool {
	t := r.Trigger
	if t.Agent != "" && t.Agent != agent {
		return false
	}
	if len(t.Agents) > 0 && !contains(t.Agents, agent) {
		return false
	}
	if t.Status != "" && t.Status != status.Tag {
		return false
	}

	// context_excludes is checked first and strictly dominates
	// context_contains: an excluded string cannot match even if an
	// including pattern would.
	if re, ok := e.excludes[r.ID]; ok && re.MatchString(status.Context) {
		return false
	}
	if re, ok := e.contains[r.ID]; ok && !re.MatchString(status.Context) {
		return false
	}

	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (e *Engine) emitInitial(ctx context.Context, r Rule) {
	e.observer.OnEvent(ctx, observability.Event{
		Type:      EventInitialMatch,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "rules",
		Data:      map[string]any{"rule_id": r.ID},
	})
}
