package rules

import (
	"fmt"
	"regexp"
)

// Config is the loaded rule table; Validate checks it separately.
type Config struct {
	Rules []Rule
}

// DefaultConfig returns an empty rule table; real workflows always supply
// their own via the workflow JSON document.
func DefaultConfig() *Config {
	return &Config{Rules: nil}
}

// Merge overlays source's rule list onto c when source carries one,
// following the module's Default/Merge config convention. A rule table is
// replaced wholesale, never element-wise merged.
func (c *Config) Merge(source *Config) *Config {
	if source == nil {
		return c
	}
	if len(source.Rules) > 0 {
		c.Rules = source.Rules
	}
	return c
}

// Validate rejects the whole table on the first offending rule: an unknown
// action type, an unknown retry policy, or a trigger/context regex that
// fails to compile.
func Validate(cfg *Config, validStatuses []string) error {
	statusSet := make(map[string]bool, len(validStatuses))
	for _, s := range validStatuses {
		statusSet[s] = true
	}

	seen := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if r.ID == "" {
			return &ValidationError{RuleID: "", Reason: "missing id"}
		}
		if seen[r.ID] {
			return &ValidationError{RuleID: r.ID, Reason: "duplicate id"}
		}
		seen[r.ID] = true

		switch r.Action.Type {
		case ActionDispatch, ActionDecision, ActionComplete:
		default:
			return &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("unknown action type %q", r.Action.Type)}
		}

		if r.Trigger.Status != "" && len(statusSet) > 0 && !statusSet[r.Trigger.Status] {
			return &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("unknown status tag %q", r.Trigger.Status)}
		}

		if r.Trigger.ContextContains != "" {
			if _, err := regexp.Compile(r.Trigger.ContextContains); err != nil {
				return &ValidationError{RuleID: r.ID, Reason: "context_contains does not compile: " + err.Error()}
			}
		}
		if r.Trigger.ContextExcludes != "" {
			if _, err := regexp.Compile(r.Trigger.ContextExcludes); err != nil {
				return &ValidationError{RuleID: r.ID, Reason: "context_excludes does not compile: " + err.Error()}
			}
		}

		if r.Retry != nil {
			switch r.Retry.OnExhausted {
			case OnExhaustedAskUser, OnExhaustedTerminate:
			default:
				return &ValidationError{RuleID: r.ID, Reason: fmt.Sprintf("unknown retry policy %q", r.Retry.OnExhausted)}
			}
		}
	}
	return nil
}
