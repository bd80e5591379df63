package rules

import "fmt"

// ValidationError reports a rejected rule table. The whole table is
// rejected on the first offending rule — partial, half-valid tables are
// never accepted.
type ValidationError struct {
	RuleID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %q rejected: %s", e.RuleID, e.Reason)
}

// MatchError wraps a failure to find any matching rule, carrying the
// (agent, status) pair that produced the miss for diagnostics. A no-match
// is a legitimate runtime outcome (the driver falls back to the UI sink),
// so this type is returned, never a bare string.
type MatchError struct {
	Agent  string
	Status string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("no rule matches agent %q with status %q", e.Agent, e.Status)
}
