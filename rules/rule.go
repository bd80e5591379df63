// Package rules implements the declarative Rule Engine: a table of
// (prior agent, prior status, context filter) → (next agent, prompt
// template) rows, matched in declaration order. The table is data, never
// code — new agent transitions are expressible purely by editing the
// workflow configuration document.
package rules

// TriggerType distinguishes how a rule may be selected.
type TriggerType string

const (
	// TriggerStart matches unconditionally at workflow start.
	TriggerStart TriggerType = "start"
	// TriggerSessionStart matches at workflow start only when a resume
	// condition (file presence or prompt substring) holds.
	TriggerSessionStart TriggerType = "session_start"
	// TriggerNormal is the default: steady-state matching against the
	// just-run agent and its parsed status.
	TriggerNormal TriggerType = ""
)

// ActionType enumerates what a matched rule tells the Sequential Driver to
// do next.
type ActionType string

const (
	ActionDispatch ActionType = "dispatch"
	ActionDecision ActionType = "decision"
	ActionComplete ActionType = "complete"
)

// RetryPolicy names what happens once a rule's retry budget is exhausted.
type RetryPolicy string

const (
	OnExhaustedAskUser    RetryPolicy = "ask_user"
	OnExhaustedTerminate  RetryPolicy = "terminate"
)

// Trigger filters which prior (agent, status) pairs a rule applies to.
type Trigger struct {
	Type TriggerType `json:"type,omitempty"`

	// Agent, if non-empty, restricts the match to this single agent name.
	Agent string `json:"agent,omitempty"`
	// Agents, if non-empty, restricts the match to any agent in this list.
	// Agent and Agents are both optional and may be combined; an absent
	// Agent and empty Agents means "any agent".
	Agents []string `json:"agents,omitempty"`

	// Status, if non-empty, restricts the match to this status tag.
	Status string `json:"status,omitempty"`

	// ContextContains, if set, must match status.Context (case-insensitive)
	// for the rule to apply.
	ContextContains string `json:"context_contains,omitempty"`
	// ContextExcludes, if set and it matches status.Context, rejects the
	// rule outright — checked before, and strictly dominating,
	// ContextContains.
	ContextExcludes string `json:"context_excludes,omitempty"`

	// Priority orders initial-rule candidates, descending. Ties break by
	// declaration order.
	Priority int `json:"priority,omitempty"`

	// ResumeFileRequired and PromptSubstring support session_start
	// selection: if ResumeFileRequired, the trigger accepts only when the
	// resume file exists; otherwise it accepts when PromptSubstring is
	// found in the user's initial prompt.
	ResumeFileRequired bool   `json:"resume_file_required,omitempty"`
	PromptSubstring    string `json:"prompt_substring,omitempty"`
}

// RetryBlock bounds how many times a rule may fire before its exhaustion
// policy kicks in.
type RetryBlock struct {
	Max         int         `json:"max"`
	OnExhausted RetryPolicy `json:"on_exhausted"`
}

// Action describes what the driver does when a rule matches.
type Action struct {
	Type           ActionType       `json:"type"`
	Agent          string           `json:"agent,omitempty"`
	PromptTemplate string           `json:"prompt_template,omitempty"`
	Message        string           `json:"message,omitempty"`
	Options        []DecisionOption `json:"options,omitempty"`
}

// DecisionOption is one user-selectable branch of a "decision" action.
type DecisionOption struct {
	Key   string `json:"key,omitempty"`
	Label string `json:"label"`
	Agent string `json:"agent"`
}

// Rule is one declarative row of the rule table. Rules are loaded once and
// never mutated; the table is safe for concurrent read access by design.
type Rule struct {
	ID          string  `json:"id"`
	Description string  `json:"description,omitempty"`
	Trigger     Trigger `json:"trigger"`
	Action      Action  `json:"action"`
	Retry       *RetryBlock `json:"retry,omitempty"`
}
