// Package messaging expands a rule action's PromptTemplate into the
// concrete prompt handed to the next agent, substituting the placeholders
// a rule author can reference:
//
//	{agent}      - the agent about to run
//	{context}    - the prior agent's reported status.Context
//	{next_hint}  - the prior agent's reported status.NextHint
//	{prompt}     - the original user task description, for start rules
//
// # Usage
//
//	prompt := messaging.NewTemplate(rule.Action.PromptTemplate).
//	    WithAgent(rule.Action.Agent).
//	    WithContext(status.Context).
//	    WithNextHint(status.NextHint).
//	    Build()
//
// A placeholder with no corresponding With* call is left in the output
// verbatim, so a rule author who misspells one notices immediately
// instead of getting a silently empty substitution.
package messaging
