package orchestrator

import "errors"

// ErrNoInitialRule is returned by Run when the rule table has no start or
// session_start rule willing to accept the initial prompt/resume state.
var ErrNoInitialRule = errors.New("orchestrator: no initial rule matched workflow start")

// ErrFailed is returned by Run when the loop terminates with
// ExecutionState.failed set — an agent FAILED, retries were exhausted, a
// loop/limit confirmation was declined, or the user cancelled at a
// fallback or decision prompt. The execution log is still saved, and the
// run's ExecutionState.Summary() is passed to the UISink's Info.
var ErrFailed = errors.New("orchestrator: workflow run ended in failure")
