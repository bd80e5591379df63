package graph

import "fmt"

// CycleError reports that the grouping algorithm found pending tasks with
// no satisfiable dependency set — a cycle, since the graph is otherwise
// meant to be acyclic by construction (dependencies only reference
// already-declared tasks).
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %d tasks have no satisfiable dependencies: %v", len(e.Remaining), e.Remaining)
}
