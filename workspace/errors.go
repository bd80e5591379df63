package workspace

import "fmt"

// CapacityError reports that Create was refused because MaxWorktrees
// concurrent workspaces are already active.
type CapacityError struct {
	Max int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("workspace capacity exceeded: max %d concurrent workspaces", e.Max)
}

// MergeConflictError reports a merge the underlying VCS refused, with the
// conflicting paths enumerated. The source branch is left intact for
// inspection — callers must not delete it until the conflict is resolved
// or abandoned.
type MergeConflictError struct {
	SourceBranch string
	DestBranch   string
	Conflicts    []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge of %s into %s has %d conflicting path(s): %v", e.SourceBranch, e.DestBranch, len(e.Conflicts), e.Conflicts)
}
