// Package workspace implements the Workspace Manager: isolated VCS
// checkouts that let independent agents write concurrently without
// touching the same working directory, merged back onto a base branch
// once each task completes.
//
// go-git's v5 API models a single repository with one working tree — it
// has no equivalent of `git worktree add`'s linked-worktree feature. Each
// Workspace here is instead a local clone of the project repository,
// checked out onto its own branch under the configured worktree
// directory; isolation is achieved the same way (separate working
// directory, separate index) even though the object store is not shared
// with the origin checkout.
package workspace

import "time"

// Status is a Workspace's lifecycle stage.
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCleaned   Status = "cleaned"
)

// Workspace is one isolated checkout, owned exclusively by the in-flight
// task it was created for until it is deleted.
type Workspace struct {
	Path       string
	BranchName string
	Agent      string
	ChangeID   string
	Status     Status
	CreatedAt  time.Time
}
