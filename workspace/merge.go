package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

// MergeResult reports the outcome of merging one workspace's branch back
// onto a destination branch.
type MergeResult struct {
	Success   bool
	Branch    string
	Conflicts []string
	Message   string
}

// Merge fetches ws's branch into the main project repository and merges
// it into dstBranch with a merge commit ("Merge <src> into <dst>"). go-git
// v5 has no public, stable 3-way-merge-with-conflict-enumeration API, so
// this one operation shells out to the git binary already implied by the
// project directory being a git repository. Create uses the typed go-git
// API; delete and cleanup remove the checkout directory with os.RemoveAll. On
// refusal, conflicted paths are enumerated and the merge is aborted,
// leaving ws's branch intact for inspection.
func (m *Manager) Merge(ctx context.Context, ws *Workspace, dstBranch string) (*MergeResult, error) {
	remote := "ws-" + ws.Agent

	run := func(args ...string) (string, error) {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = m.projectDir
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()
		return out.String(), err
	}

	_, _ = run("remote", "remove", remote) // best-effort, may not exist
	if out, err := run("remote", "add", remote, ws.Path); err != nil {
		return nil, fmt.Errorf("workspace: add remote for merge: %w: %s", err, out)
	}
	defer run("remote", "remove", remote)

	if out, err := run("fetch", remote, ws.BranchName); err != nil {
		return nil, fmt.Errorf("workspace: fetch %s: %w: %s", ws.BranchName, err, out)
	}

	if out, err := run("checkout", dstBranch); err != nil {
		return nil, fmt.Errorf("workspace: checkout %s: %w: %s", dstBranch, err, out)
	}

	message := fmt.Sprintf("Merge %s into %s", ws.BranchName, dstBranch)
	mergeOut, mergeErr := run("merge", "--no-ff", "-m", message, remote+"/"+ws.BranchName)

	result := &MergeResult{Branch: ws.BranchName}

	if mergeErr == nil {
		result.Success = true
		result.Message = strings.TrimSpace(mergeOut)
		m.observer.OnEvent(ctx, observability.Event{
			Type: EventMerge, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "workspace",
			Data: map[string]any{"branch": ws.BranchName, "dst": dstBranch},
		})
		return result, nil
	}

	conflictsOut, _ := run("diff", "--name-only", "--diff-filter=U")
	conflicts := splitNonEmptyLines(conflictsOut)
	_, _ = run("merge", "--abort")

	result.Success = false
	result.Conflicts = conflicts
	result.Message = fmt.Sprintf("merge refused: %s", strings.TrimSpace(mergeOut))

	m.observer.OnEvent(ctx, observability.Event{
		Type: EventMergeConflict, Level: observability.LevelWarning, Timestamp: time.Now(), Source: "workspace",
		Data: map[string]any{"branch": ws.BranchName, "dst": dstBranch, "conflicts": conflicts},
	})

	return result, &MergeConflictError{SourceBranch: ws.BranchName, DestBranch: dstBranch, Conflicts: conflicts}
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
