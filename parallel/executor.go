// Package parallel implements the Parallel Executor: it takes either a
// flat task list or a graph.DependencyGraph, bounds concurrency with a
// buffered-channel semaphore, isolates each task in its own
// workspace.Workspace, and serializes the resulting branch merges back
// onto a base branch.
package parallel

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/tailored-agentic-units/orchestrator/graph"
	"github.com/tailored-agentic-units/orchestrator/observability"
	"github.com/tailored-agentic-units/orchestrator/runner"
	"github.com/tailored-agentic-units/orchestrator/workspace"
)

var failureMarkerRe = regexp.MustCompile(`(?i)status:\s*(BLOCKED|FAILED)\b`)

const promptHeaderTemplate = `You are running in PARALLEL MODE.
Working directory: %s
Branch: %s
Commit all your changes before finishing — this branch will be merged
automatically once you report completion.

`

// Executor runs tasks concurrently, bounded by Config.MaxConcurrentAgents,
// each in its own workspace.Workspace.
type Executor struct {
	cfg      *Config
	runner   runner.Runner
	manager  *workspace.Manager
	observer observability.Observer
}

// NewExecutor constructs an Executor. A nil observer is replaced with
// observability.NoOpObserver{}.
func NewExecutor(cfg *Config, r runner.Runner, manager *workspace.Manager, observer observability.Observer) *Executor {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Executor{cfg: cfg, runner: r, manager: manager, observer: observer}
}

type indexedResult struct {
	index  int
	result AgentResult
}

// RunParallel runs tasks concurrently (bounded by MaxConcurrentAgents),
// each in its own workspace branched from base, then serially merges
// every succeeded task's branch back into base. Every workspace created
// is deleted before return, regardless of success or failure.
func (e *Executor) RunParallel(ctx context.Context, tasks []*graph.TaskNode, changeID, base string) (GroupResult, error) {
	e.observer.OnEvent(ctx, observability.Event{
		Type: EventGroupStart, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "parallel",
		Data: map[string]any{"task_count": len(tasks)},
	})

	sem := make(chan struct{}, e.cfg.MaxConcurrentAgents)
	resultCh := make(chan indexedResult, len(tasks))
	var wg sync.WaitGroup

	createdWorkspaces := make([]*workspace.Workspace, 0, len(tasks))
	var createdMu sync.Mutex

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task *graph.TaskNode) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				resultCh <- indexedResult{i, AgentResult{TaskID: task.ID, Agent: task.Agent, Success: false, Error: ctx.Err().Error()}}
				return
			}
			defer func() { <-sem }()

			result := e.runTask(ctx, task, changeID, base)

			if ws, ok := e.manager.Active(task.Agent, changeID); ok {
				createdMu.Lock()
				createdWorkspaces = append(createdWorkspaces, ws)
				createdMu.Unlock()
			}

			resultCh <- indexedResult{i, result}
		}(i, task)
	}

	wg.Wait()
	close(resultCh)

	results := make([]AgentResult, len(tasks))
	for ir := range resultCh {
		results[ir.index] = ir.result
	}

	mergeOutcomes := e.mergeAll(ctx, results, createdWorkspaces, base)

	// Always clean up every workspace created during this group, success
	// or failure alike.
	for _, ws := range createdWorkspaces {
		_ = e.manager.Delete(ctx, ws.Agent, ws.ChangeID, true)
	}

	success := true
	for _, r := range results {
		if !r.Success {
			success = false
		}
	}
	for _, m := range mergeOutcomes {
		if !m.Success {
			success = false
		}
	}

	e.observer.OnEvent(ctx, observability.Event{
		Type: EventGroupDone, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "parallel",
		Data: map[string]any{"success": success},
	})

	return GroupResult{AgentResults: results, MergeResults: mergeOutcomes, Success: success}, nil
}

func (e *Executor) runTask(ctx context.Context, task *graph.TaskNode, changeID, base string) AgentResult {
	e.observer.OnEvent(ctx, observability.Event{
		Type: EventTaskStart, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "parallel",
		Data: map[string]any{"task_id": task.ID, "agent": task.Agent},
	})

	ws, err := e.manager.Create(ctx, task.Agent, changeID, base)
	if err != nil {
		return AgentResult{TaskID: task.ID, Agent: task.Agent, Success: false, Error: err.Error()}
	}

	prompt := buildWorktreePrompt(ws.Path, ws.BranchName, task.Prompt)

	start := time.Now()
	output, err := e.runner.Run(ctx, task.Agent, prompt)
	duration := time.Since(start).Seconds()

	if err != nil {
		return AgentResult{TaskID: task.ID, Agent: task.Agent, Success: false, DurationSeconds: duration, Branch: ws.BranchName, Error: err.Error()}
	}

	success := !failureMarkerRe.MatchString(output)

	e.observer.OnEvent(ctx, observability.Event{
		Type: EventTaskComplete, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "parallel",
		Data: map[string]any{"task_id": task.ID, "success": success},
	})

	return AgentResult{
		TaskID:          task.ID,
		Agent:           task.Agent,
		Success:         success,
		Output:          output,
		DurationSeconds: duration,
		Branch:          ws.BranchName,
	}
}

// mergeAll serializes merges in task-submission order for every succeeded
// task, per spec §5's merge discipline (never concurrent).
func (e *Executor) mergeAll(ctx context.Context, results []AgentResult, created []*workspace.Workspace, base string) []MergeOutcome {
	byBranch := make(map[string]*workspace.Workspace, len(created))
	for _, ws := range created {
		byBranch[ws.BranchName] = ws
	}

	outcomes := make([]MergeOutcome, 0, len(results))
	for _, r := range results {
		if !r.Success || r.Branch == "" {
			continue
		}
		ws, ok := byBranch[r.Branch]
		if !ok {
			continue
		}

		mergeResult, err := e.manager.Merge(ctx, ws, base)
		if err != nil && mergeResult == nil {
			outcomes = append(outcomes, MergeOutcome{TaskID: r.TaskID, Success: false, Message: err.Error()})
			continue
		}
		outcomes = append(outcomes, MergeOutcome{
			TaskID:    r.TaskID,
			Success:   mergeResult.Success,
			Conflicts: mergeResult.Conflicts,
			Message:   mergeResult.Message,
		})
	}
	return outcomes
}

func buildWorktreePrompt(path, branch, taskPrompt string) string {
	return fmt.Sprintf(promptHeaderTemplate, path, branch) + taskPrompt
}

// RunDependencyGraph iterates over g.GetParallelGroups in order, running
// the flat-list protocol over each group's tasks. If any task in a group
// fails or any merge conflicts, all subsequent groups' tasks are marked
// graph.StatusSkipped and execution stops.
func (e *Executor) RunDependencyGraph(ctx context.Context, g *graph.DependencyGraph, changeID, base string) (ExecutionResult, error) {
	start := time.Now()

	groups, err := g.GetParallelGroups(ctx)
	if err != nil {
		return ExecutionResult{}, err
	}

	var groupResults []GroupResult
	overallSuccess := true
	stopped := false

	for _, group := range groups {
		if stopped {
			for _, task := range group {
				task.Status = graph.StatusSkipped
			}
			e.observer.OnEvent(ctx, observability.Event{
				Type: EventSkipped, Level: observability.LevelWarning, Timestamp: time.Now(), Source: "parallel",
				Data: map[string]any{"group_size": len(group)},
			})
			continue
		}

		gr, err := e.RunParallel(ctx, group, changeID, base)
		if err != nil {
			return ExecutionResult{}, err
		}
		groupResults = append(groupResults, gr)

		for _, ar := range gr.AgentResults {
			if task, ok := g.Node(ar.TaskID); ok {
				if ar.Success {
					task.Status = graph.StatusCompleted
				} else {
					task.Status = graph.StatusFailed
				}
			}
		}

		if !gr.Success {
			overallSuccess = false
			stopped = true
		}
	}

	return ExecutionResult{
		Groups:          groupResults,
		Success:         overallSuccess,
		DurationSeconds: time.Since(start).Seconds(),
	}, nil
}
