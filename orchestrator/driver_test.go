package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/tailored-agentic-units/orchestrator/memory"
	"github.com/tailored-agentic-units/orchestrator/rules"
)

// scriptedBackend returns one canned output per agent invocation, in
// order, regardless of which agent is asked; it panics if exhausted so a
// test's own bug in a response script fails loudly rather than looping.
type scriptedBackend struct {
	outputs []string
	calls   int
}

func (b *scriptedBackend) Invoke(ctx context.Context, agent, prompt string) (string, error) {
	if b.calls >= len(b.outputs) {
		panic(fmt.Sprintf("scriptedBackend exhausted after %d calls (agent %s)", b.calls, agent))
	}
	out := b.outputs[b.calls]
	b.calls++
	return out, nil
}

// scriptedSink is a UISink test double that auto-answers every prompt
// without touching stdin/stdout, recording what it was asked.
type scriptedSink struct {
	continueAnswer bool
	fallbackAgent  string
	fallbackPrompt string
	fallbackOK     bool
	errors         []string
	completed      []string
}

func (s *scriptedSink) Header(string)                {}
func (s *scriptedSink) Iteration(int, string, bool)   {}
func (s *scriptedSink) Status(string, string, string) {}
func (s *scriptedSink) RuleMatch(string, string)      {}
func (s *scriptedSink) NoMatch()                      {}
func (s *scriptedSink) Info(string)                   {}
func (s *scriptedSink) Error(msg string)               { s.errors = append(s.errors, msg) }
func (s *scriptedSink) Complete(msg string)            { s.completed = append(s.completed, msg) }
func (s *scriptedSink) ConfirmContinue(context.Context, string) bool { return s.continueAnswer }
func (s *scriptedSink) AskFallback(context.Context, []string) (string, string, bool) {
	return s.fallbackAgent, s.fallbackPrompt, s.fallbackOK
}
func (s *scriptedSink) AskDecision(ctx context.Context, msg string, options []rules.DecisionOption) (rules.DecisionOption, bool) {
	if len(options) == 0 {
		return rules.DecisionOption{}, false
	}
	return options[0], true
}

func testConfig(rs []rules.Rule) *Config {
	cfg := DefaultConfig()
	cfg.Rules = &rules.Config{Rules: rs}
	return cfg
}

func readyEnvelope(context string) string {
	return "[WORKFLOW_STATUS]\nstatus: READY\ncontext: " + context + "\n[/WORKFLOW_STATUS]"
}

func failedEnvelope(context string) string {
	return "[WORKFLOW_STATUS]\nstatus: FAILED\ncontext: " + context + "\n[/WORKFLOW_STATUS]"
}

func blockedEnvelope(context string) string {
	return "[WORKFLOW_STATUS]\nstatus: BLOCKED\ncontext: " + context + "\n[/WORKFLOW_STATUS]"
}

// TestDriverRunHappyPath drives a two-agent workflow (task-manager ->
// code-writer) through to completion.
func TestDriverRunHappyPath(t *testing.T) {
	rs := []rules.Rule{
		{
			ID:      "start",
			Trigger: rules.Trigger{Type: rules.TriggerStart},
			Action:  rules.Action{Type: rules.ActionDispatch, Agent: "task-manager", PromptTemplate: "{context}"},
		},
		{
			ID:      "dispatch-writer",
			Trigger: rules.Trigger{Agent: "task-manager", Status: "READY"},
			Action:  rules.Action{Type: rules.ActionDispatch, Agent: "code-writer", PromptTemplate: "write: {context}"},
		},
		{
			ID:      "finish",
			Trigger: rules.Trigger{Agent: "code-writer", Status: "READY"},
			Action:  rules.Action{Type: rules.ActionComplete, Message: "all done"},
		},
	}
	backend := &scriptedBackend{outputs: []string{
		readyEnvelope("plan ready"),
		readyEnvelope("code written"),
	}}
	sink := &scriptedSink{}

	d := New(testConfig(rs), t.TempDir(),
		WithBackend(backend),
		WithStore(memory.NewFileStore(t.TempDir())),
		WithUISink(sink),
	)

	err := d.Run(context.Background(), "build the thing")
	if err != nil {
		t.Fatalf("expected a successful run, got %v", err)
	}
	if len(sink.completed) != 1 || sink.completed[0] != "all done" {
		t.Fatalf("expected exactly one completion message, got %v", sink.completed)
	}
	if backend.calls != 2 {
		t.Fatalf("expected exactly 2 agent invocations, got %d", backend.calls)
	}
}

// TestDriverRunFailedShortCircuits checks that a FAILED status ends the
// run immediately, without any further rule matching or agent calls.
func TestDriverRunFailedShortCircuits(t *testing.T) {
	rs := []rules.Rule{
		{
			ID:      "start",
			Trigger: rules.Trigger{Type: rules.TriggerStart},
			Action:  rules.Action{Type: rules.ActionDispatch, Agent: "task-manager", PromptTemplate: "{context}"},
		},
		{
			ID:      "dispatch-writer",
			Trigger: rules.Trigger{Agent: "task-manager", Status: "READY"},
			Action:  rules.Action{Type: rules.ActionDispatch, Agent: "code-writer", PromptTemplate: "write: {context}"},
		},
	}
	backend := &scriptedBackend{outputs: []string{
		failedEnvelope("could not parse the task"),
	}}
	sink := &scriptedSink{}

	d := New(testConfig(rs), t.TempDir(),
		WithBackend(backend),
		WithStore(memory.NewFileStore(t.TempDir())),
		WithUISink(sink),
	)

	err := d.Run(context.Background(), "build the thing")
	if err != ErrFailed {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("expected the run to stop after exactly 1 agent invocation, got %d", backend.calls)
	}
	if len(sink.errors) == 0 {
		t.Fatal("expected the sink to have been told about the failure")
	}
}

// TestDriverRunLoopDetectionPromptsAndCanDecline verifies that six
// alternating BLOCKED records trigger the loop-confirmation prompt, and
// that declining it ends the run in failure.
func TestDriverRunLoopDetectionPromptsAndCanDecline(t *testing.T) {
	rs := []rules.Rule{
		{
			ID:      "start",
			Trigger: rules.Trigger{Type: rules.TriggerStart},
			Action:  rules.Action{Type: rules.ActionDispatch, Agent: "architect", PromptTemplate: "{context}"},
		},
		{
			ID:      "bounce-to-designer",
			Trigger: rules.Trigger{Agent: "architect", Status: "BLOCKED"},
			Action:  rules.Action{Type: rules.ActionDispatch, Agent: "designer", PromptTemplate: "{context}"},
		},
		{
			ID:      "bounce-to-architect",
			Trigger: rules.Trigger{Agent: "designer", Status: "BLOCKED"},
			Action:  rules.Action{Type: rules.ActionDispatch, Agent: "architect", PromptTemplate: "{context}"},
		},
	}
	// architect, designer, architect, designer, architect, designer: an
	// A-B-A-B tail once six records have accumulated.
	backend := &scriptedBackend{outputs: []string{
		blockedEnvelope("waiting on designer"),
		blockedEnvelope("waiting on architect"),
		blockedEnvelope("waiting on designer"),
		blockedEnvelope("waiting on architect"),
		blockedEnvelope("waiting on designer"),
		blockedEnvelope("waiting on architect"),
	}}
	sink := &scriptedSink{continueAnswer: false}

	d := New(testConfig(rs), t.TempDir(),
		WithBackend(backend),
		WithStore(memory.NewFileStore(t.TempDir())),
		WithUISink(sink),
	)

	err := d.Run(context.Background(), "design the thing")
	if err != ErrFailed {
		t.Fatalf("expected ErrFailed once the loop confirmation is declined, got %v", err)
	}
	// The loop check fires before the 7th invocation, so exactly 6 agent
	// calls should have been made.
	if backend.calls != 6 {
		t.Fatalf("expected the loop check to stop the run after 6 invocations, got %d", backend.calls)
	}
}

// initFixtureRepo creates a throwaway git repository with one commit on
// "main", returning its path.
func initFixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	if head.Name().Short() != "main" {
		if err := exec.Command("git", "-C", dir, "branch", "-m", head.Name().Short(), "main").Run(); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// TestDriverRunTaskListParallelizesDisjointTasks exercises the Dependency
// Graph + Parallel Executor entry point end to end: two tasks in separate
// phases, inferred to different agents touching different files, should
// run concurrently and both succeed.
func TestDriverRunTaskListParallelizesDisjointTasks(t *testing.T) {
	projectDir := initFixtureRepo(t)
	backend := &scriptedBackend{outputs: []string{
		readyEnvelope("wrote main.go"),
		readyEnvelope("wrote helper.py"),
	}}

	d := New(testConfig(nil), projectDir,
		WithBackend(backend),
		WithStore(memory.NewFileStore(t.TempDir())),
		WithUISink(&scriptedSink{}),
	)

	doc := "- [backend] t1: write main.go\n" +
		"- [frontend] t2: design helper.py\n"

	result, err := d.RunTaskList(context.Background(), doc, "change-1", "main")
	if err != nil {
		t.Fatalf("RunTaskList() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("expected 1 parallel group (disjoint files, no dependency), got %d", len(result.Groups))
	}
	if len(result.Groups[0].AgentResults) != 2 {
		t.Fatalf("expected 2 agent results, got %d", len(result.Groups[0].AgentResults))
	}
	if backend.calls != 2 {
		t.Fatalf("expected 2 agent invocations, got %d", backend.calls)
	}
}

// TestDriverRunNoInitialRule checks the startup-error path.
func TestDriverRunNoInitialRule(t *testing.T) {
	d := New(testConfig(nil), t.TempDir(),
		WithStore(memory.NewFileStore(t.TempDir())),
		WithUISink(&scriptedSink{}),
	)

	err := d.Run(context.Background(), "anything")
	if err != ErrNoInitialRule {
		t.Fatalf("expected ErrNoInitialRule, got %v", err)
	}
}
