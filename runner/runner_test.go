package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMockRunnerTaskManagerClosingResponse(t *testing.T) {
	m := NewMockRunner("[WORKFLOW_STATUS]", nil)
	ctx := context.Background()

	first, err := m.Run(ctx, "task-manager", "start")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Run(ctx, "task-manager", "closeout")
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatal("task-manager's second call should differ from its first (closing response)")
	}
	if !strings.Contains(second, "workflow complete") {
		t.Fatalf("expected closing response to mention workflow completion, got %q", second)
	}
	if got := m.CallCount("task-manager"); got != 2 {
		t.Fatalf("CallCount(task-manager) = %d, want 2", got)
	}
	if got := m.CallCount("architect"); got != 0 {
		t.Fatalf("CallCount(architect) = %d, want 0", got)
	}
}

func TestMockRunnerRespectsCancellation(t *testing.T) {
	m := NewMockRunner("[WORKFLOW_STATUS]", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Run(ctx, "architect", "design it")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

type fakeBackend struct {
	output string
	err    error
}

func (f *fakeBackend) Invoke(ctx context.Context, agent, prompt string) (string, error) {
	return f.output, f.err
}

func TestRealRunnerSynthesizesFailureOnBackendError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	r := NewRealRunner(backend, DefaultConfig(), "[WORKFLOW_STATUS]", nil)

	out, err := r.Run(context.Background(), "architect", "design it")
	if err != nil {
		t.Fatalf("RealRunner must never return a Go error, got %v", err)
	}
	if !strings.Contains(out, "status: FAILED") {
		t.Fatalf("expected synthetic FAILED envelope, got %q", out)
	}
}

func TestRealRunnerPassesThroughSuccess(t *testing.T) {
	backend := &fakeBackend{output: "[WORKFLOW_STATUS]\nstatus: READY\ncontext: ok\n"}
	r := NewRealRunner(backend, DefaultConfig(), "[WORKFLOW_STATUS]", nil)

	out, err := r.Run(context.Background(), "architect", "design it")
	if err != nil {
		t.Fatal(err)
	}
	if out != backend.output {
		t.Fatalf("expected backend output passed through unchanged, got %q", out)
	}
}

func TestRegistryRegisterGetList(t *testing.T) {
	reg := NewRegistry()
	mock := NewMockRunner("[WORKFLOW_STATUS]", nil)

	if err := reg.Register("mock", mock); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("mock", mock); err == nil {
		t.Fatal("expected error registering a duplicate name")
	}

	got, ok := reg.Get("mock")
	if !ok || got == nil {
		t.Fatal("expected to retrieve the registered mock runner")
	}

	reg.Replace("mock", mock)
	if names := reg.List(); len(names) != 1 || names[0] != "mock" {
		t.Fatalf("unexpected registry listing: %v", names)
	}
}
