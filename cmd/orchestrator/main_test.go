package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveProjectDirExplicitFlagWins(t *testing.T) {
	dir := t.TempDir()
	got, err := resolveProjectDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}
}

func TestResolveProjectDirPrefersCwdThenParent(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "child")
	if err := os.MkdirAll(filepath.Join(root, ".claude"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origWd)

	if err := os.Chdir(child); err != nil {
		t.Fatal(err)
	}
	got, err := resolveProjectDir("")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Fatalf("expected parent-with-.claude %q, got %q", want, gotResolved)
	}
}

func TestResolveProjectDirFallsBackToCwd(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "child")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origWd)

	if err := os.Chdir(child); err != nil {
		t.Fatal(err)
	}
	got, err := resolveProjectDir("")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.EvalSymlinks(child)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Fatalf("expected cwd fallback %q, got %q", want, gotResolved)
	}
}

func TestResolvePromptUsesPositionalArgs(t *testing.T) {
	got, err := resolvePrompt([]string{"new", "task", "-", "user", "service"})
	if err != nil {
		t.Fatal(err)
	}
	want := "new task - user service"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
