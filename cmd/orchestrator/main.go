// Command orchestrator runs the Sequential Driver loop (§4.5) against a
// workflow configuration document, either in mock mode or against a real
// agent backend registered via orchestrator.WithBackend.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailored-agentic-units/orchestrator"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		mock       = flag.Bool("mock", false, "Use the mock runner instead of a real agent backend")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
		configFlag = flag.String("config", "", "Path to workflow.json (default: <project-dir>/.claude/workflow.json)")
		projectDir = flag.String("project-dir", "", "Project directory (default: cwd, or its parent, if .claude is found there)")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: orchestrator [flags] [task description]")
		fmt.Fprintln(os.Stderr, "\nExamples:")
		fmt.Fprintln(os.Stderr, `  orchestrator "new task - user service"`)
		fmt.Fprintln(os.Stderr, `  orchestrator --mock "test task"`)
		fmt.Fprintln(os.Stderr, `  orchestrator --verbose --mock "test"`)
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	dir, err := resolveProjectDir(*projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = filepath.Join(dir, ".claude", "workflow.json")
	}

	prompt, err := resolvePrompt(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	// Orchestrator.New builds its default observer around slog.Default(),
	// so setting the process-wide default here (rather than constructing
	// and passing an observer via WithObserver) lets --verbose take effect
	// without displacing the Driver's hub-backed default observer.
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := orchestrator.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	// This build ships no real agent backend (the contract treats it as an
	// opaque agent x prompt -> text function supplied by the embedder via
	// orchestrator.WithBackend); running without --mock and without one
	// registered falls back to mock mode, matching the original tool's
	// behavior when its SDK dependency isn't installed.
	useMock := *mock
	if !useMock {
		fmt.Fprintln(os.Stderr, "[!] no real agent backend registered. Falling back to mock mode.")
		useMock = true
	}

	driver := orchestrator.New(cfg, dir, orchestrator.WithMock(useMock))
	if h := driver.Hub(); h != nil {
		defer h.Shutdown(5 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := driver.Run(ctx, prompt)
	switch {
	case runErr == nil:
		return 0
	case errors.Is(runErr, orchestrator.ErrFailed):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		return 1
	}
}

// resolveProjectDir mirrors the original tool's auto-discovery: an
// explicit flag wins outright; otherwise prefer the current directory if
// it contains .claude, then its parent, falling back to the current
// directory itself.
func resolveProjectDir(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}

	if dotClaudeExists(cwd) {
		return cwd, nil
	}
	parent := filepath.Dir(cwd)
	if dotClaudeExists(parent) {
		return parent, nil
	}
	return cwd, nil
}

func dotClaudeExists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".claude"))
	return err == nil && info.IsDir()
}

// resolvePrompt returns the positional task description, prompting on
// stdin when none was given on the command line.
func resolvePrompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	fmt.Print("Task description: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no task description provided")
	}
	prompt := strings.TrimSpace(line)
	if prompt == "" {
		return "", fmt.Errorf("no task description provided")
	}
	return prompt, nil
}
