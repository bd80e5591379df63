package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tailored-agentic-units/orchestrator/rules"
)

// UISink is the external, out-of-process-capable interaction surface the
// Sequential Driver defers to whenever the rule table alone cannot decide
// what happens next (§6: "UI sink (external), out of scope for
// contracts"). The driver never blocks on anything but this interface and
// the Runner — everything else is pure state transition.
type UISink interface {
	// Header announces the start of a run.
	Header(title string)
	// Iteration announces the start of one loop iteration.
	Iteration(n int, agent string, mock bool)
	// Status reports a freshly parsed Status.
	Status(tag, context, source string)
	// RuleMatch reports a successful rule match.
	RuleMatch(ruleID, description string)
	// NoMatch reports that no rule matched the current (agent, status).
	NoMatch()
	// Info reports a neutral progress message.
	Info(message string)
	// Error reports a problem that does not necessarily end the run.
	Error(message string)
	// Complete announces a successful terminal state.
	Complete(message string)

	// ConfirmContinue asks whether to proceed past a loop/iteration-limit
	// condition. False means "stop and fail".
	ConfirmContinue(ctx context.Context, reason string) bool
	// AskFallback asks the operator to pick an agent and supply an ad-hoc
	// prompt when no rule applies. ok is false if the operator cancelled.
	AskFallback(ctx context.Context, availableAgents []string) (agent, prompt string, ok bool)
	// AskDecision presents a rule's decision options and returns the
	// chosen one. ok is false if the operator cancelled.
	AskDecision(ctx context.Context, message string, options []rules.DecisionOption) (rules.DecisionOption, bool)
}

// ConsoleSink is a plain stdin/stdout UISink, grounded on the original
// tool's terminal UI (prompts for decision/fallback/continue, numbered
// options, "q" to quit) minus its ANSI color handling — this module has
// no terminal-capability detection to decide when colors are safe, so it
// sticks to plain text.
type ConsoleSink struct {
	out io.Writer
	in  *bufio.Reader
}

// NewConsoleSink builds a ConsoleSink reading from in and writing to out.
func NewConsoleSink(in io.Reader, out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out, in: bufio.NewReader(in)}
}

func (c *ConsoleSink) Header(title string) {
	fmt.Fprintf(c.out, "\n=== %s ===\n\n", title)
}

func (c *ConsoleSink) Iteration(n int, agent string, mock bool) {
	mode := ""
	if mock {
		mode = " [MOCK]"
	}
	fmt.Fprintf(c.out, "\n-- iteration %d: %s%s --\n", n, agent, mode)
}

func (c *ConsoleSink) Status(tag, context, source string) {
	fmt.Fprintf(c.out, "  status: %s (via %s)\n", tag, source)
	if context != "" {
		fmt.Fprintf(c.out, "  context: %s\n", truncate(context, 80))
	}
}

func (c *ConsoleSink) RuleMatch(ruleID, description string) {
	fmt.Fprintf(c.out, "  matched rule: %s\n", ruleID)
	if description != "" {
		fmt.Fprintf(c.out, "    %s\n", description)
	}
}

func (c *ConsoleSink) NoMatch() {
	fmt.Fprintln(c.out, "  no matching rule found")
}

func (c *ConsoleSink) Info(message string) {
	fmt.Fprintf(c.out, "  [i] %s\n", message)
}

func (c *ConsoleSink) Error(message string) {
	fmt.Fprintf(c.out, "  [x] error: %s\n", message)
}

func (c *ConsoleSink) Complete(message string) {
	fmt.Fprintf(c.out, "\n=== %s ===\n\n", message)
}

func (c *ConsoleSink) ConfirmContinue(ctx context.Context, reason string) bool {
	fmt.Fprintf(c.out, "\n  limit reached: %s\n  continue anyway? [y/N]: ", reason)
	line, err := c.readLine()
	if err != nil {
		fmt.Fprintln(c.out)
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

func (c *ConsoleSink) AskFallback(ctx context.Context, availableAgents []string) (string, string, bool) {
	fmt.Fprintln(c.out, "\n  no matching rule. choose action:")
	for i, agent := range availableAgents {
		fmt.Fprintf(c.out, "    [%d] run %s\n", i+1, agent)
	}
	fmt.Fprintln(c.out, "    [q] quit workflow")

	for {
		fmt.Fprint(c.out, "  your choice: ")
		line, err := c.readLine()
		if err != nil {
			return "", "", false
		}
		choice := strings.ToLower(strings.TrimSpace(line))
		if choice == "q" {
			return "", "", false
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(availableAgents) {
			fmt.Fprintf(c.out, "  invalid choice: %s\n", choice)
			continue
		}
		agent := availableAgents[idx-1]
		fmt.Fprintf(c.out, "  prompt for %s: ", agent)
		prompt, err := c.readLine()
		if err != nil {
			return "", "", false
		}
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			fmt.Fprintln(c.out, "  prompt cannot be empty")
			continue
		}
		return agent, prompt, true
	}
}

func (c *ConsoleSink) AskDecision(ctx context.Context, message string, options []rules.DecisionOption) (rules.DecisionOption, bool) {
	fmt.Fprintf(c.out, "\n  %s\n", message)
	for i, opt := range options {
		key := opt.Key
		if key == "" {
			key = strconv.Itoa(i + 1)
		}
		fmt.Fprintf(c.out, "    [%s] %s -> %s\n", key, opt.Label, opt.Agent)
	}
	fmt.Fprintln(c.out, "    [q] quit workflow")

	for {
		fmt.Fprint(c.out, "  your choice: ")
		line, err := c.readLine()
		if err != nil {
			return rules.DecisionOption{}, false
		}
		choice := strings.ToLower(strings.TrimSpace(line))
		if choice == "q" {
			return rules.DecisionOption{}, false
		}
		for i, opt := range options {
			key := opt.Key
			if key == "" {
				key = strconv.Itoa(i + 1)
			}
			if strings.ToLower(key) == choice {
				return opt, true
			}
		}
		fmt.Fprintf(c.out, "  invalid choice: %s\n", choice)
	}
}

func (c *ConsoleSink) readLine() (string, error) {
	return c.in.ReadString('\n')
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
