// Package orchestrator implements the Sequential Driver: the main loop
// that composes the Status Protocol, Rule Engine, and Execution State into
// parse → record → match → dispatch, deferring to a UI sink whenever the
// rule table alone cannot decide the next step. It also wires the
// Dependency Graph, Workspace Manager, and Parallel Executor behind a
// second, independent entry point for task-list-driven parallel fan-out —
// the two execution modes share configuration and an observer but never
// call into each other, matching the separation in the tool this module
// is modeled on.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/orchestrator/execstate"
	"github.com/tailored-agentic-units/orchestrator/graph"
	"github.com/tailored-agentic-units/orchestrator/hub"
	"github.com/tailored-agentic-units/orchestrator/memory"
	"github.com/tailored-agentic-units/orchestrator/messaging"
	"github.com/tailored-agentic-units/orchestrator/observability"
	"github.com/tailored-agentic-units/orchestrator/parallel"
	"github.com/tailored-agentic-units/orchestrator/protocol"
	"github.com/tailored-agentic-units/orchestrator/rules"
	"github.com/tailored-agentic-units/orchestrator/runner"
	"github.com/tailored-agentic-units/orchestrator/workspace"
)

const (
	defaultInitialAgent = "task-manager"
	resumeFileName      = "session-state.json"
)

// Option configures a Driver after config-driven initialization, matching
// the teacher's functional-option convention for post-New overrides.
type Option func(*Driver)

// WithBackend registers a real Runner backend under the name "real" and,
// unless WithMock(true) is also given, makes it the active runner. A nil
// backend (the default) leaves only the mock runner registered. The
// backend is wired into a RealRunner after every Option has applied, so
// it always shares the Driver's final observer regardless of Option order.
func WithBackend(backend runner.Backend) Option {
	return func(d *Driver) {
		d.pendingBackend = backend
	}
}

// WithMock forces the mock runner to be used regardless of WithBackend.
func WithMock(mock bool) Option {
	return func(d *Driver) { d.mock = mock }
}

// WithObserver replaces the default observer (a slog observer paired with
// the Driver's hub); Hub then returns nil.
func WithObserver(o observability.Observer) Option {
	return func(d *Driver) {
		if o == nil {
			return
		}
		d.observer = o
	}
}

// WithUISink overrides the default ConsoleSink.
func WithUISink(sink UISink) Option {
	return func(d *Driver) {
		if sink == nil {
			return
		}
		d.sink = sink
	}
}

// WithStore overrides the default on-disk log store (rooted at
// <project-dir>/.claude).
func WithStore(store memory.Store) Option {
	return func(d *Driver) {
		if store == nil {
			return
		}
		d.store = store
	}
}

// Driver owns one workflow run's Sequential Driver loop plus the
// Dependency Graph / Workspace Manager / Parallel Executor trio used by
// its task-list entry point, RunTaskList.
type Driver struct {
	cfg            *Config
	projectDir     string
	mock           bool
	hasBackend     bool
	pendingBackend runner.Backend
	runID          string

	parser   *protocol.Parser
	injector *protocol.Injector
	engine   *rules.Engine
	registry *runner.Registry
	observer observability.Observer
	sink     UISink
	store    memory.Store
	hub      *hub.Hub

	manager     *workspace.Manager
	executor    *parallel.Executor
	graphParser *graph.Parser
}

// Hub returns the Driver's event broadcaster. Every event Run/RunTaskList
// emit through the Driver's default observer reaches it; callers can
// Subscribe additional listeners (a second UI renderer, a metrics
// exporter) without replacing the Driver's observer wholesale. Nil if the
// Driver was built with WithObserver, since that replaces the hub-backed
// default entirely.
func (d *Driver) Hub() *hub.Hub {
	return d.hub
}

// New constructs a Driver from a validated Config. projectDir anchors the
// resume-file presence check, the execution log, and the worktree
// directory. Callers must run rules.Validate (LoadConfig already does)
// before passing cfg — New does not re-validate.
func New(cfg *Config, projectDir string, opts ...Option) *Driver {
	eventHub := hub.New(context.Background(), cfg.Hub)
	observer := observability.Observer(observability.NewMultiObserver(
		observability.NewSlogObserver(slog.Default()), eventHub,
	))

	registry := runner.NewRegistry()
	registry.Register("mock", runner.NewMockRunner(cfg.Protocol.StatusBlockMarker, observer))

	manager := workspace.NewManager(projectDir, cfg.Workspace, observer)

	d := &Driver{
		cfg:         cfg,
		projectDir:  projectDir,
		runID:       uuid.New().String()[:8],
		parser:      protocol.NewParser(cfg.Protocol, observer),
		injector:    protocol.NewInjector(cfg.Protocol, observer),
		engine:      rules.New(cfg.Rules, observer),
		registry:    registry,
		observer:    observer,
		sink:        NewConsoleSink(os.Stdin, os.Stdout),
		store:       memory.NewFileStore(filepath.Join(projectDir, ".claude")),
		hub:         eventHub,
		manager:     manager,
		graphParser: graph.NewParser(cfg.Inference, cfg.Chains, observer),
	}

	for _, opt := range opts {
		opt(d)
	}

	// WithObserver replaces the hub-backed default outright: the hub this
	// Driver built is no longer on the event path, so Hub() reports none
	// rather than one silently receiving nothing.
	if d.observer != observer {
		d.hub = nil
	}

	// Options may have replaced the observer; rebuild anything that
	// captured it at construction time so every component shares one
	// observer instance.
	d.parser = protocol.NewParser(cfg.Protocol, d.observer)
	d.injector = protocol.NewInjector(cfg.Protocol, d.observer)
	d.engine = rules.New(cfg.Rules, d.observer)
	d.manager = workspace.NewManager(projectDir, cfg.Workspace, d.observer)
	d.graphParser = graph.NewParser(cfg.Inference, cfg.Chains, d.observer)

	if d.pendingBackend != nil {
		d.registry.Replace("real", runner.NewRealRunner(d.pendingBackend, cfg.Runner, cfg.Protocol.StatusBlockMarker, d.observer))
		d.hasBackend = true
	}

	activeRunner, _ := d.activeRunner()
	d.executor = parallel.NewExecutor(cfg.Parallel, activeRunner, d.manager, d.observer)

	return d
}

func (d *Driver) activeRunner() (runner.Runner, string) {
	if !d.mock && d.hasBackend {
		if r, ok := d.registry.Get("real"); ok {
			return r, "real"
		}
	}
	r, _ := d.registry.Get("mock")
	return r, "mock"
}

func (d *Driver) resumeFileExists() bool {
	_, err := os.Stat(filepath.Join(d.projectDir, ".claude", resumeFileName))
	return err == nil
}

// Run executes the Sequential Driver loop (§4.5) for initialPrompt. It
// returns nil when the workflow reaches a "complete" action, ErrFailed
// when it ends in failure (agent FAILED, retries exhausted, a loop/limit
// confirmation declined, or a fallback/decision prompt cancelled), and a
// non-nil non-ErrFailed error only for a startup condition (no initial
// rule matched). The execution log is saved on every path except the
// startup error.
func (d *Driver) Run(ctx context.Context, initialPrompt string) error {
	activeRunner, runnerName := d.activeRunner()

	d.sink.Header(fmt.Sprintf("workflow orchestrator (%s mode)", runnerName))
	d.observer.OnEvent(ctx, observability.Event{
		Type: EventRunStart, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "orchestrator",
		Data: map[string]any{"mode": runnerName},
	})

	resumeExists := d.resumeFileExists()
	if resumeExists {
		d.sink.Info("session state detected - checking for restore...")
	}

	initial, err := d.engine.FindInitial(ctx, initialPrompt, resumeExists)
	if err != nil {
		d.sink.Error("no initial rule found in workflow configuration")
		return ErrNoInitialRule
	}

	state := execstate.New(d.cfg.Execstate, d.observer)

	currentAgent := initial.Rule.Action.Agent
	if currentAgent == "" {
		currentAgent = defaultInitialAgent
	}
	currentPrompt := initialPrompt
	currentRuleID := initial.Rule.ID

driverLoop:
	for {
		if state.IsAtLimit() {
			if !d.sink.ConfirmContinue(ctx, "max iterations reached") {
				state.MarkFailed(ctx, "max iterations reached, user declined to continue")
				break driverLoop
			}
		}
		if state.IsInLoop() {
			if !d.sink.ConfirmContinue(ctx, "loop detected") {
				state.MarkFailed(ctx, "loop detected, user declined to continue")
				break driverLoop
			}
		}
		if ctx.Err() != nil {
			state.MarkFailed(ctx, "cancelled: "+ctx.Err().Error())
			break driverLoop
		}

		d.sink.Iteration(state.Iteration()+1, currentAgent, runnerName == "mock")
		d.observer.OnEvent(ctx, observability.Event{
			Type: EventIterationStart, Level: observability.LevelVerbose, Timestamp: time.Now(), Source: "orchestrator",
			Data: map[string]any{"iteration": state.Iteration() + 1, "agent": currentAgent},
		})

		fullPrompt := d.injector.Inject(ctx, currentPrompt)

		dispatch := messaging.NewDispatch(currentAgent, fullPrompt, currentRuleID)
		d.observer.OnEvent(ctx, observability.Event{
			Type: EventDispatch, Level: observability.LevelVerbose, Timestamp: time.Now(), Source: "orchestrator",
			Data: map[string]any{"dispatch_id": dispatch.ID, "agent": dispatch.Agent, "rule_id": dispatch.RuleID},
		})

		start := time.Now()
		output, runErr := activeRunner.Run(ctx, currentAgent, fullPrompt)
		duration := time.Since(start).Seconds()
		if runErr != nil {
			// RealRunner reifies backend faults as a synthetic FAILED
			// envelope (§4.4), but MockRunner returns ctx.Err() when
			// cancelled; any runner error becomes a FAILED envelope here.
			output = fmt.Sprintf("[WORKFLOW_STATUS]\nstatus: FAILED\ncontext: runner error: %s\n[/WORKFLOW_STATUS]", runErr)
		}

		status := d.parser.Parse(ctx, output)
		d.sink.Status(status.Tag, status.Context, string(status.Source))

		if err := state.Record(ctx, execstate.ExecutionRecord{
			Agent: currentAgent, Prompt: currentPrompt, StatusTag: status.Tag,
			Context: status.Context, Source: string(status.Source),
			Timestamp: time.Now(), DurationSeconds: duration, RuleID: currentRuleID,
		}); err != nil {
			break driverLoop
		}

		if status.IsTerminal() {
			d.sink.Error("agent failed: " + status.Context)
			state.MarkFailed(ctx, status.Context)
			break driverLoop
		}

		if status.Tag == protocol.TagUnknown {
			agent, prompt, ok := d.sink.AskFallback(ctx, d.cfg.AvailableAgents)
			if !ok {
				state.MarkFailed(ctx, "cancelled at fallback prompt")
				break driverLoop
			}
			d.emitFallback(ctx, "unrecognized status tag", agent)
			currentAgent, currentPrompt, currentRuleID = agent, prompt, "manual"
			continue driverLoop
		}

		match, matchErr := d.engine.Match(ctx, currentAgent, status)
		if matchErr != nil {
			d.sink.NoMatch()
			agent, prompt, ok := d.sink.AskFallback(ctx, d.cfg.AvailableAgents)
			if !ok {
				state.MarkFailed(ctx, "cancelled at fallback prompt")
				break driverLoop
			}
			d.emitFallback(ctx, "no rule matched", agent)
			currentAgent, currentPrompt, currentRuleID = agent, prompt, "manual"
			continue driverLoop
		}

		d.sink.RuleMatch(match.Rule.ID, match.Rule.Description)

		switch match.Rule.Action.Type {
		case rules.ActionComplete:
			msg := match.Rule.Action.Message
			if msg == "" {
				msg = "workflow complete!"
			}
			d.sink.Complete(msg)
			state.MarkComplete(ctx)
			break driverLoop

		case rules.ActionDecision:
			msg := match.Rule.Action.Message
			if msg == "" {
				msg = "choose next action:"
			}
			choice, ok := d.sink.AskDecision(ctx, msg, match.Rule.Action.Options)
			if !ok {
				state.MarkFailed(ctx, "cancelled at decision prompt")
				break driverLoop
			}
			currentAgent = choice.Agent
			currentPrompt = expandTemplate(match.Rule.Action.PromptTemplate, currentAgent, status)
			currentRuleID = match.Rule.ID + "_decision"

		default: // dispatch
			if match.HasRetry() {
				if !state.CanRetry(match.Rule.ID, match.MaxRetries()) {
					if match.Rule.Retry.OnExhausted == rules.OnExhaustedAskUser {
						d.sink.Error("retry limit reached for rule " + match.Rule.ID)
						agent, prompt, ok := d.sink.AskFallback(ctx, d.cfg.AvailableAgents)
						if !ok {
							state.MarkFailed(ctx, "cancelled after retry exhaustion")
							break driverLoop
						}
						d.emitFallback(ctx, "retry budget exhausted for rule "+match.Rule.ID, agent)
						currentAgent, currentPrompt, currentRuleID = agent, prompt, "manual"
						continue driverLoop
					}
					state.MarkFailed(ctx, "retry budget exhausted for rule "+match.Rule.ID)
					break driverLoop
				}
				state.IncrementRetry(ctx, match.Rule.ID)
			}

			if match.Rule.Action.Agent != "" {
				currentAgent = match.Rule.Action.Agent
			}
			currentPrompt = expandTemplate(match.Rule.Action.PromptTemplate, currentAgent, status)
			currentRuleID = match.Rule.ID
		}
	}

	d.sink.Info(state.Summary())

	if key, err := state.SaveLog(ctx, d.store, d.runID); err != nil {
		d.sink.Error("failed to save execution log: " + err.Error())
	} else {
		d.sink.Info("log saved to: " + key)
	}

	if state.IsComplete() {
		return nil
	}
	return ErrFailed
}

// emitFallback records a UI-driven fallback decision: a point where the
// rule table couldn't choose the next agent and a human picked one.
func (d *Driver) emitFallback(ctx context.Context, reason, chosenAgent string) {
	d.observer.OnEvent(ctx, observability.Event{
		Type: EventFallback, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "orchestrator",
		Data: map[string]any{"reason": reason, "agent": chosenAgent},
	})
}

// expandTemplate substitutes the well-known placeholders into a rule
// action's prompt template, defaulting to a bare {context} passthrough
// when the rule declares none (matching the original tool's default).
func expandTemplate(template, agent string, status protocol.Status) string {
	if template == "" {
		template = "{context}"
	}
	return messaging.NewTemplate(template).
		WithAgent(agent).
		WithContext(status.Context).
		WithNextHint(status.NextHint).
		Build()
}

// RunTaskList parses a task-list document into a DependencyGraph (§4.6)
// and runs it group-by-group under the Parallel Executor (§4.8), isolating
// each task's work in its own Workspace. It shares this Driver's
// configuration and observer but is otherwise independent of Run — no
// rule in the Sequential Driver's table can dispatch into it, matching
// the tool this module generalizes, where the two engines are invoked
// separately rather than chained.
func (d *Driver) RunTaskList(ctx context.Context, document, changeID, base string) (parallel.ExecutionResult, error) {
	g, err := d.graphParser.Parse(ctx, document)
	if err != nil {
		return parallel.ExecutionResult{}, fmt.Errorf("orchestrator: parse task list: %w", err)
	}
	return d.executor.RunDependencyGraph(ctx, g, changeID, base)
}
