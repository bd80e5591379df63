package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailored-agentic-units/orchestrator/execstate"
	"github.com/tailored-agentic-units/orchestrator/graph"
	"github.com/tailored-agentic-units/orchestrator/hub"
	"github.com/tailored-agentic-units/orchestrator/parallel"
	"github.com/tailored-agentic-units/orchestrator/protocol"
	"github.com/tailored-agentic-units/orchestrator/rules"
	"github.com/tailored-agentic-units/orchestrator/runner"
	"github.com/tailored-agentic-units/orchestrator/workspace"
)

// defaultAvailableAgents is the fallback agent roster offered by the
// fallback/decision UI when the workflow document does not declare one.
var defaultAvailableAgents = []string{
	"task-manager",
	"architect",
	"designer",
	"code-writer",
	"code-editor",
	"code-reviewer",
	"tester",
	"devops",
}

// Config aggregates every subsystem's configuration, following the
// module-wide Default*Config()/Merge()/LoadConfig() convention. It mirrors
// the JSON document's "workflow" object (§6): each top-level key maps onto
// one subsystem's own Config type rather than being duplicated here.
type Config struct {
	Protocol  *protocol.Config
	Rules     *rules.Config
	Execstate *execstate.Config
	Runner    *runner.Config
	Inference *graph.InferenceConfig
	Chains    *graph.ChainConfig
	Workspace *workspace.Config
	Parallel  *parallel.Config
	Hub       *hub.Config

	// Triggers maps an agent name to its pre-prompt hook keywords. The
	// orchestrator's own contract does not consume this — it is carried
	// through purely for compatibility with the external pre-prompt hook
	// the workflow document also feeds (§6).
	Triggers map[string][]string

	// AvailableAgents is the roster offered by the fallback and decision
	// UI sinks when no rule provides an explicit choice.
	AvailableAgents []string
}

// DefaultConfig returns a Config with every subsystem at its own defaults.
func DefaultConfig() *Config {
	return &Config{
		Protocol:        protocol.DefaultConfig(),
		Rules:           rules.DefaultConfig(),
		Execstate:       execstate.DefaultConfig(),
		Runner:          runner.DefaultConfig(),
		Inference:       graph.DefaultInferenceConfig(),
		Chains:          graph.DefaultChainConfig(),
		Workspace:       workspace.DefaultConfig(),
		Parallel:        parallel.DefaultConfig(),
		Hub:             hub.DefaultConfig(),
		AvailableAgents: append([]string(nil), defaultAvailableAgents...),
	}
}

// Merge overlays source's non-zero subsystem configs onto c, delegating to
// each subsystem's own Merge.
func (c *Config) Merge(source *Config) *Config {
	if source == nil {
		return c
	}
	if source.Protocol != nil {
		c.Protocol.Merge(source.Protocol)
	}
	if source.Rules != nil {
		c.Rules.Merge(source.Rules)
	}
	if source.Execstate != nil {
		c.Execstate.Merge(source.Execstate)
	}
	if source.Runner != nil {
		c.Runner.Merge(source.Runner)
	}
	if source.Inference != nil {
		c.Inference.Merge(source.Inference)
	}
	if source.Chains != nil {
		c.Chains.Merge(source.Chains)
	}
	if source.Workspace != nil {
		c.Workspace.Merge(source.Workspace)
	}
	if source.Parallel != nil {
		c.Parallel.Merge(source.Parallel)
	}
	if source.Hub != nil {
		c.Hub.Merge(source.Hub)
	}
	if len(source.Triggers) > 0 {
		c.Triggers = source.Triggers
	}
	if len(source.AvailableAgents) > 0 {
		c.AvailableAgents = source.AvailableAgents
	}
	return c
}

// wireDocument is the JSON shape of the workflow configuration document
// (§6), decoded into the subsystem Config types the rest of the module
// already understands. A field absent from the document decodes to that
// subsystem's zero value and is simply not merged.
type wireDocument struct {
	Workflow *wireConfig `json:"workflow"`
}

type wireConfig struct {
	Protocol        *protocol.Config    `json:"protocol"`
	Rules           []rules.Rule        `json:"rules"`
	Triggers        map[string][]string `json:"triggers"`
	PromptInjection *struct {
		Enabled bool `json:"enabled"`
	} `json:"prompt_injection"`
	Limits *struct {
		MaxWorkflowIterations int `json:"max_workflow_iterations"`
		AgentTimeoutSeconds   int `json:"agent_timeout_seconds"`
	} `json:"limits"`
	Parallel *struct {
		MaxConcurrentAgents   int        `json:"max_concurrent_agents"`
		WorktreeDir           string     `json:"worktree_dir"`
		ParallelCapableAgents []string   `json:"parallel_capable_agents"`
		AlwaysSequential      [][]string `json:"always_sequential"`
	} `json:"parallel"`
	AvailableAgents []string `json:"available_agents"`
}

func (w *wireConfig) toConfig() *Config {
	cfg := &Config{
		Protocol:        w.Protocol,
		Triggers:        w.Triggers,
		AvailableAgents: w.AvailableAgents,
	}
	if len(w.Rules) > 0 {
		cfg.Rules = &rules.Config{Rules: w.Rules}
	}
	if w.PromptInjection != nil {
		if cfg.Protocol == nil {
			cfg.Protocol = &protocol.Config{}
		}
		cfg.Protocol.InjectionEnabled = w.PromptInjection.Enabled
	} else if cfg.Protocol != nil {
		cfg.Protocol.InjectionEnabled = true
	}
	if w.Limits != nil {
		cfg.Execstate = &execstate.Config{MaxWorkflowIterations: w.Limits.MaxWorkflowIterations}
		cfg.Runner = &runner.Config{AgentTimeoutSeconds: w.Limits.AgentTimeoutSeconds}
	}
	if w.Parallel != nil {
		cfg.Parallel = &parallel.Config{MaxConcurrentAgents: w.Parallel.MaxConcurrentAgents}
		cfg.Workspace = &workspace.Config{WorktreeDir: w.Parallel.WorktreeDir}
	}
	return cfg
}

// LoadConfig reads the workflow JSON document at filename, merges it onto
// the module defaults, and validates the resulting rule table. The
// document may wrap its content in a top-level "workflow" key or omit the
// wrapper entirely — both are accepted, matching the original tool's own
// tolerance for either shape.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read config file: %w", err)
	}

	var doc wireDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("orchestrator: parse config file: %w", err)
	}

	wire := doc.Workflow
	if wire == nil {
		wire = &wireConfig{}
		if err := json.Unmarshal(data, wire); err != nil {
			return nil, fmt.Errorf("orchestrator: parse config file: %w", err)
		}
	}

	cfg.Merge(wire.toConfig())

	if err := rules.Validate(cfg.Rules, cfg.Protocol.ValidStatuses); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid rule table: %w", err)
	}
	return cfg, nil
}
