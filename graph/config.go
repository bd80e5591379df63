package graph

// ChainEdge declares a fixed agent-chain dependency: the Nth task assigned
// to From (in declaration order, across all phases) must precede the Nth
// task assigned to To. Chains always run sequentially, never parallelized —
// enforced by the grouping algorithm treating them as ordinary
// dependency edges.
type ChainEdge struct {
	From string
	To   string
}

// ChainConfig is the explicit wiring of agent-chain dependencies into the
// graph builder, resolving spec §9's Open Question ("only partly wired").
type ChainConfig struct {
	Edges []ChainEdge
}

// DefaultChainConfig matches the source's fixed table: code-writer
// precedes code-reviewer, cpp-builder precedes tester.
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{Edges: []ChainEdge{
		{From: "code-writer", To: "code-reviewer"},
		{From: "cpp-builder", To: "tester"},
	}}
}

// Merge overlays source's edge list onto c when source carries one.
func (c *ChainConfig) Merge(source *ChainConfig) *ChainConfig {
	if source == nil {
		return c
	}
	if len(source.Edges) > 0 {
		c.Edges = source.Edges
	}
	return c
}

// InferenceConfig is the data-driven keyword/regex tables used to infer a
// task's agent and expected-output files from its free-text description.
// Kept as configuration, not code, per spec §9 ("rule table vs code").
type InferenceConfig struct {
	// AgentKeywords maps a lowercase keyword to the agent it implies.
	// Multiple languages may contribute keywords to the same agent.
	AgentKeywords map[string]string
	// FileNamePatterns are regexes applied to the task description; each
	// match is added to the task's expected-output file set.
	FileNamePatterns []string
	// DefaultAgent is used when no keyword matches.
	DefaultAgent string
}

// DefaultInferenceConfig mirrors the source's keyword table and file-name
// regex set.
func DefaultInferenceConfig() *InferenceConfig {
	return &InferenceConfig{
		AgentKeywords: map[string]string{
			"design":    "designer",
			"architect": "architect",
			"ui":        "designer",
			"mockup":    "designer",
			"implement": "code-writer",
			"write":     "code-writer",
			"create":    "code-writer",
			"build":     "code-writer",
			"edit":      "code-editor",
			"fix":       "code-editor",
			"update":    "code-editor",
			"refactor":  "code-editor",
			"review":    "code-reviewer",
			"test":      "tester",
			"verify":    "tester",
			"deploy":    "devops",
			"pipeline":  "devops",
		},
		FileNamePatterns: []string{
			`[\w./-]+\.(go|py|js|ts|tsx|jsx|c|cc|cpp|h|hpp|rs|java|rb|md|json|yaml|yml)\b`,
		},
		DefaultAgent: "code-writer",
	}
}

// Merge overlays source's non-zero fields onto c.
func (c *InferenceConfig) Merge(source *InferenceConfig) *InferenceConfig {
	if source == nil {
		return c
	}
	if len(source.AgentKeywords) > 0 {
		c.AgentKeywords = source.AgentKeywords
	}
	if len(source.FileNamePatterns) > 0 {
		c.FileNamePatterns = source.FileNamePatterns
	}
	if source.DefaultAgent != "" {
		c.DefaultAgent = source.DefaultAgent
	}
	return c
}
