package graph

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

// taskLineRe matches a task-list line of the form:
//
//	- [phase-name] short-id: free text description
var taskLineRe = regexp.MustCompile(`^\s*-\s*\[([\w-]+)\]\s*([\w-]+):\s*(.+)$`)

// Parser builds a DependencyGraph from a task-list document, inferring
// agent assignment and expected-output files from each task's free-text
// description, then wiring explicit phase ordering and the fixed
// agent-chain table.
type Parser struct {
	inference *InferenceConfig
	chains    *ChainConfig
	compiled  []*regexp.Regexp
	observer  observability.Observer
}

// NewParser compiles the inference config's file-name patterns once.
func NewParser(inference *InferenceConfig, chains *ChainConfig, observer observability.Observer) *Parser {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	compiled := make([]*regexp.Regexp, 0, len(inference.FileNamePatterns))
	for _, p := range inference.FileNamePatterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return &Parser{inference: inference, chains: chains, compiled: compiled, observer: observer}
}

// Parse reads a task-list document and returns a fully-wired
// DependencyGraph: explicit phase ordering (each task depends on the
// previous task declared within its phase) plus inferred agent-chain
// edges from ChainConfig.
func (p *Parser) Parse(ctx context.Context, document string) (*DependencyGraph, error) {
	g := New(p.observer)

	lastInPhase := make(map[string]string)
	lastIndexByAgent := make(map[string][]string) // agent -> task IDs in declared order, for chain wiring

	scanner := bufio.NewScanner(strings.NewReader(document))
	for scanner.Scan() {
		line := scanner.Text()
		m := taskLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		phase, shortID, desc := m[1], m[2], strings.TrimSpace(m[3])
		id := fmt.Sprintf("%s/%s", phase, shortID)

		agent := p.InferAgent(desc)
		files := p.InferFiles(desc)

		var dependsOn []string
		if prev, ok := lastInPhase[phase]; ok {
			dependsOn = append(dependsOn, prev)
		}

		node := &TaskNode{
			ID:        id,
			Agent:     agent,
			Prompt:    desc,
			Files:     files,
			DependsOn: dependsOn,
			Status:    StatusPending,
		}
		g.AddNode(node)
		lastInPhase[phase] = id
		lastIndexByAgent[agent] = append(lastIndexByAgent[agent], id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("graph: parse task list: %w", err)
	}

	p.wireChains(g, lastIndexByAgent)

	p.observer.OnEvent(ctx, observability.Event{
		Type: EventParsed, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "graph",
		Data: map[string]any{"task_count": len(g.order)},
	})
	return g, nil
}

// wireChains adds an explicit dependency from the Nth task of edge.From
// to the Nth task of edge.To, for each configured chain edge, matching
// tasks up by their declaration-order index within their agent.
func (p *Parser) wireChains(g *DependencyGraph, byAgent map[string][]string) {
	for _, edge := range p.chains.Edges {
		froms := byAgent[edge.From]
		tos := byAgent[edge.To]
		n := len(froms)
		if len(tos) < n {
			n = len(tos)
		}
		for i := 0; i < n; i++ {
			toNode := g.nodes[tos[i]]
			toNode.DependsOn = append(toNode.DependsOn, froms[i])
			g.parents[tos[i]] = toNode.DependsOn
		}
	}
}

// InferAgent maps a task description to an agent via the configured
// keyword table, falling back to InferenceConfig.DefaultAgent. The first
// keyword found (by table iteration) wins; ties are resolved by map
// iteration, which is why callers wanting determinism should prefer
// distinct keywords per agent.
func (p *Parser) InferAgent(description string) string {
	lower := strings.ToLower(description)
	for keyword, agent := range p.inference.AgentKeywords {
		if strings.Contains(lower, keyword) {
			return agent
		}
	}
	return p.inference.DefaultAgent
}

// InferFiles extracts file-name-like tokens from a task description using
// the configured regex set, approximating the task's write set.
func (p *Parser) InferFiles(description string) map[string]bool {
	files := make(map[string]bool)
	for _, re := range p.compiled {
		for _, match := range re.FindAllString(description, -1) {
			files[match] = true
		}
	}
	return files
}
