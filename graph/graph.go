package graph

import (
	"context"
	"sort"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

// DependencyGraph is the mapping id → TaskNode plus id → parent ids. It
// is built once by Parse and then queried/partitioned by GetParallelGroups;
// nothing mutates the parent-id mapping after construction.
type DependencyGraph struct {
	nodes   map[string]*TaskNode
	order   []string // insertion order, for deterministic iteration
	parents map[string][]string

	observer observability.Observer
}

// New constructs an empty DependencyGraph. A nil observer is replaced
// with observability.NoOpObserver{}.
func New(observer observability.Observer) *DependencyGraph {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &DependencyGraph{
		nodes:    make(map[string]*TaskNode),
		parents:  make(map[string][]string),
		observer: observer,
	}
}

// AddNode inserts a task, preserving insertion order for deterministic
// grouping. Its DependsOn list becomes the parent-id mapping.
func (g *DependencyGraph) AddNode(node *TaskNode) {
	if _, exists := g.nodes[node.ID]; !exists {
		g.order = append(g.order, node.ID)
	}
	g.nodes[node.ID] = node
	g.parents[node.ID] = node.DependsOn
}

// Node retrieves a task by id.
func (g *DependencyGraph) Node(id string) (*TaskNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all tasks in insertion order.
func (g *DependencyGraph) Nodes() []*TaskNode {
	out := make([]*TaskNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

func (g *DependencyGraph) dependenciesSatisfied(id string) bool {
	for _, parent := range g.parents[id] {
		parentNode, ok := g.nodes[parent]
		if !ok {
			continue // dangling reference: treat as satisfied, nothing to wait on
		}
		if parentNode.Status != StatusCompleted && parentNode.Status != StatusSkipped {
			return false
		}
	}
	return true
}

// GetReadyTasks returns pending tasks whose dependencies are all
// completed (or skipped), in insertion order.
func (g *DependencyGraph) GetReadyTasks() []*TaskNode {
	var ready []*TaskNode
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Status == StatusPending && g.dependenciesSatisfied(id) {
			ready = append(ready, n)
		}
	}
	return ready
}

// GetParallelGroups partitions the graph into a sequence of maximal
// antichains whose member file-sets are pairwise disjoint, in dependency
// order. Marks tasks StatusCompleted as they're assigned to a group — this
// is planning-time bookkeeping only, the Parallel Executor overwrites each
// status with StatusCompleted, StatusFailed or StatusSkipped as it actually
// executes the groups.
func (g *DependencyGraph) GetParallelGroups(ctx context.Context) ([][]*TaskNode, error) {
	var groups [][]*TaskNode
	pending := len(g.order)

	for pending > 0 {
		ready := g.GetReadyTasks()
		if len(ready) == 0 {
			remaining := make([]string, 0)
			for _, id := range g.order {
				if g.nodes[id].Status == StatusPending {
					remaining = append(remaining, id)
				}
			}
			g.observer.OnEvent(ctx, observability.Event{
				Type: EventCycle, Level: observability.LevelError, Timestamp: time.Now(), Source: "graph",
				Data: map[string]any{"remaining": remaining},
			})
			return nil, &CycleError{Remaining: remaining}
		}

		group := partitionByDisjointFiles(ready)

		for _, n := range group {
			n.Status = StatusCompleted
			pending--
		}
		groups = append(groups, group)

		g.observer.OnEvent(ctx, observability.Event{
			Type: EventGroupEmitted, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "graph",
			Data: map[string]any{"group_size": len(group), "group_index": len(groups) - 1},
		})
	}

	return groups, nil
}

// partitionByDisjointFiles greedily builds one group from ready, in
// insertion order: take the first task, then extend with any later task
// whose file-set is disjoint from the union accumulated so far. Tasks
// excluded due to overlap are left for the next grouping iteration.
func partitionByDisjointFiles(ready []*TaskNode) []*TaskNode {
	group := make([]*TaskNode, 0, len(ready))
	union := make(map[string]bool)

	for _, task := range ready {
		if disjoint(task.Files, union) {
			group = append(group, task)
			for f := range task.Files {
				union[f] = true
			}
		}
	}
	return group
}

// DetectFileConflicts enumerates all pairwise file overlaps among tasks,
// for diagnostics. Returns a map from overlapping file name to the task
// IDs that both reference it.
func DetectFileConflicts(tasks []*TaskNode) map[string][]string {
	conflicts := make(map[string][]string)
	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			for f := range tasks[i].Files {
				if tasks[j].Files[f] {
					conflicts[f] = append(conflicts[f], tasks[i].ID, tasks[j].ID)
				}
			}
		}
	}
	return conflicts
}

// TopologicalSort returns the graph's tasks ordered so every task follows
// all of its dependencies (Kahn's algorithm), or a CycleError if the
// graph is not acyclic.
func (g *DependencyGraph) TopologicalSort() ([]*TaskNode, error) {
	inDegree := make(map[string]int, len(g.order))
	children := make(map[string][]string, len(g.order))

	for _, id := range g.order {
		inDegree[id] = 0
	}
	for _, id := range g.order {
		for _, parent := range g.parents[id] {
			if _, ok := g.nodes[parent]; !ok {
				continue
			}
			inDegree[id]++
			children[parent] = append(children[parent], id)
		}
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var sorted []*TaskNode
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, g.nodes[id])

		next := children[id]
		sort.Strings(next)
		for _, child := range next {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(sorted) != len(g.order) {
		var remaining []string
		for _, id := range g.order {
			if inDegree[id] > 0 {
				remaining = append(remaining, id)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}

	return sorted, nil
}
