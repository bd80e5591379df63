package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/tailored-agentic-units/orchestrator/observability"
)

// Manager owns the set of active Workspaces for one project checkout. Its
// in-memory active table and the on-disk workspace set are kept
// consistent: a successful Create inserts, a successful Delete removes.
type Manager struct {
	mu         sync.Mutex
	projectDir string
	cfg        *Config
	active     map[string]*Workspace // keyed by branch name
	observer   observability.Observer
}

// NewManager constructs a Manager rooted at projectDir, which must already
// be a git repository. A nil observer is replaced with
// observability.NoOpObserver{}.
func NewManager(projectDir string, cfg *Config, observer observability.Observer) *Manager {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Manager{
		projectDir: projectDir,
		cfg:        cfg,
		active:     make(map[string]*Workspace),
		observer:   observer,
	}
}

func branchName(changeID, agent string) string {
	return fmt.Sprintf("parallel/%s/%s", changeID, agent)
}

// Create makes a new branch parallel/<changeID>/<agent> at base and
// checks it out into <project>/<worktreeDir>/<agent>/. Branch naming is
// injective over (changeID, agent): re-creating the same pair first
// deletes the previous workspace.
func (m *Manager) Create(ctx context.Context, agent, changeID, base string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := branchName(changeID, agent)

	if existing, ok := m.active[name]; ok {
		if err := m.deleteLocked(existing, true); err != nil {
			return nil, fmt.Errorf("workspace: replacing existing workspace for %s: %w", name, err)
		}
	}

	if len(m.active) >= m.cfg.MaxWorktrees {
		m.observer.OnEvent(ctx, observability.Event{
			Type: EventCapacity, Level: observability.LevelWarning, Timestamp: time.Now(), Source: "workspace",
			Data: map[string]any{"max": m.cfg.MaxWorktrees},
		})
		return nil, &CapacityError{Max: m.cfg.MaxWorktrees}
	}

	if err := m.ensureWorktreeDirIgnored(); err != nil {
		return nil, fmt.Errorf("workspace: update .gitignore: %w", err)
	}

	targetDir := filepath.Join(m.projectDir, m.cfg.WorktreeDir, agent)
	_ = os.RemoveAll(targetDir)

	cloneOpts := &git.CloneOptions{URL: m.projectDir, SingleBranch: true}
	if base != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(base)
	}
	clonedRepo, err := git.PlainCloneContext(ctx, targetDir, false, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("workspace: clone %s: %w", name, err)
	}

	wt, err := clonedRepo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("workspace: open worktree for %s: %w", name, err)
	}
	head, err := clonedRepo.Head()
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve HEAD for %s: %w", name, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Hash:   head.Hash(),
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	}); err != nil {
		return nil, fmt.Errorf("workspace: checkout branch %s: %w", name, err)
	}

	ws := &Workspace{
		Path:       targetDir,
		BranchName: name,
		Agent:      agent,
		ChangeID:   changeID,
		Status:     StatusActive,
		CreatedAt:  time.Now(),
	}
	m.active[name] = ws

	m.observer.OnEvent(ctx, observability.Event{
		Type: EventCreate, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "workspace",
		Data: map[string]any{"branch": name, "agent": agent, "path": targetDir},
	})
	return ws, nil
}

// Delete removes the checkout for (agent, changeID). A missing workspace
// is success (idempotent). On plain removal failure and force=false,
// retries once with force.
func (m *Manager) Delete(ctx context.Context, agent, changeID string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := branchName(changeID, agent)
	ws, ok := m.active[name]
	if !ok {
		return nil
	}

	if err := m.deleteLocked(ws, force); err != nil {
		return err
	}

	m.observer.OnEvent(ctx, observability.Event{
		Type: EventDelete, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "workspace",
		Data: map[string]any{"branch": name, "agent": agent},
	})
	return nil
}

func (m *Manager) deleteLocked(ws *Workspace, force bool) error {
	err := os.RemoveAll(ws.Path)
	if err != nil && !force {
		// Retry once with force semantics — os.RemoveAll already removes
		// forcefully, so the retry exists to absorb a transient failure
		// (e.g. a file briefly locked by an exiting agent process).
		err = os.RemoveAll(ws.Path)
	}
	if err != nil {
		return fmt.Errorf("workspace: remove %s: %w", ws.Path, err)
	}
	delete(m.active, ws.BranchName)
	return nil
}

// CleanupParallelBranches deletes all active workspaces belonging to
// changeID and returns the count removed.
func (m *Manager) CleanupParallelBranches(ctx context.Context, changeID string) (int, error) {
	m.mu.Lock()
	var toRemove []*Workspace
	for _, ws := range m.active {
		if ws.ChangeID == changeID {
			toRemove = append(toRemove, ws)
		}
	}
	m.mu.Unlock()

	count := 0
	for _, ws := range toRemove {
		if err := m.Delete(ctx, ws.Agent, ws.ChangeID, true); err != nil {
			return count, err
		}
		count++
	}

	m.observer.OnEvent(ctx, observability.Event{
		Type: EventCleanup, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "workspace",
		Data: map[string]any{"change_id": changeID, "count": count},
	})
	return count, nil
}

// CleanupAll force-deletes every active workspace and returns the count
// cleaned.
func (m *Manager) CleanupAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	all := make([]*Workspace, 0, len(m.active))
	for _, ws := range m.active {
		all = append(all, ws)
	}
	m.mu.Unlock()

	count := 0
	for _, ws := range all {
		if err := m.Delete(ctx, ws.Agent, ws.ChangeID, true); err != nil {
			return count, err
		}
		count++
	}

	m.observer.OnEvent(ctx, observability.Event{
		Type: EventCleanup, Level: observability.LevelInfo, Timestamp: time.Now(), Source: "workspace",
		Data: map[string]any{"count": count, "all": true},
	})
	return count, nil
}

// Active returns the workspace registered for (agent, changeID), if any.
func (m *Manager) Active(agent, changeID string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.active[branchName(changeID, agent)]
	return ws, ok
}

func (m *Manager) ensureWorktreeDirIgnored() error {
	path := filepath.Join(m.projectDir, ".gitignore")
	entry := m.cfg.WorktreeDir + "/"

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if containsLine(string(existing), entry) {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "\n%s\n", entry)
	return err
}

func containsLine(content, line string) bool {
	for _, l := range splitLines(content) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
