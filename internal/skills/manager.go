package skills

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

// Roots names the three source directories the loader scans, in priority
// order (§2.4: bundled < managed < workspace).
type Roots struct {
	Bundled   string
	Managed   string
	Workspace string
}

// Manager owns skill discovery, collision resolution, resolvability
// gating, and enable/disable overrides. It exposes a copy-on-update
// snapshot so a turn's dispatcher reads a consistent view without locking
// against a concurrent reload (§5's "Tool Registry and Skill Loader expose
// copy-on-update snapshots" rule).
type Manager struct {
	roots Roots
	store storage.SkillStore
	tools ToolResolver
	bins  *BinaryProber

	logger *slog.Logger

	mu      sync.RWMutex
	byName  map[string]*models.Skill
	warning func(skillName, msg string)

	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
}

// NewManager creates a skill Manager. tools and store may be nil in tests
// that only exercise discovery; a nil tools resolver treats every
// required_tools entry as unresolved.
func NewManager(roots Roots, store storage.SkillStore, tools ToolResolver) *Manager {
	return &Manager{
		roots:  roots,
		store:  store,
		tools:  tools,
		bins:   NewBinaryProber(),
		logger: slog.Default().With("component", "skills"),
		byName: make(map[string]*models.Skill),
	}
}

// OnWarning registers a callback invoked for every non-fatal manifest
// warning (unrecognised front-matter key) discovered during a reload.
func (m *Manager) OnWarning(fn func(skillName, msg string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warning = fn
}

func (m *Manager) sources() []Source {
	return []Source{
		NewDirSource(m.roots.Bundled, models.SkillSourceBundled),
		NewDirSource(m.roots.Managed, models.SkillSourceManaged),
		NewDirSource(m.roots.Workspace, models.SkillSourceWorkspace),
	}
}

// Reload rescans every source root, resolves name collisions by priority
// (workspace > managed > bundled, §4.4), runs resolvability gating, applies
// stored enable/disable overrides, and atomically swaps in the new
// snapshot.
func (m *Manager) Reload(ctx context.Context) error {
	collected := make(map[string]*ParseResult)

	for _, src := range m.sources() {
		results, err := src.Discover(ctx)
		if err != nil {
			m.logger.Warn("skill source discovery failed", "tier", src.Tier(), "error", err)
			continue
		}
		for _, res := range results {
			m.emitWarnings(res)

			existing, ok := collected[res.Skill.Name]
			if !ok {
				collected[res.Skill.Name] = res
				continue
			}
			if res.Skill.Source.Priority() > existing.Skill.Source.Priority() {
				existing.Skill.ShadowedBy = string(res.Skill.Source)
				collected[res.Skill.Name] = res
			} else {
				res.Skill.ShadowedBy = string(existing.Skill.Source)
			}
		}
	}

	overrides := map[string]bool{}
	if m.store != nil {
		var err error
		overrides, err = m.store.ListOverrides(ctx)
		if err != nil {
			return fmt.Errorf("load skill overrides: %w", err)
		}
	}

	next := make(map[string]*models.Skill, len(collected))
	for name, res := range collected {
		skill := res.Skill
		skill.Enabled = true
		if v, ok := overrides[name]; ok {
			skill.Enabled = v
		}
		Resolve(skill, m.toolResolverOrNoop(), m.bins)
		next[name] = skill
	}

	m.mu.Lock()
	m.byName = next
	m.mu.Unlock()

	m.logger.Info("reloaded skills", "count", len(next))
	return nil
}

func (m *Manager) toolResolverOrNoop() ToolResolver {
	if m.tools != nil {
		return m.tools
	}
	return noopToolResolver{}
}

type noopToolResolver struct{}

func (noopToolResolver) Get(name string) (models.ToolSpec, bool) { return models.ToolSpec{}, false }

func (m *Manager) emitWarnings(res *ParseResult) {
	if len(res.Warnings) == 0 {
		return
	}
	m.mu.RLock()
	cb := m.warning
	m.mu.RUnlock()
	for _, w := range res.Warnings {
		m.logger.Warn("skill manifest warning", "skill", res.Skill.Name, "warning", w)
		if cb != nil {
			cb(res.Skill.Name, w)
		}
	}
}

// Get returns the skill named name, including unresolved or disabled ones.
func (m *Manager) Get(name string) (*models.Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byName[name]
	return s, ok
}

// List returns every discovered skill, sorted by name.
func (m *Manager) List() []*models.Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Skill, 0, len(m.byName))
	for _, s := range m.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Index returns the name+description pairs of resolvable, enabled skills
// for the system prompt's skill index (§4.4).
func (m *Manager) Index() []models.IndexEntry {
	return BuildIndex(m.List())
}

// SetEnabled toggles a skill's override and triggers a reload so the
// change is reflected in the next snapshot.
func (m *Manager) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if m.store == nil {
		return fmt.Errorf("no skill store configured")
	}
	if err := m.store.SetEnabled(ctx, name, enabled); err != nil {
		return err
	}
	return m.Reload(ctx)
}

// invocationPattern matches a skill invocation emitted by the model's
// output, `skill:<name>(args)`, where args is an opaque argument blob
// (typically JSON) passed through uninterpreted.
var invocationPattern = regexp.MustCompile(`skill:([a-z0-9-]+)\(([^)]*)\)`)

// ParseInvocation extracts the skill name and raw argument text from an
// assistant message, if it names one (§4.8 step 4c). Returns ok=false when
// no invocation is present.
func ParseInvocation(text string) (name, rawArgs string, ok bool) {
	m := invocationPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// StartWatching watches the workspace and managed roots for changes and
// triggers a debounced Reload on any create/write/remove/rename event.
// Bundled skills are read-only and not watched.
func (m *Manager) StartWatching(ctx context.Context, debounce time.Duration) error {
	m.mu.Lock()
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	m.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	m.watchCancel = cancel
	m.mu.Unlock()

	for _, path := range []string{m.roots.Managed, m.roots.Workspace} {
		if path == "" {
			continue
		}
		if err := watcher.Add(path); err != nil {
			m.logger.Debug("failed to watch skills path", "path", path, "error", err)
		}
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	m.watchWg.Add(1)
	go m.watchLoop(watchCtx, watcher, debounce)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	defer m.watchWg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if err := m.Reload(context.Background()); err != nil {
				m.logger.Warn("skill reload after watch event failed", "error", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("skill watch error", "error", err)
		}
	}
}

// Close stops the filesystem watcher, if started.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.watchCancel != nil {
		m.watchCancel()
		m.watchCancel = nil
	}
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	m.watchWg.Wait()
	return nil
}
