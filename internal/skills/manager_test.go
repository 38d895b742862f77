package skills

import (
	"context"
	"testing"

	"github.com/haasonsaas/stark/internal/storage"
)

func newTestRoots(t *testing.T) Roots {
	t.Helper()
	return Roots{
		Bundled:   t.TempDir(),
		Managed:   t.TempDir(),
		Workspace: t.TempDir(),
	}
}

func TestManagerReloadDiscoversAcrossTiers(t *testing.T) {
	roots := newTestRoots(t)
	writeSkill(t, roots.Bundled, "bundled-only", "---\nname: bundled-only\ndescription: d\n---\nbody")
	writeSkill(t, roots.Managed, "managed-only", "---\nname: managed-only\ndescription: d\n---\nbody")
	writeSkill(t, roots.Workspace, "workspace-only", "---\nname: workspace-only\ndescription: d\n---\nbody")

	store := storage.NewMemoryStore()
	mgr := NewManager(roots, store.Skills, nil)
	if err := mgr.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if len(mgr.List()) != 3 {
		t.Fatalf("skills = %d, want 3", len(mgr.List()))
	}
	for _, name := range []string{"bundled-only", "managed-only", "workspace-only"} {
		if _, ok := mgr.Get(name); !ok {
			t.Fatalf("missing skill %q", name)
		}
	}
}

func TestManagerWorkspaceShadowsBundledOnNameCollision(t *testing.T) {
	roots := newTestRoots(t)
	writeSkill(t, roots.Bundled, "swap", "---\nname: swap\ndescription: bundled version\n---\nbody")
	writeSkill(t, roots.Workspace, "swap", "---\nname: swap\ndescription: workspace version\n---\nbody")

	store := storage.NewMemoryStore()
	mgr := NewManager(roots, store.Skills, nil)
	if err := mgr.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	skill, ok := mgr.Get("swap")
	if !ok {
		t.Fatal("expected swap skill to be present")
	}
	if skill.Description != "workspace version" {
		t.Fatalf("winning description = %q, want workspace version to win", skill.Description)
	}
}

func TestManagerSkillWithUnresolvedToolIsNotInIndex(t *testing.T) {
	roots := newTestRoots(t)
	writeSkill(t, roots.Workspace, "needs-tool", "---\nname: needs-tool\ndescription: d\nrequires_tools: [nonexistent]\n---\nbody")

	store := storage.NewMemoryStore()
	mgr := NewManager(roots, store.Skills, fakeToolResolver{})
	if err := mgr.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	skill, ok := mgr.Get("needs-tool")
	if !ok || skill.Resolvable {
		t.Fatalf("skill = %+v, ok = %v", skill, ok)
	}
	if len(mgr.Index()) != 0 {
		t.Fatalf("index should exclude unresolved skills, got %+v", mgr.Index())
	}
}

func TestManagerSetEnabledPersistsOverride(t *testing.T) {
	roots := newTestRoots(t)
	writeSkill(t, roots.Workspace, "toggle-me", "---\nname: toggle-me\ndescription: d\n---\nbody")

	store := storage.NewMemoryStore()
	mgr := NewManager(roots, store.Skills, nil)
	if err := mgr.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := mgr.SetEnabled(context.Background(), "toggle-me", false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	skill, ok := mgr.Get("toggle-me")
	if !ok || skill.Enabled {
		t.Fatalf("skill = %+v, ok = %v", skill, ok)
	}
}

func TestParseInvocationExtractsNameAndArgs(t *testing.T) {
	name, args, ok := ParseInvocation(`I will use skill:web-research({"topic":"batteries"}) now.`)
	if !ok {
		t.Fatal("expected invocation to be found")
	}
	if name != "web-research" {
		t.Fatalf("name = %q", name)
	}
	if args != `{"topic":"batteries"}` {
		t.Fatalf("args = %q", args)
	}
}

func TestParseInvocationNoMatch(t *testing.T) {
	_, _, ok := ParseInvocation("just a plain reply, no skill here")
	if ok {
		t.Fatal("expected no invocation match")
	}
}
