package skills

import (
	"testing"

	"github.com/haasonsaas/stark/pkg/models"
)

type fakeToolResolver map[string]models.ToolSpec

func (f fakeToolResolver) Get(name string) (models.ToolSpec, bool) {
	spec, ok := f[name]
	return spec, ok
}

func TestResolveAllRequirementsMet(t *testing.T) {
	skill := &models.Skill{Name: "web-research", RequiredTools: []string{"web_search"}, RequiredBinaries: []string{"true"}}
	tools := fakeToolResolver{"web_search": {Name: "web_search", Enabled: true}}

	reason := Resolve(skill, tools, NewBinaryProber())
	if reason != "" {
		t.Fatalf("reason = %q, want empty", reason)
	}
	if !skill.Resolvable {
		t.Fatal("expected skill to be resolvable")
	}
}

func TestResolveMissingTool(t *testing.T) {
	skill := &models.Skill{Name: "x", RequiredTools: []string{"nonexistent_tool"}}
	reason := Resolve(skill, fakeToolResolver{}, NewBinaryProber())
	if reason == "" || skill.Resolvable {
		t.Fatalf("reason = %q, resolvable = %v", reason, skill.Resolvable)
	}
}

func TestResolveDisabledTool(t *testing.T) {
	skill := &models.Skill{Name: "x", RequiredTools: []string{"web_search"}}
	tools := fakeToolResolver{"web_search": {Name: "web_search", Enabled: false}}
	reason := Resolve(skill, tools, NewBinaryProber())
	if reason == "" || skill.Resolvable {
		t.Fatalf("reason = %q, resolvable = %v", reason, skill.Resolvable)
	}
}

func TestResolveMissingBinary(t *testing.T) {
	skill := &models.Skill{Name: "x", RequiredBinaries: []string{"definitely-not-a-real-binary-xyz"}}
	reason := Resolve(skill, fakeToolResolver{}, NewBinaryProber())
	if reason == "" || skill.Resolvable {
		t.Fatalf("reason = %q, resolvable = %v", reason, skill.Resolvable)
	}
}

func TestBinaryProberCachesResult(t *testing.T) {
	p := NewBinaryProber()
	first := p.Has("true")
	second := p.Has("true")
	if first != second {
		t.Fatalf("inconsistent results: %v vs %v", first, second)
	}
}
