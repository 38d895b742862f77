package skills

import (
	"strings"
	"testing"

	"github.com/haasonsaas/stark/pkg/models"
)

func TestBuildIndexExcludesDisabledAndUnresolved(t *testing.T) {
	skills := []*models.Skill{
		{Name: "enabled-resolvable", Description: "d1", Enabled: true, Resolvable: true},
		{Name: "disabled", Description: "d2", Enabled: false, Resolvable: true},
		{Name: "unresolved", Description: "d3", Enabled: true, Resolvable: false},
	}
	entries := BuildIndex(skills)
	if len(entries) != 1 || entries[0].Name != "enabled-resolvable" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestRenderIndexFragment(t *testing.T) {
	entries := []models.IndexEntry{{Name: "a", Description: "does a"}}
	frag := RenderIndexFragment(entries)
	if !strings.Contains(frag, "a: does a") {
		t.Fatalf("fragment = %q", frag)
	}
	if RenderIndexFragment(nil) != "" {
		t.Fatal("expected empty fragment for no entries")
	}
}
