package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/stark/pkg/models"
)

func writeSkill(t *testing.T, root, name, manifest string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFilename), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDirSourceDiscoversSkills(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "alpha", "---\nname: alpha\ndescription: d1\n---\nbody")
	writeSkill(t, root, "beta", "---\nname: beta\ndescription: d2\n---\nbody")
	// non-skill directory (no SKILL.md) is ignored
	if err := os.MkdirAll(filepath.Join(root, "not-a-skill"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	src := NewDirSource(root, models.SkillSourceWorkspace)
	results, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
}

func TestDirSourceMissingRootReturnsNoSkills(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "does-not-exist"), models.SkillSourceManaged)
	results, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if results != nil {
		t.Fatalf("results = %v, want nil", results)
	}
}

func TestDirSourceSkipsInvalidManifestsAndContinues(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "broken", "not a manifest at all")
	writeSkill(t, root, "good", "---\nname: good\ndescription: d\n---\nbody")

	src := NewDirSource(root, models.SkillSourceBundled)
	results, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(results) != 1 || results[0].Skill.Name != "good" {
		t.Fatalf("results = %+v", results)
	}
}
