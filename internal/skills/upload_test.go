package skills

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf.Bytes()
}

func TestInstallArchiveSwapsIntoManagedRoot(t *testing.T) {
	managedRoot := t.TempDir()
	archive := buildArchive(t, map[string]string{
		"SKILL.md": "---\nname: uploaded-skill\ndescription: does a thing\n---\nbody",
	})

	res, err := InstallArchive(archive, managedRoot)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.Skill.Name != "uploaded-skill" {
		t.Fatalf("skill name = %q", res.Skill.Name)
	}
	if !strings.HasPrefix(res.Skill.Path, managedRoot) {
		t.Fatalf("installed path = %q, want under %q", res.Skill.Path, managedRoot)
	}
}

func TestInstallArchiveRejectsMultipleTopLevelManifests(t *testing.T) {
	managedRoot := t.TempDir()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, body := range []string{
		"---\nname: a\ndescription: first\n---\nbody",
		"---\nname: b\ndescription: second\n---\nbody",
	} {
		f, err := w.Create("SKILL.md")
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	if _, err := InstallArchive(buf.Bytes(), managedRoot); err == nil {
		t.Fatal("expected error for duplicate top-level manifests")
	}
}

func TestInstallArchiveIgnoresNestedManifest(t *testing.T) {
	managedRoot := t.TempDir()
	archive := buildArchive(t, map[string]string{
		"SKILL.md":        "---\nname: a\ndescription: d\n---\nbody",
		"nested/SKILL.md": "---\nname: b\ndescription: d\n---\nbody",
	})

	res, err := InstallArchive(archive, managedRoot)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if res.Skill.Name != "a" {
		t.Fatalf("skill name = %q, want top-level manifest to win", res.Skill.Name)
	}
}

func TestInstallArchiveRejectsPathTraversal(t *testing.T) {
	managedRoot := t.TempDir()
	archive := buildArchive(t, map[string]string{
		"SKILL.md":          "---\nname: a\ndescription: d\n---\nbody",
		"../../etc/passwd":  "malicious",
	})

	if _, err := InstallArchive(archive, managedRoot); err == nil {
		t.Fatal("expected error for path traversal entry")
	}
}

func TestInstallArchiveRejectsZeroManifests(t *testing.T) {
	managedRoot := t.TempDir()
	archive := buildArchive(t, map[string]string{"README.md": "no manifest here"})
	if _, err := InstallArchive(archive, managedRoot); err == nil {
		t.Fatal("expected error for archive with no manifest")
	}
}
