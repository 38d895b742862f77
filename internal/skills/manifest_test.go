package skills

import (
	"strings"
	"testing"

	"github.com/haasonsaas/stark/pkg/models"
)

const sampleManifest = `---
name: web-research
version: "1.0"
description: Research a topic across the web and summarise findings.
author: stark
tags: [research, web]
requires_tools: [web_search, web_fetch]
requires_binaries: [jq]
metadata:
  emoji: "🔎"
---
You are performing deep research on {{topic}}. Use web_search then
web_fetch to gather sources, then summarise.
`

func TestParseManifestExtractsFields(t *testing.T) {
	res, err := ParseManifest([]byte(sampleManifest), "/skills/web-research", models.SkillSourceWorkspace)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := res.Skill
	if s.Name != "web-research" || s.Description == "" {
		t.Fatalf("skill = %+v", s)
	}
	if len(s.RequiredTools) != 2 || s.RequiredTools[0] != "web_search" {
		t.Fatalf("required tools = %v", s.RequiredTools)
	}
	if len(s.RequiredBinaries) != 1 || s.RequiredBinaries[0] != "jq" {
		t.Fatalf("required binaries = %v", s.RequiredBinaries)
	}
	if s.Metadata["emoji"] == "" {
		t.Fatalf("metadata = %v", s.Metadata)
	}
	if !strings.Contains(s.PromptTemplate, "deep research") {
		t.Fatalf("prompt template = %q", s.PromptTemplate)
	}
	if s.Source != models.SkillSourceWorkspace {
		t.Fatalf("source = %v", s.Source)
	}
}

func TestParseManifestRequiresNameAndDescription(t *testing.T) {
	_, err := ParseManifest([]byte("---\nversion: \"1\"\n---\nbody"), "/skills/x", models.SkillSourceBundled)
	if err == nil {
		t.Fatal("expected error for missing name")
	}

	_, err = ParseManifest([]byte("---\nname: x\n---\nbody"), "/skills/x", models.SkillSourceBundled)
	if err == nil {
		t.Fatal("expected error for missing description")
	}
}

func TestParseManifestRejectsInvalidName(t *testing.T) {
	_, err := ParseManifest([]byte("---\nname: Not Valid\ndescription: d\n---\nbody"), "/skills/x", models.SkillSourceBundled)
	if err == nil {
		t.Fatal("expected error for invalid name")
	}
}

func TestParseManifestMissingDelimiters(t *testing.T) {
	if _, err := ParseManifest([]byte("no frontmatter here"), "/x", models.SkillSourceBundled); err == nil {
		t.Fatal("expected error for missing delimiter")
	}
	if _, err := ParseManifest([]byte("---\nname: x\ndescription: d"), "/x", models.SkillSourceBundled); err == nil {
		t.Fatal("expected error for unclosed frontmatter")
	}
}

func TestParseManifestWarnsOnUnknownKeys(t *testing.T) {
	data := "---\nname: x\ndescription: d\nbogus_key: true\n---\nbody"
	res, err := ParseManifest([]byte(data), "/x", models.SkillSourceBundled)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "bogus_key") {
		t.Fatalf("warnings = %v", res.Warnings)
	}
}
