package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/stark/pkg/models"
)

// ManifestFilename is the expected name of a skill's manifest file.
const ManifestFilename = "SKILL.md"

// frontmatterDelimiter marks the start and end of the YAML front-matter
// block in a skill manifest.
const frontmatterDelimiter = "---"

// frontmatter is the closed set of recognised manifest keys (§4.4, §8).
// Unknown keys are silently ignored by yaml.Unmarshal rather than rejected;
// ParseManifest reports them as non-fatal warnings instead.
type frontmatter struct {
	Name             string            `yaml:"name"`
	Version          string            `yaml:"version"`
	Description      string            `yaml:"description"`
	Author           string            `yaml:"author"`
	Homepage         string            `yaml:"homepage"`
	Tags             []string          `yaml:"tags"`
	RequiresTools    []string          `yaml:"requires_tools"`
	RequiresBinaries []string          `yaml:"requires_binaries"`
	Metadata         map[string]string `yaml:"metadata"`
}

var recognisedKeys = map[string]bool{
	"name": true, "version": true, "description": true, "author": true,
	"homepage": true, "tags": true, "requires_tools": true,
	"requires_binaries": true, "metadata": true,
}

// ParseResult carries a parsed manifest plus any non-fatal warnings about
// unrecognised front-matter keys.
type ParseResult struct {
	Skill    *models.Skill
	Warnings []string
}

// ParseManifestFile reads and parses a SKILL.md file at path.
func ParseManifestFile(path string, source models.SkillSource) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data, filepath.Dir(path), source)
}

// ParseManifest parses SKILL.md content rooted at skillDir.
func ParseManifest(data []byte, skillDir string, source models.SkillSource) (*ParseResult, error) {
	rawHeader, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var fm frontmatter
	if err := yaml.Unmarshal(rawHeader, &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	if fm.Name == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	if fm.Description == "" {
		return nil, fmt.Errorf("skill description is required")
	}
	if err := validateName(fm.Name); err != nil {
		return nil, err
	}

	skill := &models.Skill{
		Name:             fm.Name,
		Version:          fm.Version,
		Description:      fm.Description,
		Author:           fm.Author,
		Homepage:         fm.Homepage,
		Tags:             fm.Tags,
		RequiredTools:    fm.RequiresTools,
		RequiredBinaries: fm.RequiresBinaries,
		Metadata:         fm.Metadata,
		PromptTemplate:   strings.TrimSpace(string(body)),
		Source:           source,
		Path:             skillDir,
	}

	return &ParseResult{Skill: skill, Warnings: unknownKeyWarnings(rawHeader)}, nil
}

// validateName enforces the lowercase-alphanumeric-with-hyphens convention
// skill names must follow so they can appear literally in a
// `skill:<name>(args)` invocation.
func validateName(name string) error {
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("skill name must be lowercase alphanumeric with hyphens: got %q", name)
		}
	}
	return nil
}

// unknownKeyWarnings scans the raw front-matter block for top-level keys
// outside the recognised set, for the non-fatal warning event §9 calls for.
func unknownKeyWarnings(rawHeader []byte) []string {
	var warnings []string
	scanner := bufio.NewScanner(bytes.NewReader(rawHeader))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "-") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if key != "" && !recognisedKeys[key] {
			warnings = append(warnings, fmt.Sprintf("unrecognised manifest key %q", key))
		}
	}
	return warnings
}

// splitFrontmatter separates the YAML front-matter block from the markdown
// body. Grounded on the teacher's bufio.Scanner-based delimiter search.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty manifest")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var header []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			closed = true
			break
		}
		header = append(header, line)
	}
	if !closed {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan manifest: %w", err)
	}

	return []byte(strings.Join(header, "\n")), []byte(strings.Join(body, "\n")), nil
}
