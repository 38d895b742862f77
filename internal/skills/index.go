package skills

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/stark/pkg/models"
)

// BuildIndex returns the name+description pairs of every resolvable,
// enabled skill, sorted by name, for splicing into the system prompt (§4.4).
func BuildIndex(skills []*models.Skill) []models.IndexEntry {
	entries := make([]models.IndexEntry, 0, len(skills))
	for _, s := range skills {
		if !s.Enabled || !s.Resolvable {
			continue
		}
		entries = append(entries, models.IndexEntry{Name: s.Name, Description: s.Description})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// RenderIndexFragment renders the skill index as a prompt fragment the LLM
// can read to decide whether to announce `skill:<name>` in its output.
func RenderIndexFragment(entries []models.IndexEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Available skills (invoke with skill:<name>(args)):\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Name, e.Description)
	}
	return b.String()
}
