package models

// SkillSource indicates which priority tier a skill manifest was discovered
// under: bundled < managed < workspace (highest wins on name collision).
type SkillSource string

const (
	SkillSourceBundled SkillSource = "bundled"
	SkillSourceManaged SkillSource = "managed"
	SkillSourceWorkspace SkillSource = "workspace"
)

// sourcePriority ranks sources for collision resolution; higher wins.
var sourcePriority = map[SkillSource]int{
	SkillSourceBundled:   1,
	SkillSourceManaged:   2,
	SkillSourceWorkspace: 3,
}

// Priority returns the numeric priority of a skill source for collision
// resolution (workspace > managed > bundled, per spec §4.4 and §9).
func (s SkillSource) Priority() int {
	return sourcePriority[s]
}

// Skill is a declarative prompt-and-tool bundle resolved against the Tool
// Registry and host binaries at load time (§3).
type Skill struct {
	Name            string      `json:"name"`
	Version         string      `json:"version"`
	Description     string      `json:"description"`
	Author          string      `json:"author,omitempty"`
	Homepage        string      `json:"homepage,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
	RequiredTools   []string    `json:"required_tools,omitempty"`
	RequiredBinaries []string   `json:"required_binaries,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	PromptTemplate  string      `json:"-"`
	Source          SkillSource `json:"source"`
	Enabled         bool        `json:"enabled"`
	Resolvable      bool        `json:"resolvable"`
	ShadowedBy      string      `json:"shadowed_by,omitempty"`
	Path            string      `json:"path"`
}

// IndexEntry is the lightweight name+description pair spliced into the
// system prompt's skill index (§4.4).
type IndexEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
