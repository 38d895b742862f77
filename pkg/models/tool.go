package models

import "time"

// ToolGroup categorises a tool for policy grouping (§3).
type ToolGroup string

const (
	GroupWeb        ToolGroup = "web"
	GroupFilesystem ToolGroup = "filesystem"
	GroupExec       ToolGroup = "exec"
	GroupMessaging  ToolGroup = "messaging"
	GroupSystem     ToolGroup = "system"
	GroupWeb3       ToolGroup = "web3"
	GroupMemory     ToolGroup = "memory"
)

// SideEffectClass classifies the reversibility of a tool's effect.
type SideEffectClass string

const (
	EffectPureRead    SideEffectClass = "pure_read"
	EffectLocalWrite  SideEffectClass = "local_write"
	EffectNetwork     SideEffectClass = "network"
	EffectIrreversible SideEffectClass = "irreversible"
)

// ArgumentField describes one field of a tool's argument schema.
type ArgumentField struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // string, number, integer, boolean, object, array
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// ToolSpec is the static, registry-held description of a tool (§3).
type ToolSpec struct {
	Name            string          `json:"name"`
	Group           ToolGroup       `json:"group"`
	Description     string          `json:"description"`
	ArgumentSchema  []ArgumentField `json:"argument_schema"`
	Timeout         time.Duration   `json:"timeout"`
	SideEffectClass SideEffectClass `json:"side_effect_class"`
	Enabled         bool            `json:"enabled"`
}

// ToolAuditRecord is written for every tool invocation regardless of outcome
// (§4.3), with arguments redacted to a hash rather than stored verbatim.
type ToolAuditRecord struct {
	ID            string        `json:"id"`
	SessionID     string        `json:"session_id"`
	ToolName      string        `json:"tool_name"`
	ArgsHash      string        `json:"args_hash"`
	Duration      time.Duration `json:"duration"`
	Outcome       string        `json:"outcome"` // success, error, confirmation_required
	ErrorClass    string        `json:"error_class,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
