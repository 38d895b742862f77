package policy

import "github.com/haasonsaas/stark/pkg/models"

// Decision explains why a tool was allowed or denied, for audit logging.
type Decision struct {
	Allowed bool
	Tool    string
	Reason  string
}

// Resolver evaluates a Policy against a tool's name and group. The
// ToolGroup lookup is injected so the resolver has no dependency on the
// registry package (avoiding an import cycle between tools and policy).
type Resolver struct {
	groupOf func(toolName string) (models.ToolGroup, bool)
}

// NewResolver creates a Resolver that looks up a tool's group via groupOf.
func NewResolver(groupOf func(toolName string) (models.ToolGroup, bool)) *Resolver {
	return &Resolver{groupOf: groupOf}
}

// Decide applies the precedence rule from the policy spec: deny_list wins
// over allow_list, which wins over denied_groups, which wins over
// allowed_groups/profile.
func (r *Resolver) Decide(p *Policy, toolName string) Decision {
	d := Decision{Tool: toolName}
	if p == nil {
		d.Reason = "no policy configured"
		return d
	}

	if contains(p.DenyList, toolName) {
		d.Reason = "denied by deny_list"
		return d
	}

	if contains(p.AllowList, toolName) {
		d.Allowed = true
		d.Reason = "allowed by allow_list"
		return d
	}

	group, hasGroup := r.groupOf(toolName)
	if hasGroup && containsGroup(p.DeniedGroups, group) {
		d.Reason = "denied by denied_groups"
		return d
	}

	if hasGroup && containsGroup(p.AllowedGroups, group) {
		d.Allowed = true
		d.Reason = "allowed by allowed_groups"
		return d
	}

	if hasGroup && p.Profile != ProfileCustom && profileGroups[p.Profile][group] {
		d.Allowed = true
		d.Reason = "allowed by profile " + string(p.Profile)
		return d
	}

	d.Reason = "no matching allow rule"
	return d
}

// IsAllowed is a convenience wrapper returning just the boolean verdict.
func (r *Resolver) IsAllowed(p *Policy, toolName string) bool {
	return r.Decide(p, toolName).Allowed
}
