package policy

import (
	"testing"

	"github.com/haasonsaas/stark/pkg/models"
)

func groupOf(toolName string) (models.ToolGroup, bool) {
	switch toolName {
	case "web_search", "web_fetch":
		return models.GroupWeb, true
	case "read_file", "write_file":
		return models.GroupFilesystem, true
	case "run_shell":
		return models.GroupExec, true
	case "broadcast_web3_tx":
		return models.GroupWeb3, true
	default:
		return "", false
	}
}

func TestDecidePrecedence(t *testing.T) {
	resolver := NewResolver(groupOf)

	tests := []struct {
		name   string
		policy *Policy
		tool   string
		want   bool
	}{
		{
			name:   "deny_list beats allow_list",
			policy: &Policy{AllowList: []string{"run_shell"}, DenyList: []string{"run_shell"}},
			tool:   "run_shell",
			want:   false,
		},
		{
			name:   "allow_list beats denied_groups",
			policy: &Policy{AllowList: []string{"run_shell"}, DeniedGroups: []models.ToolGroup{models.GroupExec}},
			tool:   "run_shell",
			want:   true,
		},
		{
			name:   "denied_groups beats profile",
			policy: &Policy{Profile: ProfileFull, DeniedGroups: []models.ToolGroup{models.GroupWeb3}},
			tool:   "broadcast_web3_tx",
			want:   false,
		},
		{
			name:   "profile full allows unlisted tool",
			policy: &Policy{Profile: ProfileFull},
			tool:   "read_file",
			want:   true,
		},
		{
			name:   "profile none denies everything",
			policy: &Policy{Profile: ProfileNone},
			tool:   "web_search",
			want:   false,
		},
		{
			name:   "standard allows web and filesystem only",
			policy: &Policy{Profile: ProfileStandard},
			tool:   "run_shell",
			want:   false,
		},
		{
			name:   "custom profile relies solely on allowed_groups",
			policy: &Policy{Profile: ProfileCustom, AllowedGroups: []models.ToolGroup{models.GroupExec}},
			tool:   "run_shell",
			want:   true,
		},
		{
			name:   "nil policy denies",
			policy: nil,
			tool:   "web_search",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolver.IsAllowed(tt.policy, tt.tool); got != tt.want {
				t.Fatalf("IsAllowed(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}
