// Package policy resolves tool access decisions from an operator-configured
// policy: a profile combined with explicit allow/deny lists and group
// overrides.
package policy

import "github.com/haasonsaas/stark/pkg/models"

// Profile is a named bundle of tool groups granted by default.
type Profile string

const (
	ProfileNone      Profile = "none"
	ProfileMinimal   Profile = "minimal"
	ProfileStandard  Profile = "standard"
	ProfileMessaging Profile = "messaging"
	ProfileFull      Profile = "full"
	ProfileCustom    Profile = "custom"
)

// profileGroups defines which tool groups each built-in profile grants.
// ProfileCustom grants nothing by itself; it relies entirely on AllowedGroups.
var profileGroups = map[Profile]map[models.ToolGroup]bool{
	ProfileNone:    {},
	ProfileMinimal: {models.GroupWeb: true},
	ProfileStandard: {
		models.GroupWeb:        true,
		models.GroupFilesystem: true,
	},
	ProfileMessaging: {
		models.GroupWeb:        true,
		models.GroupFilesystem: true,
		models.GroupMessaging:  true,
	},
	ProfileFull: {
		models.GroupWeb:        true,
		models.GroupFilesystem: true,
		models.GroupExec:       true,
		models.GroupMessaging:  true,
		models.GroupSystem:     true,
		models.GroupWeb3:       true,
		models.GroupMemory:     true,
	},
	ProfileCustom: {},
}

// Policy is the operator-configured tool access tuple: a base profile plus
// explicit overrides. Precedence, high to low: DenyList, AllowList,
// DeniedGroups, AllowedGroups/Profile.
type Policy struct {
	Profile       Profile            `yaml:"profile" json:"profile"`
	AllowList     []string           `yaml:"allow_list,omitempty" json:"allow_list,omitempty"`
	DenyList      []string           `yaml:"deny_list,omitempty" json:"deny_list,omitempty"`
	AllowedGroups []models.ToolGroup `yaml:"allowed_groups,omitempty" json:"allowed_groups,omitempty"`
	DeniedGroups  []models.ToolGroup `yaml:"denied_groups,omitempty" json:"denied_groups,omitempty"`
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

func containsGroup(list []models.ToolGroup, g models.ToolGroup) bool {
	for _, s := range list {
		if s == g {
			return true
		}
	}
	return false
}
