package models

import "time"

// Identity is the canonical person or actor behind one or more linked
// channel accounts (§3, §4.6).
type Identity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	MergedInto  string    `json:"merged_into,omitempty"`
}

// LinkedAccount is one (channel_type, platform_user_id) pointing at a
// canonical identity. Verified accounts were linked through an explicit
// confirmation flow rather than inferred from conversation content.
type LinkedAccount struct {
	ChannelType    ChannelType `json:"channel_type"`
	PlatformUserID string      `json:"platform_user_id"`
	IdentityID     string      `json:"identity_id"`
	DisplayName    string      `json:"display_name,omitempty"`
	Verified       bool        `json:"verified"`
	LinkedAt       time.Time   `json:"linked_at"`
}

// Key returns the lookup key used by the linked-account index.
func (l *LinkedAccount) Key() string {
	return string(l.ChannelType) + ":" + l.PlatformUserID
}
