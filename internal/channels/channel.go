// Package channels implements the Channel Façade (§4.10): the boundary
// between the core and the outside messaging platforms. It is the only
// layer in the system that sees platform-specific identifiers; everything
// past the Registry deals in sessions and identities instead.
package channels

import (
	"context"
	"time"

	"github.com/haasonsaas/stark/pkg/models"
)

// Delivery reports the outcome of a Send call.
type Delivery string

const (
	Delivered Delivery = "delivered"
	Failed    Delivery = "failed"
)

// AttachmentKind loosely classifies an inbound attachment by media type.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment describes one file carried by an inbound or outbound message.
type Attachment struct {
	Kind     AttachmentKind `json:"kind"`
	URL      string         `json:"url"`
	Filename string         `json:"filename,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
	Size     int64          `json:"size,omitempty"`
}

// InboundMessage is what an adapter hands the façade for every message a
// platform delivers to it (§4.10). It is the only place platform-specific
// identifiers (platform_conversation_id, platform_user_id,
// platform_message_id) are allowed to appear.
type InboundMessage struct {
	ChannelType           models.ChannelType
	PlatformConversationID string
	PlatformUserID        string
	DisplayName           string
	Text                  string
	Attachments           []Attachment
	PlatformMessageID     string
	Timestamp             time.Time
}

// InboundHandler is the push callback an adapter invokes for every message
// it receives, after the façade has deduplicated it.
type InboundHandler func(InboundMessage)

// Adapter is the minimal contract the core requires from any channel
// connector (§4.10): start, stop, send, and a registered inbound callback.
type Adapter interface {
	Type() models.ChannelType
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, conversationID, text string, attachments []Attachment) (Delivery, error)

	// SetInboundHandler wires the façade's dispatch callback. It must be
	// called before Start; adapters call the handler for every message
	// they receive while running.
	SetInboundHandler(handler InboundHandler)
}

// Status reports an adapter's live connection state.
type Status struct {
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	LastPing  time.Time `json:"last_ping,omitempty"`
}

// HealthAdapter is satisfied by adapters that can report connection health
// beyond the plain Adapter contract; the gateway's tool.metrics-style
// surfaces use it when present.
type HealthAdapter interface {
	Status() Status
}
