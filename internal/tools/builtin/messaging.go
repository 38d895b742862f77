package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// ChannelSender is the narrow façade the messaging tool needs from the
// channel registry: deliver one outbound message to a named channel/peer.
type ChannelSender interface {
	Send(ctx context.Context, channel, peerID, text string) error
}

// SendMessageTool delivers an outbound message through a configured
// channel adapter (Discord, Slack, Telegram, ...).
type SendMessageTool struct {
	sender ChannelSender
}

// NewSendMessageTool builds a send_message tool against sender.
func NewSendMessageTool(sender ChannelSender) *SendMessageTool {
	return &SendMessageTool{sender: sender}
}

func (t *SendMessageTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "send_message",
		Group:       models.GroupMessaging,
		Description: "Send a message to a peer on a configured channel (Discord, Slack, Telegram).",
		Enabled:     true,
		Timeout:     10 * time.Second,
		SideEffectClass: models.EffectNetwork,
		ArgumentSchema: []models.ArgumentField{
			{Name: "channel", Type: "string", Required: true},
			{Name: "peer_id", Type: "string", Required: true},
			{Name: "text", Type: "string", Required: true},
		},
	}
}

func (t *SendMessageTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Channel string `json:"channel"`
		PeerID  string `json:"peer_id"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(input.Channel) == "" || strings.TrimSpace(input.PeerID) == "" {
		return nil, fmt.Errorf("channel and peer_id are required")
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if t.sender == nil {
		return nil, fmt.Errorf("no channel sender configured")
	}
	if err := t.sender.Send(ctx, input.Channel, input.PeerID, input.Text); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &tools.Result{Content: fmt.Sprintf("sent to %s:%s", input.Channel, input.PeerID)}, nil
}
