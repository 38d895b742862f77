// Package discord adapts a discordgo session to the Channel Façade's
// Adapter contract (§4.10).
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/stark/internal/channels"
	"github.com/haasonsaas/stark/pkg/models"
)

// Config configures the Discord adapter.
type Config struct {
	Token     string
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
}

func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("discord: token is required")
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter bridges a discordgo.Session to the façade.
type Adapter struct {
	cfg     Config
	session *discordgo.Session
	limiter *channels.RateLimiter
	logger  *slog.Logger

	mu      sync.RWMutex
	status  channels.Status
	handler channels.InboundHandler
}

// NewAdapter builds a Discord adapter against cfg.
func NewAdapter(cfg Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Adapter{
		cfg:     cfg,
		session: session,
		limiter: channels.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  cfg.Logger.With("adapter", "discord"),
	}, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelDiscord }

func (a *Adapter) SetInboundHandler(handler channels.InboundHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

func (a *Adapter) Start(ctx context.Context) error {
	a.session.AddHandler(a.handleMessageCreate)
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	a.mu.Lock()
	a.status = channels.Status{Connected: true, LastPing: time.Now()}
	a.mu.Unlock()
	a.logger.Info("discord adapter started")
	return nil
}

func (a *Adapter) Stop(context.Context) error {
	err := a.session.Close()
	a.mu.Lock()
	a.status = channels.Status{Connected: false}
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	return nil
}

func (a *Adapter) Status() channels.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Adapter) Send(ctx context.Context, conversationID, text string, _ []channels.Attachment) (channels.Delivery, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return channels.Failed, err
	}
	if _, err := a.session.ChannelMessageSend(conversationID, text); err != nil {
		a.logger.Warn("discord: send failed", "channel_id", conversationID, "error", err)
		return channels.Failed, fmt.Errorf("discord: send: %w", err)
	}
	return channels.Delivered, nil
}

func (a *Adapter) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	handler(channels.InboundMessage{
		ChannelType:            models.ChannelDiscord,
		PlatformConversationID: m.ChannelID,
		PlatformUserID:         m.Author.ID,
		DisplayName:            m.Author.Username,
		Text:                   m.Content,
		Attachments:            convertAttachments(m.Attachments),
		PlatformMessageID:      m.ID,
		Timestamp:              ts,
	})
}

func convertAttachments(in []*discordgo.MessageAttachment) []channels.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]channels.Attachment, 0, len(in))
	for _, att := range in {
		out = append(out, channels.Attachment{
			Kind:     detectKind(att.ContentType),
			URL:      att.URL,
			Filename: att.Filename,
			MimeType: att.ContentType,
			Size:     int64(att.Size),
		})
	}
	return out
}

func detectKind(contentType string) channels.AttachmentKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return channels.AttachmentImage
	case strings.HasPrefix(contentType, "audio/"):
		return channels.AttachmentAudio
	case strings.HasPrefix(contentType, "video/"):
		return channels.AttachmentVideo
	default:
		return channels.AttachmentDocument
	}
}
