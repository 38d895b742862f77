// Package telegram adapts a go-telegram/bot client to the Channel Façade's
// Adapter contract (§4.10).
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/haasonsaas/stark/internal/channels"
	"github.com/haasonsaas/stark/pkg/models"
)

// Config configures the Telegram adapter.
type Config struct {
	Token     string
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
}

func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}
	if c.RateLimit == 0 {
		c.RateLimit = 30
	}
	if c.RateBurst == 0 {
		c.RateBurst = 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter bridges long-polling Telegram updates to the façade.
type Adapter struct {
	cfg     Config
	bot     *bot.Bot
	limiter *channels.RateLimiter
	logger  *slog.Logger

	cancel context.CancelFunc

	mu      sync.RWMutex
	status  channels.Status
	handler channels.InboundHandler
}

// NewAdapter builds a Telegram adapter against cfg.
func NewAdapter(cfg Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		cfg:     cfg,
		limiter: channels.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  cfg.Logger.With("adapter", "telegram"),
	}

	b, err := bot.New(cfg.Token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	a.bot = b
	return a, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelTelegram }

func (a *Adapter) SetInboundHandler(handler channels.InboundHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.bot.Start(runCtx)

	a.mu.Lock()
	a.status = channels.Status{Connected: true, LastPing: time.Now()}
	a.mu.Unlock()
	a.logger.Info("telegram adapter started")
	return nil
}

func (a *Adapter) Stop(context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Lock()
	a.status = channels.Status{Connected: false}
	a.mu.Unlock()
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
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return channels.Failed, fmt.Errorf("telegram: invalid chat id %q: %w", conversationID, err)
	}
	if _, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		a.logger.Warn("telegram: send failed", "chat_id", chatID, "error", err)
		return channels.Failed, fmt.Errorf("telegram: send: %w", err)
	}
	return channels.Delivered, nil
}

func (a *Adapter) handleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	msg := update.Message
	handler(channels.InboundMessage{
		ChannelType:            models.ChannelTelegram,
		PlatformConversationID: strconv.FormatInt(msg.Chat.ID, 10),
		PlatformUserID:         strconv.FormatInt(msg.From.ID, 10),
		DisplayName:            msg.From.Username,
		Text:                   msg.Text,
		PlatformMessageID:      strconv.Itoa(msg.ID),
		Timestamp:              time.Unix(int64(msg.Date), 0),
	})
}
