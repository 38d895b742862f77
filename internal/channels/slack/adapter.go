// Package slack adapts a Socket Mode slack-go client to the Channel
// Façade's Adapter contract (§4.10).
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/haasonsaas/stark/internal/channels"
	"github.com/haasonsaas/stark/pkg/models"
)

// Config configures the Slack adapter. Socket Mode needs both an xoxb- bot
// token and an xapp- app-level token.
type Config struct {
	BotToken  string
	AppToken  string
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
}

func (c *Config) validate() error {
	if c.BotToken == "" || c.AppToken == "" {
		return fmt.Errorf("slack: bot_token and app_token are required")
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

// Adapter bridges Slack's Socket Mode event stream to the façade.
type Adapter struct {
	cfg     Config
	client  *slack.Client
	socket  *socketmode.Client
	limiter *channels.RateLimiter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	status  channels.Status
	handler channels.InboundHandler
}

// NewAdapter builds a Slack adapter against cfg.
func NewAdapter(cfg Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &Adapter{
		cfg:     cfg,
		client:  client,
		socket:  socketmode.New(client),
		limiter: channels.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  cfg.Logger.With("adapter", "slack"),
	}, nil
}

func (a *Adapter) Type() models.ChannelType { return models.ChannelSlack }

func (a *Adapter) SetInboundHandler(handler channels.InboundHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

func (a *Adapter) Start(ctx context.Context) error {
	if _, err := a.client.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack: authenticate: %w", err)
	}

	a.ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go a.consumeEvents()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.socket.Run(); err != nil && a.ctx.Err() == nil {
			a.logger.Warn("slack: socket mode run ended", "error", err)
		}
	}()

	a.mu.Lock()
	a.status = channels.Status{Connected: true, LastPing: time.Now()}
	a.mu.Unlock()
	a.logger.Info("slack adapter started")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() { a.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("slack: stop timed out")
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
	if _, _, err := a.client.PostMessageContext(ctx, conversationID, slack.MsgOptionText(text, false)); err != nil {
		a.logger.Warn("slack: send failed", "channel", conversationID, "error", err)
		return channels.Failed, fmt.Errorf("slack: send: %w", err)
	}
	return channels.Delivered, nil
}

func (a *Adapter) consumeEvents() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			a.socket.Ack(*evt.Request)

			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || apiEvent.Type != slackevents.CallbackEvent {
				continue
			}
			if msgEvent, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				a.handleMessageEvent(msgEvent)
			}
		}
	}
}

func (a *Adapter) handleMessageEvent(ev *slackevents.MessageEvent) {
	if ev.BotID != "" || (ev.SubType != "" && ev.SubType != "file_share") {
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}

	handler(channels.InboundMessage{
		ChannelType:            models.ChannelSlack,
		PlatformConversationID: ev.Channel,
		PlatformUserID:         ev.User,
		Text:                   ev.Text,
		PlatformMessageID:      ev.TimeStamp,
		Timestamp:              slackTimestamp(ev.TimeStamp),
	})
}

func slackTimestamp(ts string) time.Time {
	var sec, nsec int64
	if _, err := fmt.Sscanf(ts, "%d.%d", &sec, &nsec); err != nil {
		return time.Now()
	}
	return time.Unix(sec, nsec)
}
