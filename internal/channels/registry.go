package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/stark/pkg/models"
)

// Registry holds every configured channel adapter and is the façade's single
// entrypoint for both directions of traffic: it routes outbound sends by
// channel type, and it is the dedup-and-fanout point inbound adapters push
// into.
type Registry struct {
	logger    *slog.Logger
	dedupe    *Dedupe
	metrics   *Metrics
	MetricsRegistry *prometheus.Registry

	mu        sync.RWMutex
	adapters  map[models.ChannelType]Adapter
	onInbound InboundHandler
}

// NewRegistry returns an empty Registry. dedupeCapacity <= 0 uses
// DefaultDedupeCapacity. The Registry owns a private prometheus.Registry
// (exposed as MetricsRegistry; cmd/starkd serves no /metrics endpoint) rather
// than registering against the global default, so tests can build any
// number of Registry instances without colliding on metric names.
func NewRegistry(dedupeCapacity int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	promReg := prometheus.NewRegistry()
	return &Registry{
		logger:          logger,
		dedupe:          NewDedupe(dedupeCapacity),
		metrics:         NewMetrics(promReg),
		MetricsRegistry: promReg,
		adapters:        make(map[models.ChannelType]Adapter),
	}
}

// OnInbound sets the handler the Registry forwards deduplicated inbound
// messages to. It must be called before Start; the usual handler resolves
// an identity, gets-or-creates the session, and enqueues the turn.
func (r *Registry) OnInbound(handler InboundHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onInbound = handler
}

// Register adds an adapter, wiring its inbound callback through the
// Registry's dedup filter before it reaches OnInbound's handler.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	r.adapters[adapter.Type()] = adapter
	r.mu.Unlock()

	adapter.SetInboundHandler(func(msg InboundMessage) {
		r.dispatch(adapter.Type(), msg)
	})
}

func (r *Registry) dispatch(channelType models.ChannelType, msg InboundMessage) {
	if r.dedupe.Seen(channelType, msg.PlatformMessageID) {
		r.metrics.recordDuplicate(string(channelType))
		r.logger.Debug("channels: dropped duplicate inbound message",
			"channel", channelType, "platform_message_id", msg.PlatformMessageID)
		return
	}
	r.metrics.recordInbound(string(channelType))

	r.mu.RLock()
	handler := r.onInbound
	r.mu.RUnlock()
	if handler == nil {
		r.logger.Warn("channels: inbound message dropped, no handler registered", "channel", channelType)
		return
	}
	handler(msg)
}

// StartAll starts every registered adapter, returning the first error.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for channelType, adapter := range r.adapters {
		if err := adapter.Start(ctx); err != nil {
			return fmt.Errorf("start %s adapter: %w", channelType, err)
		}
	}
	return nil
}

// StopAll stops every registered adapter, continuing past individual
// failures and returning the last one seen.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lastErr error
	for channelType, adapter := range r.adapters {
		if err := adapter.Stop(ctx); err != nil {
			r.logger.Warn("channels: adapter stop failed", "channel", channelType, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// SendToChannel routes an outbound send to the adapter registered for
// channelType. It satisfies internal/tools/builtin's ChannelSender contract
// (Send(ctx, channel, peerID, text) error).
func (r *Registry) SendToChannel(ctx context.Context, channelType, conversationID, text string) error {
	r.mu.RLock()
	adapter, ok := r.adapters[models.ChannelType(channelType)]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("channels: no adapter registered for %q", channelType)
	}

	result, err := adapter.Send(ctx, conversationID, text, nil)
	r.metrics.recordSend(channelType, err == nil && result == Delivered)
	if err != nil {
		return fmt.Errorf("send via %s: %w", channelType, err)
	}
	if result != Delivered {
		return fmt.Errorf("send via %s: %s", channelType, result)
	}
	return nil
}

// Send implements internal/agent.Sender: it delivers a turn's reply back to
// the session's own channel and conversation.
func (r *Registry) Send(ctx context.Context, sess *models.Session, text string) error {
	return r.SendToChannel(ctx, string(sess.ChannelType), sess.PlatformConvID, text)
}

// Get returns the adapter registered for channelType, if any.
func (r *Registry) Get(channelType models.ChannelType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[channelType]
	return adapter, ok
}

// ToolSender adapts a Registry to internal/tools/builtin's ChannelSender
// contract (Send(ctx, channel, peerID, text) error), which collides in
// method name with the agent.Sender method Registry implements directly.
type ToolSender struct {
	Registry *Registry
}

// Send implements internal/tools/builtin.ChannelSender.
func (s ToolSender) Send(ctx context.Context, channel, peerID, text string) error {
	return s.Registry.SendToChannel(ctx, channel, peerID, text)
}
