package channels

import (
	"context"
	"log/slog"
	"time"

	"github.com/haasonsaas/stark/pkg/models"
)

// IdentityResolver resolves a platform user to a stable identity (§4.6),
// the seam internal/identity.Resolver satisfies.
type IdentityResolver interface {
	Resolve(ctx context.Context, channelType models.ChannelType, platformUserID, displayName string) (string, error)
}

// SessionDriver gets-or-creates the session for one inbound message and
// hands it to the dispatcher supervisor, the seam internal/sessions.Manager
// plus internal/agent.Supervisor satisfy together.
type SessionDriver interface {
	Deliver(ctx context.Context, channelType models.ChannelType, platformConvID, identityID, text string, receivedAt time.Time) error
}

// Ingress wires a Registry's deduplicated inbound stream through identity
// resolution into a running session, so adapters never need to know about
// sessions.Manager or agent.Supervisor directly.
type Ingress struct {
	identities IdentityResolver
	sessions   SessionDriver
	logger     *slog.Logger
}

// NewIngress returns an Ingress translating InboundMessage into a resolved
// session turn.
func NewIngress(identities IdentityResolver, sessions SessionDriver, logger *slog.Logger) *Ingress {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingress{identities: identities, sessions: sessions, logger: logger}
}

// Handle is registered as a Registry's OnInbound callback.
func (ig *Ingress) Handle(msg InboundMessage) {
	ctx := context.Background()

	identityID, err := ig.identities.Resolve(ctx, msg.ChannelType, msg.PlatformUserID, msg.DisplayName)
	if err != nil {
		ig.logger.Error("channels: identity resolution failed", "channel", msg.ChannelType, "error", err)
		return
	}

	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	if err := ig.sessions.Deliver(ctx, msg.ChannelType, msg.PlatformConversationID, identityID, msg.Text, receivedAt); err != nil {
		ig.logger.Error("channels: session delivery failed", "channel", msg.ChannelType, "error", err)
	}
}
