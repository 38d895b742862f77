package agent

import (
	"context"

	"github.com/haasonsaas/stark/pkg/models"
)

// Publisher is the narrow seam the dispatcher pushes domain events
// through; the Event Gateway (§4.9) implements it in production. A nil
// Publisher is valid and simply drops events, which keeps the dispatcher
// testable without a gateway.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, name models.EventName, payload any)
}

// noopPublisher drops everything; used when a Dispatcher is built with a
// nil Publisher.
type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, sessionID string, name models.EventName, payload any) {
}

func (d *Dispatcher) publish(ctx context.Context, sessionID string, name models.EventName, payload any) {
	d.publisher.Publish(ctx, sessionID, name, payload)
}
