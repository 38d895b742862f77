package channels

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/haasonsaas/stark/pkg/models"
)

type fakeIdentityResolver struct {
	identityID string
	err        error
}

func (f *fakeIdentityResolver) Resolve(ctx context.Context, channelType models.ChannelType, platformUserID, displayName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.identityID, nil
}

type fakeSessionDriver struct {
	delivered []string
	err       error
}

func (f *fakeSessionDriver) Deliver(ctx context.Context, channelType models.ChannelType, platformConvID, identityID, text string, receivedAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, identityID+":"+text)
	return nil
}

func TestIngressHandleResolvesThenDelivers(t *testing.T) {
	identities := &fakeIdentityResolver{identityID: "ident-1"}
	driver := &fakeSessionDriver{}
	ig := NewIngress(identities, driver, nil)

	ig.Handle(InboundMessage{ChannelType: models.ChannelTelegram, PlatformConversationID: "conv-1", Text: "hi"})

	if len(driver.delivered) != 1 || driver.delivered[0] != "ident-1:hi" {
		t.Fatalf("driver.delivered = %v, want one entry for ident-1", driver.delivered)
	}
}

func TestIngressHandleStopsOnResolveFailure(t *testing.T) {
	identities := &fakeIdentityResolver{err: fmt.Errorf("resolve failed")}
	driver := &fakeSessionDriver{}
	ig := NewIngress(identities, driver, nil)

	ig.Handle(InboundMessage{ChannelType: models.ChannelTelegram, PlatformConversationID: "conv-1", Text: "hi"})

	if len(driver.delivered) != 0 {
		t.Fatalf("driver.delivered = %v, want none when identity resolution fails", driver.delivered)
	}
}
