package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/stark/internal/memory"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

func newTestManager(windowSize int) (*Manager, *storage.Store) {
	store := storage.NewMemoryStore()
	w := memory.NewWriter(store.Memories, nil)
	return NewManager(store.Sessions, store.Messages, w, windowSize, DefaultMailboxCapacity), store
}

func TestGetOrCreateCreatesSessionOnFirstUse(t *testing.T) {
	m, _ := newTestManager(0)
	ctx := context.Background()

	v, err := m.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if v.Session.IdentityID != "ident-1" {
		t.Fatalf("Session identity_id = %q, want ident-1", v.Session.IdentityID)
	}

	again, err := m.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")
	if err != nil {
		t.Fatalf("GetOrCreate() second call error = %v", err)
	}
	if again != v {
		t.Fatalf("GetOrCreate() returned a different View on second call")
	}
}

func TestAppendAssignsSeqAndPersists(t *testing.T) {
	m, store := newTestManager(0)
	ctx := context.Background()
	v, _ := m.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")

	msg := &models.Message{ID: "msg-1", Role: models.RoleUser, Content: "hello"}
	if err := m.Append(ctx, v, msg); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if msg.Seq != 1 {
		t.Fatalf("Append() seq = %d, want 1", msg.Seq)
	}

	got, err := store.Messages.ListBySession(ctx, v.Session.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("ListBySession() = %+v, want one message 'hello'", got)
	}

	_, transcript := v.Snapshot()
	if len(transcript) != 1 {
		t.Fatalf("live transcript length = %d, want 1", len(transcript))
	}
}

func TestAppendCompactsOverflowIntoSessionSummary(t *testing.T) {
	m, store := newTestManager(2)
	ctx := context.Background()
	v, _ := m.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")

	for i := 0; i < 5; i++ {
		msg := &models.Message{Role: models.RoleUser, Content: "message"}
		if err := m.Append(ctx, v, msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	_, transcript := v.Snapshot()
	if len(transcript) != 2 {
		t.Fatalf("live transcript length = %d, want 2 (windowSize)", len(transcript))
	}

	summaries, err := store.Memories.ListByIdentity(ctx, "ident-1", []models.MemoryType{models.MemorySessionSummary}, 0)
	if err != nil {
		t.Fatalf("ListByIdentity() error = %v", err)
	}
	if len(summaries) == 0 {
		t.Fatalf("expected at least one session_summary memory from overflow compaction")
	}
}

func TestResetClearsTranscriptButPreservesIdentity(t *testing.T) {
	m, _ := newTestManager(0)
	ctx := context.Background()
	v, _ := m.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")

	for i := 0; i < 3; i++ {
		m.Append(ctx, v, &models.Message{Role: models.RoleUser, Content: "x"})
	}
	v.Session.State = models.StateAwaitingUserConfirm
	v.Session.PendingConfirmation = &models.PendingConfirmation{ToolCallID: "call-1", RequestedAt: time.Now()}

	if err := m.Reset(ctx, v); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	sess, transcript := v.Snapshot()
	if len(transcript) != 0 {
		t.Fatalf("transcript after reset = %d entries, want 0", len(transcript))
	}
	if sess.State != models.StateIdle {
		t.Fatalf("state after reset = %q, want idle", sess.State)
	}
	if sess.PendingConfirmation != nil {
		t.Fatalf("PendingConfirmation after reset = %+v, want nil", sess.PendingConfirmation)
	}
	if sess.IdentityID != "ident-1" {
		t.Fatalf("IdentityID after reset = %q, want preserved ident-1", sess.IdentityID)
	}
}

func TestResetDoesNotReplayOldMessagesOnReload(t *testing.T) {
	m, store := newTestManager(0)
	ctx := context.Background()
	v, _ := m.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")

	m.Append(ctx, v, &models.Message{Role: models.RoleUser, Content: "before reset"})
	if err := m.Reset(ctx, v); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	m.Append(ctx, v, &models.Message{Role: models.RoleUser, Content: "after reset"})

	// Force a reload from storage by evicting the cached view and asking
	// for it again through a fresh Manager sharing the same stores.
	m2 := NewManager(store.Sessions, store.Messages, nil, 0, DefaultMailboxCapacity)
	reloaded, err := m2.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")
	if err != nil {
		t.Fatalf("GetOrCreate() on reload error = %v", err)
	}
	_, transcript := reloaded.Snapshot()
	if len(transcript) != 1 || transcript[0].Content != "after reset" {
		t.Fatalf("reloaded transcript = %+v, want only the post-reset message", transcript)
	}
}

func TestEnqueueRespectsMailboxCapacity(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store.Sessions, store.Messages, nil, 0, 1)
	ctx := context.Background()
	v, _ := m.GetOrCreate(ctx, models.ChannelSlack, "conv-1", "ident-1")

	if ok := m.Enqueue(v, Inbound{Content: "first", ReceivedAt: time.Now()}); !ok {
		t.Fatalf("Enqueue() first send should succeed")
	}
	if ok := m.Enqueue(v, Inbound{Content: "second", ReceivedAt: time.Now()}); ok {
		t.Fatalf("Enqueue() on a full mailbox should report false")
	}

	received := <-v.Inbound()
	if received.Content != "first" {
		t.Fatalf("Inbound() = %q, want 'first'", received.Content)
	}
}
