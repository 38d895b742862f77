package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

func newTestResolver() (*Resolver, *storage.Store) {
	store := storage.NewMemoryStore()
	return NewResolver(store.Identities, store.Memories, store.Sessions), store
}

func TestResolveCreatesIdentityOnFirstSight(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	id, err := r.Resolve(ctx, models.ChannelSlack, "u1", "Ada")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id == "" {
		t.Fatalf("Resolve() returned empty identity_id")
	}

	again, err := r.Resolve(ctx, models.ChannelSlack, "u1", "Ada")
	if err != nil {
		t.Fatalf("Resolve() second call error = %v", err)
	}
	if again != id {
		t.Fatalf("Resolve() returned %q on second call, want %q (same identity)", again, id)
	}
}

func TestResolveDifferentAccountsGetDifferentIdentities(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	a, _ := r.Resolve(ctx, models.ChannelSlack, "u1", "Ada")
	b, _ := r.Resolve(ctx, models.ChannelDiscord, "u2", "Bob")
	if a == b {
		t.Fatalf("Resolve() gave the same identity to two unrelated accounts")
	}
}

func TestLinkAttachesAdditionalAccount(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	id, _ := r.Resolve(ctx, models.ChannelSlack, "u1", "Ada")
	if err := r.Link(ctx, id, models.ChannelDiscord, "u1-discord", "Ada"); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	resolved, err := r.Resolve(ctx, models.ChannelDiscord, "u1-discord", "Ada")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved != id {
		t.Fatalf("Resolve() on linked account = %q, want %q", resolved, id)
	}
}

func TestLinkFailsWhenPlatformPairBoundElsewhere(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	idA, _ := r.Resolve(ctx, models.ChannelSlack, "u1", "Ada")
	idB, _ := r.Resolve(ctx, models.ChannelDiscord, "u2", "Bob")

	err := r.Link(ctx, idB, models.ChannelSlack, "u1", "Ada")
	if !errors.Is(err, storage.ErrAlreadyLinked) {
		t.Fatalf("Link() error = %v, want ErrAlreadyLinked", err)
	}
	_ = idA
}

func TestMergeRejectsSameOrEmptyIdentities(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	if err := r.Merge(ctx, "a", "a"); err == nil {
		t.Fatalf("Merge() with identical ids should error")
	}
	if err := r.Merge(ctx, "", "a"); err == nil {
		t.Fatalf("Merge() with empty winner should error")
	}
}

func TestMergeReparentsMemoriesSessionsAndTombstonesLoser(t *testing.T) {
	r, store := newTestResolver()
	ctx := context.Background()

	winner, _ := r.Resolve(ctx, models.ChannelSlack, "u1", "Ada")
	loser, _ := r.Resolve(ctx, models.ChannelDiscord, "u2", "Ada-alt")

	mem := &models.Memory{ID: "mem-1", IdentityID: loser, Content: "likes tea", Importance: 5, CreatedAt: time.Now()}
	if err := store.Memories.Create(ctx, mem); err != nil {
		t.Fatalf("Create memory error = %v", err)
	}
	sess := &models.Session{ID: "sess-1", ChannelType: models.ChannelDiscord, PlatformConvID: "conv-1", IdentityID: loser, State: models.StateIdle, CreatedAt: time.Now(), LastActiveAt: time.Now()}
	if err := store.Sessions.Create(ctx, sess); err != nil {
		t.Fatalf("Create session error = %v", err)
	}

	if err := r.Merge(ctx, winner, loser); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	gotMem, err := store.Memories.Get(ctx, "mem-1")
	if err != nil {
		t.Fatalf("Get memory error = %v", err)
	}
	if gotMem.IdentityID != winner {
		t.Fatalf("memory identity_id = %q, want winner %q", gotMem.IdentityID, winner)
	}

	gotSess, err := store.Sessions.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get session error = %v", err)
	}
	if gotSess.IdentityID != winner {
		t.Fatalf("session identity_id = %q, want winner %q", gotSess.IdentityID, winner)
	}

	loserIdentity, err := store.Identities.Get(ctx, loser)
	if err != nil {
		t.Fatalf("Get loser identity error = %v", err)
	}
	if loserIdentity.MergedInto != winner {
		t.Fatalf("loser MergedInto = %q, want %q", loserIdentity.MergedInto, winner)
	}

	resolved, err := r.Resolve(ctx, models.ChannelDiscord, "u2", "Ada-alt")
	if err != nil {
		t.Fatalf("Resolve() after merge error = %v", err)
	}
	if resolved != winner {
		t.Fatalf("Resolve() of loser's linked account after merge = %q, want winner %q", resolved, winner)
	}
}
