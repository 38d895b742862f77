package memory

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

func TestCompactIdentityMergesOldDailyLogs(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	m1 := &models.Memory{ID: "log-1", MemoryType: models.MemoryDailyLog, Content: "had coffee", Importance: 3, IdentityID: "ident-1", CreatedAt: old, ValidFrom: old}
	m2 := &models.Memory{ID: "log-2", MemoryType: models.MemoryDailyLog, Content: "read a book", Importance: 4, IdentityID: "ident-1", CreatedAt: old, ValidFrom: old}
	if err := store.Create(ctx, m1); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, m2); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A recent log should be left alone.
	w.Remember(ctx, RememberInput{MemoryType: models.MemoryDailyLog, Content: "just happened", Importance: 2, IdentityID: "ident-1"})

	c := NewCompactor(store, w, 24*time.Hour)
	result, err := c.CompactIdentity(ctx, "ident-1")
	if err != nil {
		t.Fatalf("CompactIdentity() error = %v", err)
	}
	if result == nil {
		t.Fatalf("CompactIdentity() returned nil, want a compaction memory")
	}
	if result.MemoryType != models.MemoryCompaction {
		t.Fatalf("CompactIdentity() type = %q, want compaction", result.MemoryType)
	}

	for _, id := range []string{"log-1", "log-2"} {
		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
		if got.SupersededBy != result.ID {
			t.Fatalf("log %s not superseded by compaction result", id)
		}
	}

	logs, err := store.ListByIdentity(ctx, "ident-1", []models.MemoryType{models.MemoryDailyLog}, 0)
	if err != nil {
		t.Fatalf("ListByIdentity() error = %v", err)
	}
	liveCount := 0
	for _, m := range logs {
		if m.ValidUntil == nil {
			liveCount++
		}
	}
	if liveCount != 1 {
		t.Fatalf("live daily_log count = %d, want 1 (only the recent entry)", liveCount)
	}
}

func TestCompactIdentityIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	m1 := &models.Memory{ID: "log-1", MemoryType: models.MemoryDailyLog, Content: "had coffee", Importance: 3, IdentityID: "ident-1", CreatedAt: old, ValidFrom: old}
	if err := store.Create(ctx, m1); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	c := NewCompactor(store, w, 24*time.Hour)
	first, err := c.CompactIdentity(ctx, "ident-1")
	if err != nil {
		t.Fatalf("CompactIdentity() first run error = %v", err)
	}
	if first == nil {
		t.Fatalf("CompactIdentity() first run returned nil")
	}

	second, err := c.CompactIdentity(ctx, "ident-1")
	if err != nil {
		t.Fatalf("CompactIdentity() second run error = %v", err)
	}
	if second != nil {
		t.Fatalf("CompactIdentity() second run = %+v, want nil (no eligible uncompacted logs left)", second)
	}
}

func TestCompactIdentityNoEligibleLogsReturnsNil(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	ctx := context.Background()

	w.Remember(ctx, RememberInput{MemoryType: models.MemoryDailyLog, Content: "recent", Importance: 3, IdentityID: "ident-1"})

	c := NewCompactor(store, w, 24*time.Hour)
	result, err := c.CompactIdentity(ctx, "ident-1")
	if err != nil {
		t.Fatalf("CompactIdentity() error = %v", err)
	}
	if result != nil {
		t.Fatalf("CompactIdentity() = %+v, want nil when nothing is old enough", result)
	}
}

func TestSchedulerRunOnceCompactsEachListedIdentity(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	for _, ident := range []string{"ident-1", "ident-2"} {
		m := &models.Memory{ID: ident + "-log", MemoryType: models.MemoryDailyLog, Content: "old log", Importance: 3, IdentityID: ident, CreatedAt: old, ValidFrom: old}
		if err := store.Create(ctx, m); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	c := NewCompactor(store, w, 24*time.Hour)
	lister := func(ctx context.Context) ([]string, error) { return []string{"ident-1", "ident-2"}, nil }
	s, err := NewScheduler(c, lister, "0 3 * * *")
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.runOnce()

	for _, ident := range []string{"ident-1", "ident-2"} {
		got, err := store.Get(ctx, ident+"-log")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.SupersededBy == "" {
			t.Fatalf("identity %s was not compacted by scheduled run", ident)
		}
	}
}

func TestNewSchedulerRejectsInvalidCronSpec(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	c := NewCompactor(store, w, 24*time.Hour)
	lister := func(ctx context.Context) ([]string, error) { return nil, nil }

	if _, err := NewScheduler(c, lister, "not-a-cron-spec"); err == nil {
		t.Fatalf("NewScheduler() with invalid spec should error")
	}
}
