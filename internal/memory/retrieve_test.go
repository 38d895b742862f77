package memory

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

func TestRetrieveRanksByHybridScore(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	r := NewRetriever(store, nil)
	ctx := context.Background()

	_, err := w.Remember(ctx, RememberInput{
		MemoryType: models.MemoryFact, Content: "favorite language is Go", Importance: 8, IdentityID: "ident-1",
	})
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	_, err = w.Remember(ctx, RememberInput{
		MemoryType: models.MemoryFact, Content: "enjoys hiking on weekends", Importance: 3, IdentityID: "ident-1",
	})
	if err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	results, err := r.Retrieve(ctx, "ident-1", "favorite language Go", RetrieveOptions{K: 5})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Retrieve() returned %d results, want 2", len(results))
	}
	if results[0].Memory.Content != "favorite language is Go" {
		t.Fatalf("Retrieve()[0] = %q, want the Go-related memory ranked first", results[0].Memory.Content)
	}
}

func TestRetrieveAppliesMinImportanceFilter(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	r := NewRetriever(store, nil)
	ctx := context.Background()

	w.Remember(ctx, RememberInput{MemoryType: models.MemoryFact, Content: "low importance note", Importance: 2, IdentityID: "ident-1"})
	w.Remember(ctx, RememberInput{MemoryType: models.MemoryFact, Content: "high importance note", Importance: 9, IdentityID: "ident-1"})

	results, err := r.Retrieve(ctx, "ident-1", "note", RetrieveOptions{MinImportance: 5, K: 10})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Retrieve() returned %d results, want 1 after min_importance filter", len(results))
	}
	if results[0].Memory.Content != "high importance note" {
		t.Fatalf("Retrieve() returned %q, want the high-importance note", results[0].Memory.Content)
	}
}

func TestRetrieveExcludesSupersededByDefault(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	r := NewRetriever(store, nil)
	ctx := context.Background()

	old, _ := w.Remember(ctx, RememberInput{MemoryType: models.MemoryPreference, Content: "lives in Austin", Importance: 4, IdentityID: "ident-1"})
	w.Remember(ctx, RememberInput{MemoryType: models.MemoryPreference, Content: "lives in Denver", Importance: 4, IdentityID: "ident-1", Replaces: old.ID})

	results, err := r.Retrieve(ctx, "ident-1", "lives", RetrieveOptions{K: 10})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	for _, res := range results {
		if res.Memory.ID == old.ID {
			t.Fatalf("Retrieve() included superseded memory %s by default", old.ID)
		}
	}
}

func TestRetrieveIncludeSupersededReturnsFullHistory(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	r := NewRetriever(store, nil)
	ctx := context.Background()

	old, _ := w.Remember(ctx, RememberInput{MemoryType: models.MemoryPreference, Content: "lives in Austin", Importance: 4, IdentityID: "ident-1"})
	w.Remember(ctx, RememberInput{MemoryType: models.MemoryPreference, Content: "lives in Denver", Importance: 4, IdentityID: "ident-1", Replaces: old.ID})

	results, err := r.Retrieve(ctx, "ident-1", "lives", RetrieveOptions{IncludeSuperseded: true, K: 10})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Retrieve() with IncludeSuperseded returned %d results, want 2", len(results))
	}
}

func TestRetrieveAsOfReturnsWhatWasTrueAtThatTime(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	r := NewRetriever(store, nil)
	ctx := context.Background()

	old, _ := w.Remember(ctx, RememberInput{MemoryType: models.MemoryPreference, Content: "lives in Austin", Importance: 4, IdentityID: "ident-1"})
	asOf := time.Now()
	time.Sleep(time.Millisecond)
	w.Remember(ctx, RememberInput{MemoryType: models.MemoryPreference, Content: "lives in Denver", Importance: 4, IdentityID: "ident-1", Replaces: old.ID})

	results, err := r.Retrieve(ctx, "ident-1", "lives", RetrieveOptions{AsOf: &asOf, K: 10})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Retrieve() as_of returned %d results, want 1", len(results))
	}
	if results[0].Memory.Content != "lives in Austin" {
		t.Fatalf("Retrieve() as_of returned %q, want the memory live at that time", results[0].Memory.Content)
	}
}

func TestRetrieveTieBreaksOnCreatedAtThenImportanceThenID(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	r := NewRetriever(store, nil)
	ctx := context.Background()

	now := time.Now()
	m1 := &models.Memory{ID: "b", MemoryType: models.MemoryFact, Content: "tie", Importance: 5, IdentityID: "ident-1", CreatedAt: now, ValidFrom: now}
	m2 := &models.Memory{ID: "a", MemoryType: models.MemoryFact, Content: "tie", Importance: 5, IdentityID: "ident-1", CreatedAt: now, ValidFrom: now}
	if err := store.Create(ctx, m1); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, m2); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	results, err := r.Retrieve(ctx, "ident-1", "", RetrieveOptions{K: 10})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Retrieve() returned %d results, want 2", len(results))
	}
	if results[0].Memory.ID != "a" {
		t.Fatalf("Retrieve() tie-break order = %q first, want %q (lower id)", results[0].Memory.ID, "a")
	}
}

func TestRetrieveKTruncatesResults(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	r := NewRetriever(store, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		w.Remember(ctx, RememberInput{MemoryType: models.MemoryFact, Content: "note", Importance: 5, IdentityID: "ident-1"})
	}

	results, err := r.Retrieve(ctx, "ident-1", "note", RetrieveOptions{K: 2})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Retrieve() with K=2 returned %d results, want 2", len(results))
	}
}

func TestSearchAdaptsToBuiltinRetrieverInterface(t *testing.T) {
	store := storage.NewMemoryStore().Memories
	w := NewWriter(store, nil)
	r := NewRetriever(store, nil)
	ctx := context.Background()

	w.Remember(ctx, RememberInput{MemoryType: models.MemoryFact, Content: "uses a mechanical keyboard", Importance: 5, IdentityID: "ident-1"})

	results, err := r.Search(ctx, models.MemoryQuery{IdentityID: "ident-1", QueryText: "keyboard", Limit: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(results))
	}
}
