package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/stark/pkg/models"
)

type fakeRetriever struct {
	results []models.ScoredMemory
	err     error
	gotQ    models.MemoryQuery
}

func (f *fakeRetriever) Search(ctx context.Context, q models.MemoryQuery) ([]models.ScoredMemory, error) {
	f.gotQ = q
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestMemorySearchReturnsHits(t *testing.T) {
	retriever := &fakeRetriever{results: []models.ScoredMemory{
		{Memory: models.Memory{Content: "prefers dark mode", MemoryType: models.MemoryPreference}, Score: 0.9},
	}}
	tool := NewMemorySearchTool(retriever, "identity-1")

	args, _ := json.Marshal(map[string]any{"query": "preferences"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "dark mode") {
		t.Fatalf("content = %q", result.Content)
	}
	if retriever.gotQ.IdentityID != "identity-1" {
		t.Fatalf("identity id = %q, want identity-1", retriever.gotQ.IdentityID)
	}
	if retriever.gotQ.Limit != 10 {
		t.Fatalf("default limit = %d, want 10", retriever.gotQ.Limit)
	}
}

func TestMemorySearchRequiresQuery(t *testing.T) {
	tool := NewMemorySearchTool(&fakeRetriever{}, "identity-1")
	args, _ := json.Marshal(map[string]any{"query": ""})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestMemorySearchPropagatesRetrieverError(t *testing.T) {
	tool := NewMemorySearchTool(&fakeRetriever{err: errors.New("store unavailable")}, "identity-1")
	args, _ := json.Marshal(map[string]any{"query": "anything"})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error propagated from retriever")
	}
}

func TestMemorySearchNoRetrieverConfigured(t *testing.T) {
	tool := NewMemorySearchTool(nil, "identity-1")
	args, _ := json.Marshal(map[string]any{"query": "anything"})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error when no retriever configured")
	}
}
