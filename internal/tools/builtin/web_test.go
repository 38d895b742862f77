package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newEchoServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
}

func TestWebFetchReturnsBody(t *testing.T) {
	srv := newEchoServer("hello from upstream")
	defer srv.Close()

	tool := NewWebFetchTool(0)
	args, _ := json.Marshal(map[string]any{"url": srv.URL})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "hello from upstream") {
		t.Fatalf("content = %q", result.Content)
	}
}

func TestWebFetchRejectsNonHTTPScheme(t *testing.T) {
	tool := NewWebFetchTool(0)
	args, _ := json.Marshal(map[string]any{"url": "ftp://example.com/file"})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for non-http(s) scheme")
	}
}

func TestWebFetchTruncatesLongBody(t *testing.T) {
	srv := newEchoServer(strings.Repeat("x", 5000))
	defer srv.Close()

	tool := NewWebFetchTool(100)
	args, _ := json.Marshal(map[string]any{"url": srv.URL})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "truncated") {
		t.Fatalf("expected truncation marker, got %q", result.Content)
	}
}

func TestWebFetchSurfacesUpstreamClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool := NewWebFetchTool(0)
	args, _ := json.Marshal(map[string]any{"url": srv.URL})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for 404 upstream")
	}
}

type fakeSearchBackend struct {
	results []SearchResult
	err     error
}

func (f *fakeSearchBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestWebSearchReturnsResults(t *testing.T) {
	backend := &fakeSearchBackend{results: []SearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "The Go programming language"}}}
	tool := NewWebSearchTool(backend)

	args, _ := json.Marshal(map[string]any{"query": "golang"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "go.dev") {
		t.Fatalf("content = %q, want to contain go.dev", result.Content)
	}
}

func TestWebSearchRequiresQuery(t *testing.T) {
	tool := NewWebSearchTool(&fakeSearchBackend{})
	args, _ := json.Marshal(map[string]any{"query": "   "})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestWebSearchNoBackendConfigured(t *testing.T) {
	tool := NewWebSearchTool(nil)
	args, _ := json.Marshal(map[string]any{"query": "golang"})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error when no backend configured")
	}
}
