package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// WebFetchTool fetches a URL and returns a truncated text body. It does not
// execute JavaScript or render a DOM; it is a plain HTTP GET.
type WebFetchTool struct {
	client   *http.Client
	maxChars int
}

// NewWebFetchTool builds a web_fetch tool with the given char cap (0 uses
// the default of 10000).
func NewWebFetchTool(maxChars int) *WebFetchTool {
	if maxChars <= 0 {
		maxChars = 10_000
	}
	return &WebFetchTool{client: &http.Client{Timeout: 15 * time.Second}, maxChars: maxChars}
}

func (t *WebFetchTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "web_fetch",
		Group:       models.GroupWeb,
		Description: "Fetch a URL over HTTP(S) and return its body as truncated text.",
		Enabled:     true,
		Timeout:     15 * time.Second,
		SideEffectClass: models.EffectNetwork,
		ArgumentSchema: []models.ArgumentField{
			{Name: "url", Type: "string", Required: true},
		},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	parsed, err := url.Parse(input.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("url must be an absolute http(s) URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &tools.Result{Content: fmt.Sprintf("request failed with status %d", resp.StatusCode), IsError: true}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxChars)*4))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	text := string(body)
	if len(text) > t.maxChars {
		text = text[:t.maxChars] + "\n...(truncated)"
	}
	return &tools.Result{Content: text}, nil
}

// SearchBackend is a pluggable search provider behind web_search.
type SearchBackend interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// SearchResult is one web_search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchTool performs a web search through a pluggable backend (SearXNG,
// Brave, or any other HTTP search API).
type WebSearchTool struct {
	backend            SearchBackend
	defaultResultCount int
}

// NewWebSearchTool builds a web_search tool against backend.
func NewWebSearchTool(backend SearchBackend) *WebSearchTool {
	return &WebSearchTool{backend: backend, defaultResultCount: 5}
}

func (t *WebSearchTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "web_search",
		Group:       models.GroupWeb,
		Description: "Search the web and return a list of results with titles, URLs, and snippets.",
		Enabled:     true,
		Timeout:     15 * time.Second,
		SideEffectClass: models.EffectNetwork,
		ArgumentSchema: []models.ArgumentField{
			{Name: "query", Type: "string", Required: true},
			{Name: "result_count", Type: "integer"},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Query       string `json:"query"`
		ResultCount int    `json:"result_count"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	count := input.ResultCount
	if count <= 0 {
		count = t.defaultResultCount
	}
	if t.backend == nil {
		return nil, fmt.Errorf("no search backend configured")
	}
	results, err := t.backend.Search(ctx, input.Query, count)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	return &tools.Result{Content: string(payload)}, nil
}
