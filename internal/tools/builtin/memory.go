package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// Retriever is the narrow surface the memory_search tool needs from the
// memory subsystem: run a hybrid query scoped to one identity.
type Retriever interface {
	Search(ctx context.Context, q models.MemoryQuery) ([]models.ScoredMemory, error)
}

// MemorySearchTool lets the model pull relevant long-term memories into
// the current turn on demand, independent of the automatic retrieval the
// dispatcher performs before each completion call.
type MemorySearchTool struct {
	retriever  Retriever
	identityID string
}

// NewMemorySearchTool builds a memory_search tool scoped to one identity.
// The dispatcher constructs one instance per turn/session since the
// identity is fixed for the lifetime of a conversation.
func NewMemorySearchTool(retriever Retriever, identityID string) *MemorySearchTool {
	return &MemorySearchTool{retriever: retriever, identityID: identityID}
}

func (t *MemorySearchTool) Spec() models.ToolSpec {
	return models.ToolSpec{
		Name:        "memory_search",
		Group:       models.GroupMemory,
		Description: "Search this identity's long-term memory for relevant facts, preferences, or past events.",
		Enabled:     true,
		Timeout:     5 * time.Second,
		SideEffectClass: models.EffectPureRead,
		ArgumentSchema: []models.ArgumentField{
			{Name: "query", Type: "string", Required: true},
			{Name: "limit", Type: "integer"},
		},
	}
}

func (t *MemorySearchTool) Execute(ctx context.Context, args json.RawMessage) (*tools.Result, error) {
	var input struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	if t.retriever == nil {
		return nil, fmt.Errorf("no memory retriever configured")
	}

	results, err := t.retriever.Search(ctx, models.MemoryQuery{
		IdentityID: t.identityID,
		QueryText:  input.Query,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	type hit struct {
		Content   string  `json:"content"`
		Type      string  `json:"type"`
		Score     float64 `json:"score"`
		ValidFrom string  `json:"valid_from,omitempty"`
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		h := hit{Content: r.Memory.Content, Type: string(r.Memory.MemoryType), Score: r.Score}
		if !r.Memory.ValidFrom.IsZero() {
			h.ValidFrom = r.Memory.ValidFrom.Format(time.RFC3339)
		}
		hits = append(hits, h)
	}
	payload, err := json.Marshal(hits)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}
	return &tools.Result{Content: string(payload)}, nil
}
