package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

// Writer orchestrates the memory write path (§4.5): stamping valid_from,
// embedding content, and superseding the existing memory whose ID is given
// in RememberInput.Replaces. Importance is clamped by the store's Create.
type Writer struct {
	store    storage.MemoryStore
	embedder EmbeddingProvider
}

// NewWriter returns a Writer backed by store. A nil embedder falls back to
// DeterministicEmbedder.
func NewWriter(store storage.MemoryStore, embedder EmbeddingProvider) *Writer {
	if embedder == nil {
		embedder = DeterministicEmbedder{}
	}
	return &Writer{store: store, embedder: embedder}
}

// RememberInput is the caller-supplied half of a new memory; ID, CreatedAt,
// ValidFrom, and Embedding are filled in by Remember.
type RememberInput struct {
	MemoryType        models.MemoryType
	Content           string
	Importance        int
	IdentityID        string
	EntityType        string
	EntityName        string
	SourceType        models.SourceType
	SourceChannelType models.ChannelType
	// Replaces, if set, is the ID of an existing memory this one supersedes.
	Replaces string
}

// Remember writes a new memory, superseding Replaces if set. Importance
// clamping happens in the store (§4.5); Remember's own job is ID
// assignment, timestamps, embedding, and the supersession side effect.
func (w *Writer) Remember(ctx context.Context, in RememberInput) (*models.Memory, error) {
	if in.IdentityID == "" {
		return nil, fmt.Errorf("identity_id is required")
	}
	if in.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	now := time.Now()
	vec, err := w.embedder.Embed(ctx, in.Content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	m := &models.Memory{
		ID:                uuid.NewString(),
		MemoryType:        in.MemoryType,
		Content:           in.Content,
		Importance:        in.Importance,
		IdentityID:        in.IdentityID,
		EntityType:        in.EntityType,
		EntityName:        in.EntityName,
		SourceType:        in.SourceType,
		SourceChannelType: in.SourceChannelType,
		CreatedAt:         now,
		ValidFrom:         now,
		Embedding:         vec,
	}

	if err := w.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}

	if in.Replaces != "" {
		if err := w.store.Supersede(ctx, in.Replaces, m.ID, now); err != nil {
			return nil, fmt.Errorf("supersede %s: %w", in.Replaces, err)
		}
	}

	return m, nil
}

// Merge combines ids into a single new memory (§4.5): every input is marked
// superseded by the result, whose importance is the max of the inputs and
// whose type is long_term unless every input shares one more specific
// non-daily_log type.
func (w *Writer) Merge(ctx context.Context, ids []string, newContent string) (*models.Memory, error) {
	return w.mergeAs(ctx, ids, newContent, "")
}

// mergeAs is Merge with an optional forced result type. An empty override
// falls back to the §4.5 type-inference rule; Compactor uses the override to
// force MemoryCompaction regardless of what the daily_log inputs would infer
// to on their own.
func (w *Writer) mergeAs(ctx context.Context, ids []string, newContent string, override models.MemoryType) (*models.Memory, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("merge requires at least one source memory")
	}

	inputs := make([]*models.Memory, 0, len(ids))
	for _, id := range ids {
		m, err := w.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", id, err)
		}
		inputs = append(inputs, m)
	}

	maxImportance := 0
	for _, m := range inputs {
		if m.Importance > maxImportance {
			maxImportance = m.Importance
		}
	}

	memType := models.MemoryLongTerm
	sharedType := inputs[0].MemoryType
	uniform := sharedType != models.MemoryDailyLog
	for _, m := range inputs[1:] {
		if m.MemoryType != sharedType {
			uniform = false
			break
		}
	}
	if uniform {
		memType = sharedType
	}
	if override != "" {
		memType = override
	}

	now := time.Now()
	vec, err := w.embedder.Embed(ctx, newContent)
	if err != nil {
		return nil, fmt.Errorf("embed merged content: %w", err)
	}

	result := &models.Memory{
		ID:         uuid.NewString(),
		MemoryType: memType,
		Content:    newContent,
		Importance: maxImportance,
		IdentityID: inputs[0].IdentityID,
		SourceType: models.SourceInferred,
		CreatedAt:  now,
		ValidFrom:  now,
		Embedding:  vec,
	}

	if err := w.store.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("create merged memory: %w", err)
	}

	for _, id := range ids {
		if err := w.store.Supersede(ctx, id, result.ID, now); err != nil {
			return nil, fmt.Errorf("supersede %s: %w", id, err)
		}
	}

	return result, nil
}
