package memory

import (
	"context"
	"sort"
	"time"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

// Hybrid score weights (§4.5 defaults).
const (
	weightBM25       = 0.45
	weightVector     = 0.35
	weightImportance = 0.10
	weightRecency    = 0.10
)

// RetrieveOptions parameterizes retrieve() beyond the plain query text
// (§4.5's filters: memory_type, min_importance, include_superseded, as_of).
type RetrieveOptions struct {
	Types             []models.MemoryType
	MinImportance     int
	IncludeSuperseded bool
	AsOf              *time.Time
	K                 int
}

// Retriever implements the read path of the memory subsystem: hybrid
// ranking over the storage layer's partial scores plus this package's
// embedding-based vector-cosine term.
type Retriever struct {
	store    storage.MemoryStore
	embedder EmbeddingProvider
}

// NewRetriever returns a Retriever backed by store. A nil embedder falls
// back to DeterministicEmbedder.
func NewRetriever(store storage.MemoryStore, embedder EmbeddingProvider) *Retriever {
	if embedder == nil {
		embedder = DeterministicEmbedder{}
	}
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve runs retrieve(query, filters, k) → ranked[Memory] (§4.5).
func (r *Retriever) Retrieve(ctx context.Context, identityID, queryText string, opts RetrieveOptions) ([]models.ScoredMemory, error) {
	var candidates []models.ScoredMemory
	var err error

	if opts.IncludeSuperseded || opts.AsOf != nil {
		candidates, err = r.temporalCandidates(ctx, identityID, queryText, opts)
	} else {
		candidates, err = r.store.Search(ctx, models.MemoryQuery{
			IdentityID: identityID,
			QueryText:  queryText,
			Types:      opts.Types,
			Limit:      0, // rank the full candidate set ourselves before truncating to K
		})
	}
	if err != nil {
		return nil, err
	}

	queryVec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if opts.MinImportance > 0 && c.Memory.Importance < opts.MinImportance {
			continue
		}
		c.VectorCosine = cosineSimilarity(queryVec, c.Memory.Embedding)
		c.Score = weightBM25*c.BM25Norm + weightVector*c.VectorCosine +
			weightImportance*c.ImportanceNorm + weightRecency*c.RecencyNorm
		filtered = append(filtered, c)
	}

	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
			return a.Memory.CreatedAt.After(b.Memory.CreatedAt)
		}
		if a.Memory.Importance != b.Memory.Importance {
			return a.Memory.Importance > b.Memory.Importance
		}
		return a.Memory.ID < b.Memory.ID
	})

	k := opts.K
	if k > 0 && len(filtered) > k {
		filtered = filtered[:k]
	}
	return filtered, nil
}

// Search adapts Retrieve to the builtin.Retriever interface the
// memory_search tool depends on, using the default (non-temporal,
// no-min-importance) retrieval options.
func (r *Retriever) Search(ctx context.Context, q models.MemoryQuery) ([]models.ScoredMemory, error) {
	return r.Retrieve(ctx, q.IdentityID, q.QueryText, RetrieveOptions{Types: q.Types, K: q.Limit})
}

// temporalCandidates handles include_superseded and as_of queries, which
// storage.MemoryStore.Search cannot serve since it only ever returns
// currently-live memories. ListByIdentity returns every memory regardless
// of supersession, so the temporal window is applied here.
func (r *Retriever) temporalCandidates(ctx context.Context, identityID, queryText string, opts RetrieveOptions) ([]models.ScoredMemory, error) {
	all, err := r.store.ListByIdentity(ctx, identityID, opts.Types, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	asOf := now
	if opts.AsOf != nil {
		asOf = *opts.AsOf
	}

	terms := splitTerms(queryText)
	var out []models.ScoredMemory
	for _, m := range all {
		if opts.AsOf != nil {
			if m.ValidFrom.After(asOf) {
				continue
			}
			if m.ValidUntil != nil && !m.ValidUntil.After(asOf) {
				continue
			}
		} else if !opts.IncludeSuperseded && m.ValidUntil != nil {
			continue
		}

		ageDays := now.Sub(m.CreatedAt).Hours() / 24
		out = append(out, models.ScoredMemory{
			Memory:         *m,
			BM25Norm:       termOverlap(terms, m.Content),
			ImportanceNorm: float64(m.Importance) / 10.0,
			RecencyNorm:    recencyDecay(ageDays),
		})
	}
	return out, nil
}
