package models

import (
	"encoding/json"
	"time"
)

// MemoryType classifies an entry in the Memory Subsystem (§3).
type MemoryType string

const (
	MemoryDailyLog       MemoryType = "daily_log"
	MemoryLongTerm       MemoryType = "long_term"
	MemorySessionSummary MemoryType = "session_summary"
	MemoryCompaction     MemoryType = "compaction"
	MemoryPreference     MemoryType = "preference"
	MemoryFact           MemoryType = "fact"
	MemoryEntity         MemoryType = "entity"
	MemoryTask           MemoryType = "task"
)

// SourceType records whether a memory was stated outright or derived.
type SourceType string

const (
	SourceExplicit SourceType = "explicit"
	SourceInferred SourceType = "inferred"
)

// Memory is one hybrid-retrievable fact, preference, or summary attached to
// an identity. Importance is clamped to [1,10] on write (§4.5). A memory
// superseded by a later write is not deleted; SupersededBy points at the
// replacement and ValidUntil is stamped so retrieval can exclude it.
type Memory struct {
	ID                string          `json:"id"`
	MemoryType        MemoryType      `json:"memory_type"`
	Content           string          `json:"content"`
	Importance        int             `json:"importance"`
	IdentityID        string          `json:"identity_id"`
	EntityType        string          `json:"entity_type,omitempty"`
	EntityName        string          `json:"entity_name,omitempty"`
	SourceType        SourceType      `json:"source_type"`
	SourceChannelType ChannelType     `json:"source_channel_type,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	ValidFrom         time.Time       `json:"valid_from"`
	ValidUntil        *time.Time      `json:"valid_until,omitempty"`
	SupersededBy      string          `json:"superseded_by,omitempty"`
	Embedding         []float32       `json:"-"`
}

// ClampImportance forces Importance into [1,10], per write-path invariant.
func (m *Memory) ClampImportance() {
	if m.Importance < 1 {
		m.Importance = 1
	}
	if m.Importance > 10 {
		m.Importance = 10
	}
}

// MemoryQuery parameterizes hybrid retrieval (BM25 + vector + importance +
// recency, §4.5).
type MemoryQuery struct {
	IdentityID string
	QueryText  string
	Limit      int
	Types      []MemoryType
}

// ScoredMemory pairs a retrieved memory with its composite relevance score
// and the per-signal breakdown used to compute it, for diagnostics.
type ScoredMemory struct {
	Memory        Memory  `json:"memory"`
	Score         float64 `json:"score"`
	BM25Norm      float64 `json:"bm25_norm"`
	VectorCosine  float64 `json:"vector_cosine"`
	ImportanceNorm float64 `json:"importance_norm"`
	RecencyNorm   float64 `json:"recency_norm"`
}

// CompactionRun is an idempotent record of one compaction pass, keyed on
// (identity_id, date range) so a retried cron tick is a no-op (§4.5, §7).
type CompactionRun struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	RangeFrom  time.Time `json:"range_from"`
	RangeTo    time.Time `json:"range_to"`
	ResultID   string    `json:"result_memory_id"`
	RanAt      time.Time `json:"ran_at"`
}

// MarshalEmbedding serialises Embedding to the JSON form used by stores that
// lack a native vector column (the Postgres store's JSONB embedding column).
func (m *Memory) MarshalEmbedding() (json.RawMessage, error) {
	if m.Embedding == nil {
		return nil, nil
	}
	return json.Marshal(m.Embedding)
}
