package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

// Compactor groups daily_log memories older than a configurable cutoff into
// a single compaction memory, keyed idempotently on (identity_id,
// date_range) so a retried cron tick is a no-op (§4.5, §7).
type Compactor struct {
	writer *Writer
	store  storage.MemoryStore
	logger *slog.Logger

	olderThan time.Duration
}

// NewCompactor returns a Compactor that folds daily_log entries older than
// olderThan into a compaction memory.
func NewCompactor(store storage.MemoryStore, writer *Writer, olderThan time.Duration) *Compactor {
	return &Compactor{
		writer:    writer,
		store:     store,
		logger:    slog.Default().With("component", "memory.compactor"),
		olderThan: olderThan,
	}
}

// CompactIdentity runs one compaction pass for identityID. It returns the
// created compaction memory, or nil if there was nothing eligible to
// compact (or the window was already compacted).
func (c *Compactor) CompactIdentity(ctx context.Context, identityID string) (*models.Memory, error) {
	logs, err := c.store.ListByIdentity(ctx, identityID, []models.MemoryType{models.MemoryDailyLog}, 0)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}

	cutoff := time.Now().Add(-c.olderThan)
	var eligible []*models.Memory
	for _, m := range logs {
		if m.ValidUntil != nil {
			continue // already superseded, including by a prior compaction
		}
		if m.CreatedAt.Before(cutoff) {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	from, to := eligible[0].CreatedAt, eligible[0].CreatedAt
	for _, m := range eligible[1:] {
		if m.CreatedAt.Before(from) {
			from = m.CreatedAt
		}
		if m.CreatedAt.After(to) {
			to = m.CreatedAt
		}
	}

	if existing, err := c.store.FindCompaction(ctx, identityID, from, to); err == nil && existing != nil {
		c.logger.Debug("compaction already ran for window", "identity_id", identityID, "from", from, "to", to)
		return nil, nil
	} else if err != nil && err != storage.ErrNotFound {
		return nil, fmt.Errorf("check existing compaction: %w", err)
	}

	ids := make([]string, 0, len(eligible))
	var lines []string
	for _, m := range eligible {
		ids = append(ids, m.ID)
		lines = append(lines, m.Content)
	}

	summary := summarize(lines)
	result, err := c.writer.mergeAs(ctx, ids, summary, models.MemoryCompaction)
	if err != nil {
		return nil, fmt.Errorf("merge daily logs: %w", err)
	}

	run := &models.CompactionRun{
		IdentityID: identityID,
		RangeFrom:  from,
		RangeTo:    to,
		ResultID:   result.ID,
		RanAt:      time.Now(),
	}
	if err := c.store.RecordCompaction(ctx, run); err != nil {
		return nil, fmt.Errorf("record compaction: %w", err)
	}

	c.logger.Info("compacted daily logs", "identity_id", identityID, "count", len(eligible), "result_id", result.ID)
	return result, nil
}

// summarize renders compacted daily-log lines into the compaction memory's
// content. A real deployment would summarise via an LLM call; this
// concatenation is a placeholder that preserves every source line verbatim
// so nothing is lost ahead of wiring a provider-backed summariser.
func summarize(lines []string) string {
	return strings.Join(lines, "\n")
}

// IdentityLister supplies the set of identities a scheduled compaction pass
// should consider. internal/memory has no identity enumeration of its own;
// the caller (identity/session wiring) owns tracking which identities are
// active.
type IdentityLister func(ctx context.Context) ([]string, error)

// Scheduler drives Compactor.CompactIdentity on a cron cadence across every
// identity IdentityLister returns, per §4.5's "configurable cadence".
type Scheduler struct {
	compactor  *Compactor
	identities IdentityLister
	logger     *slog.Logger

	cron *cron.Cron
}

// NewScheduler builds a Scheduler. spec is a standard 5-field cron
// expression (e.g. "0 3 * * *" for daily at 03:00).
func NewScheduler(compactor *Compactor, identities IdentityLister, spec string) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{
		compactor:  compactor,
		identities: identities,
		logger:     slog.Default().With("component", "memory.scheduler"),
		cron:       c,
	}
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid compaction schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	ids, err := s.identities(ctx)
	if err != nil {
		s.logger.Warn("failed to list identities for compaction", "error", err)
		return
	}
	for _, id := range ids {
		if _, err := s.compactor.CompactIdentity(ctx, id); err != nil {
			s.logger.Warn("compaction failed", "identity_id", id, "error", err)
		}
	}
}

// Start begins the cron schedule.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule, waiting for any in-flight run to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
