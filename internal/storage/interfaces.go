// Package storage defines the persistence contracts used by the rest of
// the runtime and the two backends that satisfy them: a Postgres-backed
// store for production and an in-memory store for tests.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/haasonsaas/stark/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrAlreadyLinked = errors.New("account already linked to a different identity")
)

// Unavailable wraps a backend error that is plausibly transient (connection
// refused, timeout) so callers can distinguish it from a semantic failure
// like ErrNotFound.
type Unavailable struct {
	Op  string
	Err error
}

func (u *Unavailable) Error() string { return "storage unavailable: " + u.Op + ": " + u.Err.Error() }
func (u *Unavailable) Unwrap() error { return u.Err }

// IntegrityViolation wraps a constraint violation (unique key, foreign key)
// that indicates a caller bug rather than a transient condition.
type IntegrityViolation struct {
	Op  string
	Err error
}

func (i *IntegrityViolation) Error() string {
	return "integrity violation: " + i.Op + ": " + i.Err.Error()
}
func (i *IntegrityViolation) Unwrap() error { return i.Err }

// SessionStore persists session records keyed by id and by (channel,
// platform conversation id).
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	GetByKey(ctx context.Context, channelType models.ChannelType, platformConvID string) (*models.Session, error)
	Update(ctx context.Context, s *models.Session) error
	ListActive(ctx context.Context, since time.Time, limit int) ([]*models.Session, error)
	// ReparentIdentity rebinds every session owned by oldID to newID, used
	// by identity merge (§4.6).
	ReparentIdentity(ctx context.Context, oldID, newID string) error
}

// MessageStore persists the per-session transcript.
type MessageStore interface {
	Append(ctx context.Context, m *models.Message) error
	ListBySession(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]*models.Message, error)
	NextSeq(ctx context.Context, sessionID string) (int64, error)
}

// MemoryStore persists and retrieves memory entries, including the hybrid
// ranked search behind recall (§4.5).
type MemoryStore interface {
	Create(ctx context.Context, m *models.Memory) error
	Get(ctx context.Context, id string) (*models.Memory, error)
	Supersede(ctx context.Context, oldID, newID string, validUntil time.Time) error
	Search(ctx context.Context, q models.MemoryQuery) ([]models.ScoredMemory, error)
	ListByIdentity(ctx context.Context, identityID string, types []models.MemoryType, limit int) ([]*models.Memory, error)
	RecordCompaction(ctx context.Context, run *models.CompactionRun) error
	FindCompaction(ctx context.Context, identityID string, from, to time.Time) (*models.CompactionRun, error)
	// ReparentIdentity rebinds every memory owned by oldID to newID, used by
	// identity merge (§4.6).
	ReparentIdentity(ctx context.Context, oldID, newID string) error
}

// IdentityStore persists canonical identities and the linked-account index.
type IdentityStore interface {
	Create(ctx context.Context, id *models.Identity) error
	Get(ctx context.Context, id string) (*models.Identity, error)
	ResolveLink(ctx context.Context, channelType models.ChannelType, platformUserID string) (*models.LinkedAccount, error)
	Link(ctx context.Context, link *models.LinkedAccount) error
	Unlink(ctx context.Context, channelType models.ChannelType, platformUserID string) error
	ListLinks(ctx context.Context, identityID string) ([]*models.LinkedAccount, error)
	Merge(ctx context.Context, sourceID, destID string) error
}

// SkillStore persists per-workspace skill enable/disable overrides; skill
// manifests themselves live on disk and are owned by internal/skills.
type SkillStore interface {
	SetEnabled(ctx context.Context, name string, enabled bool) error
	ListOverrides(ctx context.Context) (map[string]bool, error)
}

// ToolAuditStore persists a record of every tool invocation.
type ToolAuditStore interface {
	Record(ctx context.Context, rec *models.ToolAuditRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ToolAuditRecord, error)
}

// TransactionStore persists queued web3 transactions and exposes the atomic
// claim used by the broadcaster worker to avoid double-submission.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.QueuedTransaction) error
	Get(ctx context.Context, id string) (*models.QueuedTransaction, error)
	UpdateStatus(ctx context.Context, id string, status models.TxStatus, txHash string) error
	ClaimNextPending(ctx context.Context) (*models.QueuedTransaction, error)
}

// SettingsStore persists the small key-value overlay the Config layer
// consults after environment variables (§4.11).
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Store groups every storage dependency the runtime wires together. Close
// releases the underlying connection pool, if any.
type Store struct {
	Sessions     SessionStore
	Messages     MessageStore
	Memories     MemoryStore
	Identities   IdentityStore
	Skills       SkillStore
	ToolAudit    ToolAuditStore
	Transactions TransactionStore
	Settings     SettingsStore

	// db is the raw connection pool behind a Postgres-backed Store. It is
	// nil for an in-memory Store built for tests. DB exposes it to callers
	// that need a *sql.DB directly, e.g. the Migrator.
	db *sql.DB

	closer func() error
}

// DB returns the raw connection pool backing a Postgres Store, or nil for
// an in-memory Store.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
