package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/haasonsaas/stark/pkg/models"
)

// NewPostgresStore opens a connection pool against dsn, applies config (or
// DefaultPostgresConfig if nil), and returns a Store backed by it. Callers
// are expected to have already run the migrations under migrations/.
func NewPostgresStore(dsn string, config *PostgresConfig) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		Sessions:     &pgSessionStore{db: db},
		Messages:     &pgMessageStore{db: db},
		Memories:     &pgMemoryStore{db: db},
		Identities:   &pgIdentityStore{db: db},
		Skills:       &pgSkillStore{db: db},
		ToolAudit:    &pgToolAuditStore{db: db},
		Transactions: &pgTransactionStore{db: db},
		Settings:     &pgSettingsStore{db: db},
		db:           db,
		closer:       db.Close,
	}, nil
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

// --- sessions ---

type pgSessionStore struct{ db *sql.DB }

func (s *pgSessionStore) Create(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session is required")
	}
	var pending []byte
	var err error
	if sess.PendingConfirmation != nil {
		pending, err = json.Marshal(sess.PendingConfirmation)
		if err != nil {
			return fmt.Errorf("marshal pending confirmation: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, channel_type, platform_conversation_id, identity_id, state, pending_confirmation, turn_counter, created_at, last_active_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sess.ID, sess.ChannelType, sess.PlatformConvID, sess.IdentityID, sess.State,
		pending, sess.TurnCounter, sess.CreatedAt, sess.LastActiveAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyExists
		}
		return &Unavailable{Op: "create session", Err: err}
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var sess models.Session
	var pending []byte
	if err := row.Scan(
		&sess.ID, &sess.ChannelType, &sess.PlatformConvID, &sess.IdentityID, &sess.State,
		&pending, &sess.TurnCounter, &sess.CreatedAt, &sess.LastActiveAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if len(pending) > 0 {
		var pc models.PendingConfirmation
		if err := json.Unmarshal(pending, &pc); err != nil {
			return nil, fmt.Errorf("unmarshal pending confirmation: %w", err)
		}
		sess.PendingConfirmation = &pc
	}
	return &sess, nil
}

func (s *pgSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel_type, platform_conversation_id, identity_id, state, pending_confirmation, turn_counter, created_at, last_active_at
		 FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (s *pgSessionStore) GetByKey(ctx context.Context, channelType models.ChannelType, platformConvID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel_type, platform_conversation_id, identity_id, state, pending_confirmation, turn_counter, created_at, last_active_at
		 FROM sessions WHERE channel_type = $1 AND platform_conversation_id = $2`, channelType, platformConvID)
	return scanSession(row)
}

func (s *pgSessionStore) Update(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session is required")
	}
	var pending []byte
	var err error
	if sess.PendingConfirmation != nil {
		pending, err = json.Marshal(sess.PendingConfirmation)
		if err != nil {
			return fmt.Errorf("marshal pending confirmation: %w", err)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET identity_id=$2, state=$3, pending_confirmation=$4, turn_counter=$5, last_active_at=$6
		 WHERE id=$1`,
		sess.ID, sess.IdentityID, sess.State, pending, sess.TurnCounter, sess.LastActiveAt,
	)
	if err != nil {
		return &Unavailable{Op: "update session", Err: err}
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgSessionStore) ListActive(ctx context.Context, since time.Time, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_type, platform_conversation_id, identity_id, state, pending_confirmation, turn_counter, created_at, last_active_at
		 FROM sessions WHERE last_active_at >= $1 ORDER BY last_active_at DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, &Unavailable{Op: "list active sessions", Err: err}
	}
	defer rows.Close()
	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *pgSessionStore) ReparentIdentity(ctx context.Context, oldID, newID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET identity_id = $1 WHERE identity_id = $2`, newID, oldID)
	if err != nil {
		return &Unavailable{Op: "reparent sessions", Err: err}
	}
	return nil
}

// --- messages ---

type pgMessageStore struct{ db *sql.DB }

func (s *pgMessageStore) Append(ctx context.Context, m *models.Message) error {
	if m == nil || m.SessionID == "" {
		return fmt.Errorf("message is required")
	}
	calls, err := json.Marshal(m.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, seq, role, content, tool_name, tool_args, tool_result, tool_calls, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.SessionID, m.Seq, m.Role, m.Content, m.ToolName, []byte(m.ToolArgs), []byte(m.ToolResult), calls, m.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return &IntegrityViolation{Op: "append message", Err: err}
		}
		return &Unavailable{Op: "append message", Err: err}
	}
	return nil
}

func (s *pgMessageStore) ListBySession(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, tool_name, tool_args, tool_result, tool_calls, created_at
		 FROM messages WHERE session_id = $1 AND seq > $2 ORDER BY seq ASC LIMIT $3`,
		sessionID, afterSeq, limit)
	if err != nil {
		return nil, &Unavailable{Op: "list messages", Err: err}
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		var m models.Message
		var toolArgs, toolResult, calls []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &m.ToolName, &toolArgs, &toolResult, &calls, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ToolArgs = toolArgs
		m.ToolResult = toolResult
		if len(calls) > 0 {
			if err := json.Unmarshal(calls, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *pgMessageStore) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = $1`, sessionID).Scan(&next)
	if err != nil {
		return 0, &Unavailable{Op: "next seq", Err: err}
	}
	return next, nil
}

// --- memories ---

type pgMemoryStore struct{ db *sql.DB }

func (s *pgMemoryStore) Create(ctx context.Context, m *models.Memory) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("memory is required")
	}
	m.ClampImportance()
	embedding, err := m.MarshalEmbedding()
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, memory_type, content, importance, identity_id, entity_type, entity_name,
		 source_type, source_channel_type, created_at, valid_from, valid_until, superseded_by, embedding, search_vector)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, to_tsvector('english', $3))`,
		m.ID, m.MemoryType, m.Content, m.Importance, m.IdentityID, m.EntityType, m.EntityName,
		m.SourceType, m.SourceChannelType, m.CreatedAt, m.ValidFrom, m.ValidUntil, m.SupersededBy, embedding,
	)
	if err != nil {
		return &Unavailable{Op: "create memory", Err: err}
	}
	return nil
}

func (s *pgMemoryStore) Get(ctx context.Context, id string) (*models.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, memory_type, content, importance, identity_id, entity_type, entity_name,
		 source_type, source_channel_type, created_at, valid_from, valid_until, superseded_by
		 FROM memories WHERE id = $1`, id)
	return scanMemory(row)
}

func scanMemory(row interface{ Scan(...any) error }) (*models.Memory, error) {
	var m models.Memory
	var entityType, entityName, sourceChannel, supersededBy sql.NullString
	var validUntil sql.NullTime
	if err := row.Scan(&m.ID, &m.MemoryType, &m.Content, &m.Importance, &m.IdentityID, &entityType, &entityName,
		&m.SourceType, &sourceChannel, &m.CreatedAt, &m.ValidFrom, &validUntil, &supersededBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan memory: %w", err)
	}
	m.EntityType = entityType.String
	m.EntityName = entityName.String
	m.SourceChannelType = models.ChannelType(sourceChannel.String)
	m.SupersededBy = supersededBy.String
	if validUntil.Valid {
		m.ValidUntil = &validUntil.Time
	}
	return &m, nil
}

func (s *pgMemoryStore) Supersede(ctx context.Context, oldID, newID string, validUntil time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET superseded_by = $2, valid_until = $3 WHERE id = $1`, oldID, newID, validUntil)
	if err != nil {
		return &Unavailable{Op: "supersede memory", Err: err}
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search runs the hybrid scoring query: a full-text rank from the stored
// tsvector column combined, in Go, with importance and recency. Vector
// cosine similarity is computed application-side against the embedding
// column rather than via a Postgres vector extension, so the store has no
// dependency beyond lib/pq (see DESIGN.md).
func (s *pgMemoryStore) Search(ctx context.Context, q models.MemoryQuery) ([]models.ScoredMemory, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	args := []any{q.IdentityID, q.QueryText}
	typeClause := ""
	if len(q.Types) > 0 {
		names := make([]string, len(q.Types))
		for i, t := range q.Types {
			names[i] = string(t)
		}
		args = append(args, pq.Array(names))
		typeClause = fmt.Sprintf(" AND memory_type = ANY($%d)", len(args))
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, memory_type, content, importance, identity_id, entity_type, entity_name,
		       source_type, source_channel_type, created_at, valid_from, valid_until, superseded_by, embedding,
		       ts_rank_cd(search_vector, plainto_tsquery('english', $2)) AS bm25
		FROM memories
		WHERE identity_id = $1 AND valid_until IS NULL %s
		ORDER BY bm25 DESC
		LIMIT %d`, typeClause, limit*4), args...)
	if err != nil {
		return nil, &Unavailable{Op: "search memories", Err: err}
	}
	defer rows.Close()

	var candidates []models.ScoredMemory
	now := time.Now()
	for rows.Next() {
		var m models.Memory
		var entityType, entityName, sourceChannel, supersededBy sql.NullString
		var validUntil sql.NullTime
		var embedding []byte
		var bm25 float64
		if err := rows.Scan(&m.ID, &m.MemoryType, &m.Content, &m.Importance, &m.IdentityID, &entityType, &entityName,
			&m.SourceType, &sourceChannel, &m.CreatedAt, &m.ValidFrom, &validUntil, &supersededBy, &embedding, &bm25); err != nil {
			return nil, fmt.Errorf("scan scored memory: %w", err)
		}
		m.EntityType = entityType.String
		m.EntityName = entityName.String
		m.SourceChannelType = models.ChannelType(sourceChannel.String)
		m.SupersededBy = supersededBy.String
		if validUntil.Valid {
			m.ValidUntil = &validUntil.Time
		}
		if len(embedding) > 0 {
			_ = json.Unmarshal(embedding, &m.Embedding)
		}
		recencyDays := now.Sub(m.CreatedAt).Hours() / 24
		candidates = append(candidates, models.ScoredMemory{
			Memory:         m,
			BM25Norm:       normalizeRank(bm25),
			ImportanceNorm: float64(m.Importance) / 10.0,
			RecencyNorm:    recencyDecay(recencyDays),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// normalizeRank squashes ts_rank_cd's open-ended output into [0,1].
func normalizeRank(rank float64) float64 {
	if rank <= 0 {
		return 0
	}
	n := rank / (rank + 1)
	if n > 1 {
		return 1
	}
	return n
}

// recencyDecay implements the half-life-style recency falloff used by the
// default scoring weights (§4.5): a memory written today scores 1.0, one
// written 30 days ago scores 0.5.
func recencyDecay(ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	const halfLifeDays = 30.0
	return 1.0 / (1.0 + ageDays/halfLifeDays)
}

func (s *pgMemoryStore) ListByIdentity(ctx context.Context, identityID string, types []models.MemoryType, limit int) ([]*models.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	args := []any{identityID}
	typeClause := ""
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		args = append(args, pq.Array(names))
		typeClause = fmt.Sprintf(" AND memory_type = ANY($%d)", len(args))
	}
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, memory_type, content, importance, identity_id, entity_type, entity_name,
		       source_type, source_channel_type, created_at, valid_from, valid_until, superseded_by
		FROM memories WHERE identity_id = $1 %s ORDER BY created_at DESC LIMIT $%d`, typeClause, len(args)), args...)
	if err != nil {
		return nil, &Unavailable{Op: "list memories by identity", Err: err}
	}
	defer rows.Close()
	var out []*models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *pgMemoryStore) RecordCompaction(ctx context.Context, run *models.CompactionRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("compaction run is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compaction_runs (id, identity_id, range_from, range_to, result_memory_id, ran_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		run.ID, run.IdentityID, run.RangeFrom, run.RangeTo, run.ResultID, run.RanAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyExists
		}
		return &Unavailable{Op: "record compaction", Err: err}
	}
	return nil
}

func (s *pgMemoryStore) FindCompaction(ctx context.Context, identityID string, from, to time.Time) (*models.CompactionRun, error) {
	var run models.CompactionRun
	err := s.db.QueryRowContext(ctx,
		`SELECT id, identity_id, range_from, range_to, result_memory_id, ran_at
		 FROM compaction_runs WHERE identity_id = $1 AND range_from = $2 AND range_to = $3`,
		identityID, from, to,
	).Scan(&run.ID, &run.IdentityID, &run.RangeFrom, &run.RangeTo, &run.ResultID, &run.RanAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, &Unavailable{Op: "find compaction", Err: err}
	}
	return &run, nil
}

func (s *pgMemoryStore) ReparentIdentity(ctx context.Context, oldID, newID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET identity_id = $1 WHERE identity_id = $2`, newID, oldID)
	if err != nil {
		return &Unavailable{Op: "reparent memories", Err: err}
	}
	return nil
}

// --- identities ---

type pgIdentityStore struct{ db *sql.DB }

func (s *pgIdentityStore) Create(ctx context.Context, id *models.Identity) error {
	if id == nil || id.ID == "" {
		return fmt.Errorf("identity is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (id, display_name, created_at) VALUES ($1,$2,$3)`,
		id.ID, id.DisplayName, id.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrAlreadyExists
		}
		return &Unavailable{Op: "create identity", Err: err}
	}
	return nil
}

func (s *pgIdentityStore) Get(ctx context.Context, id string) (*models.Identity, error) {
	var out models.Identity
	var mergedInto sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, created_at, merged_into FROM identities WHERE id = $1`, id,
	).Scan(&out.ID, &out.DisplayName, &out.CreatedAt, &mergedInto)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, &Unavailable{Op: "get identity", Err: err}
	}
	out.MergedInto = mergedInto.String
	return &out, nil
}

func (s *pgIdentityStore) ResolveLink(ctx context.Context, channelType models.ChannelType, platformUserID string) (*models.LinkedAccount, error) {
	var l models.LinkedAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_type, platform_user_id, identity_id, display_name, verified, linked_at
		 FROM linked_accounts WHERE channel_type = $1 AND platform_user_id = $2`,
		channelType, platformUserID,
	).Scan(&l.ChannelType, &l.PlatformUserID, &l.IdentityID, &l.DisplayName, &l.Verified, &l.LinkedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, &Unavailable{Op: "resolve link", Err: err}
	}
	return &l, nil
}

func (s *pgIdentityStore) Link(ctx context.Context, link *models.LinkedAccount) error {
	if link == nil || link.IdentityID == "" {
		return fmt.Errorf("linked account is required")
	}
	existing, err := s.ResolveLink(ctx, link.ChannelType, link.PlatformUserID)
	if err == nil && existing.IdentityID != link.IdentityID {
		return ErrAlreadyLinked
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO linked_accounts (channel_type, platform_user_id, identity_id, display_name, verified, linked_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (channel_type, platform_user_id) DO UPDATE SET
		   identity_id = EXCLUDED.identity_id, display_name = EXCLUDED.display_name,
		   verified = EXCLUDED.verified, linked_at = EXCLUDED.linked_at`,
		link.ChannelType, link.PlatformUserID, link.IdentityID, link.DisplayName, link.Verified, link.LinkedAt,
	)
	if err != nil {
		return &Unavailable{Op: "link account", Err: err}
	}
	return nil
}

func (s *pgIdentityStore) Unlink(ctx context.Context, channelType models.ChannelType, platformUserID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM linked_accounts WHERE channel_type = $1 AND platform_user_id = $2`, channelType, platformUserID)
	if err != nil {
		return &Unavailable{Op: "unlink account", Err: err}
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgIdentityStore) ListLinks(ctx context.Context, identityID string) ([]*models.LinkedAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_type, platform_user_id, identity_id, display_name, verified, linked_at
		 FROM linked_accounts WHERE identity_id = $1`, identityID)
	if err != nil {
		return nil, &Unavailable{Op: "list links", Err: err}
	}
	defer rows.Close()
	var out []*models.LinkedAccount
	for rows.Next() {
		var l models.LinkedAccount
		if err := rows.Scan(&l.ChannelType, &l.PlatformUserID, &l.IdentityID, &l.DisplayName, &l.Verified, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("scan linked account: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// Merge rebinds linked accounts and tombstones sourceID. Memories and
// sessions are reparented separately via MemoryStore.ReparentIdentity and
// SessionStore.ReparentIdentity, which the identity resolver calls as part
// of the same logical merge (§4.6).
func (s *pgIdentityStore) Merge(ctx context.Context, sourceID, destID string) error {
	if sourceID == "" || destID == "" || sourceID == destID {
		return fmt.Errorf("invalid merge identities")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &Unavailable{Op: "begin merge", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE linked_accounts SET identity_id = $1 WHERE identity_id = $2`, destID, sourceID); err != nil {
		return &Unavailable{Op: "merge links", Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE identities SET merged_into = $1 WHERE id = $2`, destID, sourceID); err != nil {
		return &Unavailable{Op: "mark merged", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &Unavailable{Op: "commit merge", Err: err}
	}
	return nil
}

// --- skill overrides ---

type pgSkillStore struct{ db *sql.DB }

func (s *pgSkillStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skill_overrides (name, enabled) VALUES ($1,$2)
		 ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled`, name, enabled)
	if err != nil {
		return &Unavailable{Op: "set skill override", Err: err}
	}
	return nil
}

func (s *pgSkillStore) ListOverrides(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, enabled FROM skill_overrides`)
	if err != nil {
		return nil, &Unavailable{Op: "list skill overrides", Err: err}
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		var enabled bool
		if err := rows.Scan(&name, &enabled); err != nil {
			return nil, fmt.Errorf("scan skill override: %w", err)
		}
		out[name] = enabled
	}
	return out, rows.Err()
}

// --- tool audit ---

type pgToolAuditStore struct{ db *sql.DB }

func (s *pgToolAuditStore) Record(ctx context.Context, rec *models.ToolAuditRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("audit record is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_audit (id, session_id, tool_name, args_hash, duration_ms, outcome, error_class, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.SessionID, rec.ToolName, rec.ArgsHash, rec.Duration.Milliseconds(), rec.Outcome, rec.ErrorClass, rec.CreatedAt,
	)
	if err != nil {
		return &Unavailable{Op: "record tool audit", Err: err}
	}
	return nil
}

func (s *pgToolAuditStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ToolAuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, tool_name, args_hash, duration_ms, outcome, error_class, created_at
		 FROM tool_audit WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, &Unavailable{Op: "list tool audit", Err: err}
	}
	defer rows.Close()
	var out []*models.ToolAuditRecord
	for rows.Next() {
		var rec models.ToolAuditRecord
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ToolName, &rec.ArgsHash, &durationMs, &rec.Outcome, &rec.ErrorClass, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tool audit: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// --- queued transactions ---

type pgTransactionStore struct{ db *sql.DB }

func (s *pgTransactionStore) Create(ctx context.Context, t *models.QueuedTransaction) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("transaction is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queued_tx (id, session_id, network, to_addr, value, data, gas_limit, nonce, status, tx_hash, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.SessionID, t.Network, t.To, t.Value, t.Data, t.GasLimit, t.Nonce, t.Status, t.TxHash, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return &Unavailable{Op: "create queued tx", Err: err}
	}
	return nil
}

func (s *pgTransactionStore) Get(ctx context.Context, id string) (*models.QueuedTransaction, error) {
	var t models.QueuedTransaction
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, network, to_addr, value, data, gas_limit, nonce, status, tx_hash, created_at, updated_at
		 FROM queued_tx WHERE id = $1`, id,
	).Scan(&t.ID, &t.SessionID, &t.Network, &t.To, &t.Value, &t.Data, &t.GasLimit, &t.Nonce, &t.Status, &t.TxHash, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, &Unavailable{Op: "get queued tx", Err: err}
	}
	return &t, nil
}

func (s *pgTransactionStore) UpdateStatus(ctx context.Context, id string, status models.TxStatus, txHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queued_tx SET status = $2, tx_hash = $3, updated_at = now() WHERE id = $1`, id, status, txHash)
	if err != nil {
		return &Unavailable{Op: "update tx status", Err: err}
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimNextPending atomically claims the oldest pending transaction with
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent broadcaster workers never
// double-submit the same transaction.
func (s *pgTransactionStore) ClaimNextPending(ctx context.Context) (*models.QueuedTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &Unavailable{Op: "begin claim", Err: err}
	}
	defer tx.Rollback()

	var t models.QueuedTransaction
	err = tx.QueryRowContext(ctx, `
		SELECT id, session_id, network, to_addr, value, data, gas_limit, nonce, status, tx_hash, created_at, updated_at
		FROM queued_tx WHERE status = 'pending'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED LIMIT 1`,
	).Scan(&t.ID, &t.SessionID, &t.Network, &t.To, &t.Value, &t.Data, &t.GasLimit, &t.Nonce, &t.Status, &t.TxHash, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, &Unavailable{Op: "claim next pending", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE queued_tx SET status = 'broadcast', updated_at = now() WHERE id = $1`, t.ID); err != nil {
		return nil, &Unavailable{Op: "mark claimed", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &Unavailable{Op: "commit claim", Err: err}
	}
	t.Status = models.TxBroadcast
	return &t, nil
}

// --- settings ---

type pgSettingsStore struct{ db *sql.DB }

func (s *pgSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, &Unavailable{Op: "get setting", Err: err}
	}
	return value, true, nil
}

func (s *pgSettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ($1,$2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return &Unavailable{Op: "set setting", Err: err}
	}
	return nil
}

// newID generates a fresh identifier for stores that assign IDs server-side
// (most callers already set one on their model before calling Create).
func newID() string {
	return uuid.NewString()
}
