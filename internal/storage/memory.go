package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/stark/pkg/models"
)

// NewMemoryStore builds a Store backed entirely by in-process maps, for use
// in tests and single-process demos where a Postgres instance is overkill.
func NewMemoryStore() *Store {
	return &Store{
		Sessions:     newMemSessionStore(),
		Messages:     newMemMessageStore(),
		Memories:     newMemMemoryStore(),
		Identities:   newMemIdentityStore(),
		Skills:       newMemSkillStore(),
		ToolAudit:    newMemToolAuditStore(),
		Transactions: newMemTransactionStore(),
		Settings:     newMemSettingsStore(),
	}
}

// --- sessions ---

type memSessionStore struct {
	mu       sync.RWMutex
	byID     map[string]*models.Session
	byKey    map[string]string
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{byID: make(map[string]*models.Session), byKey: make(map[string]string)}
}

func (s *memSessionStore) Create(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[sess.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *sess
	s.byID[sess.ID] = &cp
	s.byKey[sess.Key()] = sess.ID
	return nil
}

func (s *memSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *memSessionStore) GetByKey(ctx context.Context, channelType models.ChannelType, platformConvID string) (*models.Session, error) {
	s.mu.RLock()
	id, ok := s.byKey[string(channelType)+":"+platformConvID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *memSessionStore) Update(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[sess.ID]; !exists {
		return ErrNotFound
	}
	cp := *sess
	s.byID[sess.ID] = &cp
	return nil
}

func (s *memSessionStore) ListActive(ctx context.Context, since time.Time, limit int) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.byID {
		if sess.LastActiveAt.Before(since) {
			continue
		}
		cp := *sess
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.After(out[j].LastActiveAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memSessionStore) ReparentIdentity(ctx context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if sess.IdentityID == oldID {
			sess.IdentityID = newID
		}
	}
	return nil
}

// --- messages ---

type memMessageStore struct {
	mu       sync.RWMutex
	bySession map[string][]*models.Message
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{bySession: make(map[string][]*models.Message)}
}

func (s *memMessageStore) Append(ctx context.Context, m *models.Message) error {
	if m == nil || m.SessionID == "" {
		return fmt.Errorf("message is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.bySession[m.SessionID] = append(s.bySession[m.SessionID], &cp)
	return nil
}

func (s *memMessageStore) ListBySession(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Message
	for _, m := range s.bySession[sessionID] {
		if m.Seq <= afterSeq {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memMessageStore) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for _, m := range s.bySession[sessionID] {
		if m.Seq > max {
			max = m.Seq
		}
	}
	return max + 1, nil
}

// --- memories ---

type memMemoryStore struct {
	mu          sync.RWMutex
	byID        map[string]*models.Memory
	compactions map[string]*models.CompactionRun
}

func newMemMemoryStore() *memMemoryStore {
	return &memMemoryStore{byID: make(map[string]*models.Memory), compactions: make(map[string]*models.CompactionRun)}
}

func (s *memMemoryStore) Create(ctx context.Context, m *models.Memory) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("memory is required")
	}
	m.ClampImportance()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *memMemoryStore) Get(ctx context.Context, id string) (*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memMemoryStore) Supersede(ctx context.Context, oldID, newID string, validUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[oldID]
	if !ok {
		return ErrNotFound
	}
	m.SupersededBy = newID
	m.ValidUntil = &validUntil
	return nil
}

// Search reimplements the hybrid scoring formula over the in-process map: a
// crude term-overlap ratio stands in for BM25 and embedding cosine, which is
// enough for deterministic tests without a real index.
func (s *memMemoryStore) Search(ctx context.Context, q models.MemoryQuery) ([]models.ScoredMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	terms := strings.Fields(strings.ToLower(q.QueryText))
	now := time.Now()
	var out []models.ScoredMemory
	for _, m := range s.byID {
		if m.IdentityID != q.IdentityID || m.ValidUntil != nil {
			continue
		}
		if len(q.Types) > 0 && !containsType(q.Types, m.MemoryType) {
			continue
		}
		bm25 := termOverlap(terms, strings.ToLower(m.Content))
		ageDays := now.Sub(m.CreatedAt).Hours() / 24
		cp := *m
		out = append(out, models.ScoredMemory{
			Memory:         cp,
			BM25Norm:       bm25,
			ImportanceNorm: float64(m.Importance) / 10.0,
			RecencyNorm:    recencyDecay(ageDays),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BM25Norm > out[j].BM25Norm })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func containsType(types []models.MemoryType, t models.MemoryType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func termOverlap(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(content, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func (s *memMemoryStore) ListByIdentity(ctx context.Context, identityID string, types []models.MemoryType, limit int) ([]*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Memory
	for _, m := range s.byID {
		if m.IdentityID != identityID {
			continue
		}
		if len(types) > 0 && !containsType(types, m.MemoryType) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memMemoryStore) ReparentIdentity(ctx context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if m.IdentityID == oldID {
			m.IdentityID = newID
		}
	}
	return nil
}

func (s *memMemoryStore) RecordCompaction(ctx context.Context, run *models.CompactionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := run.IdentityID + "|" + run.RangeFrom.String() + "|" + run.RangeTo.String()
	if _, exists := s.compactions[key]; exists {
		return ErrAlreadyExists
	}
	cp := *run
	s.compactions[key] = &cp
	return nil
}

func (s *memMemoryStore) FindCompaction(ctx context.Context, identityID string, from, to time.Time) (*models.CompactionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := identityID + "|" + from.String() + "|" + to.String()
	run, ok := s.compactions[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *run
	return &cp, nil
}

// --- identities ---

type memIdentityStore struct {
	mu    sync.RWMutex
	byID  map[string]*models.Identity
	links map[string]*models.LinkedAccount
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{byID: make(map[string]*models.Identity), links: make(map[string]*models.LinkedAccount)}
}

func (s *memIdentityStore) Create(ctx context.Context, id *models.Identity) error {
	if id == nil || id.ID == "" {
		return fmt.Errorf("identity is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[id.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *id
	s.byID[id.ID] = &cp
	return nil
}

func (s *memIdentityStore) Get(ctx context.Context, id string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *memIdentityStore) ResolveLink(ctx context.Context, channelType models.ChannelType, platformUserID string) (*models.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[string(channelType)+":"+platformUserID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memIdentityStore) Link(ctx context.Context, link *models.LinkedAccount) error {
	if link == nil || link.IdentityID == "" {
		return fmt.Errorf("linked account is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := link.Key()
	if existing, ok := s.links[key]; ok && existing.IdentityID != link.IdentityID {
		return ErrAlreadyLinked
	}
	cp := *link
	s.links[key] = &cp
	return nil
}

func (s *memIdentityStore) Unlink(ctx context.Context, channelType models.ChannelType, platformUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(channelType) + ":" + platformUserID
	if _, ok := s.links[key]; !ok {
		return ErrNotFound
	}
	delete(s.links, key)
	return nil
}

func (s *memIdentityStore) ListLinks(ctx context.Context, identityID string) ([]*models.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LinkedAccount
	for _, l := range s.links {
		if l.IdentityID == identityID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memIdentityStore) Merge(ctx context.Context, sourceID, destID string) error {
	if sourceID == "" || destID == "" || sourceID == destID {
		return fmt.Errorf("invalid merge identities")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.byID[sourceID]
	if !ok {
		return ErrNotFound
	}
	for _, l := range s.links {
		if l.IdentityID == sourceID {
			l.IdentityID = destID
		}
	}
	src.MergedInto = destID
	return nil
}

// --- skill overrides ---

type memSkillStore struct {
	mu        sync.RWMutex
	overrides map[string]bool
}

func newMemSkillStore() *memSkillStore {
	return &memSkillStore{overrides: make(map[string]bool)}
}

func (s *memSkillStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[name] = enabled
	return nil
}

func (s *memSkillStore) ListOverrides(ctx context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out, nil
}

// --- tool audit ---

type memToolAuditStore struct {
	mu        sync.RWMutex
	bySession map[string][]*models.ToolAuditRecord
}

func newMemToolAuditStore() *memToolAuditStore {
	return &memToolAuditStore{bySession: make(map[string][]*models.ToolAuditRecord)}
}

func (s *memToolAuditStore) Record(ctx context.Context, rec *models.ToolAuditRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("audit record is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.bySession[rec.SessionID] = append(s.bySession[rec.SessionID], &cp)
	return nil
}

func (s *memToolAuditStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ToolAuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.bySession[sessionID]
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	out := make([]*models.ToolAuditRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// --- queued transactions ---

type memTransactionStore struct {
	mu sync.Mutex
	byID map[string]*models.QueuedTransaction
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{byID: make(map[string]*models.QueuedTransaction)}
}

func (s *memTransactionStore) Create(ctx context.Context, t *models.QueuedTransaction) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("transaction is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.byID[t.ID] = &cp
	return nil
}

func (s *memTransactionStore) Get(ctx context.Context, id string) (*models.QueuedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTransactionStore) UpdateStatus(ctx context.Context, id string, status models.TxStatus, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	t.TxHash = txHash
	t.UpdatedAt = time.Now()
	return nil
}

func (s *memTransactionStore) ClaimNextPending(ctx context.Context) (*models.QueuedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *models.QueuedTransaction
	for _, t := range s.byID {
		if t.Status != models.TxPending {
			continue
		}
		if oldest == nil || t.CreatedAt.Before(oldest.CreatedAt) {
			oldest = t
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}
	oldest.Status = models.TxBroadcast
	oldest.UpdatedAt = time.Now()
	cp := *oldest
	return &cp, nil
}

// --- settings ---

type memSettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func newMemSettingsStore() *memSettingsStore {
	return &memSettingsStore{values: make(map[string]string)}
}

func (s *memSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memSettingsStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
