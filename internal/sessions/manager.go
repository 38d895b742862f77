// Package sessions implements the Session Manager (§4.7): the in-memory
// view of each active session layered over the persisted session and
// message stores, including the bounded transcript window, session reset,
// and each session's inbound mailbox.
package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/stark/internal/memory"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/pkg/models"
)

// DefaultWindowSize is the default number of fully materialised transcript
// messages kept live before older ones are summarised away.
const DefaultWindowSize = 40

// DefaultMailboxCapacity is the default bound on a session's inbound
// mailbox (§4.8's "bounded mailbox, default capacity 16").
const DefaultMailboxCapacity = 16

// Inbound is a raw user message arriving on a session's mailbox, not yet
// persisted or assigned a transcript seq.
type Inbound struct {
	Content    string
	ReceivedAt time.Time
}

// View is the live, in-memory materialisation of one session.
type View struct {
	mu sync.Mutex

	Session    *models.Session
	Transcript []*models.Message
	mailbox    chan Inbound
}

// Inbound exposes the session's mailbox for a consumer (the dispatcher) to
// range over. Enqueue is the only writer.
func (v *View) Inbound() <-chan Inbound { return v.mailbox }

// Snapshot returns a defensive copy of the session and its live transcript.
func (v *View) Snapshot() (*models.Session, []*models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	sessCopy := *v.Session
	msgs := make([]*models.Message, len(v.Transcript))
	copy(msgs, v.Transcript)
	return &sessCopy, msgs
}

// SetState updates the session's dispatcher-visible lifecycle state
// in-place. The dispatcher owns v for the duration of a turn, so this is
// the only writer at any given moment, but the lock keeps Snapshot/Append
// readers from observing a torn update.
func (v *View) SetState(s models.SessionState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Session.State = s
}

// SetPendingConfirmation installs or clears (p == nil) the session's
// paused-tool-call descriptor alongside its state transition.
func (v *View) SetPendingConfirmation(p *models.PendingConfirmation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Session.PendingConfirmation = p
	if p != nil {
		v.Session.State = models.StateAwaitingUserConfirm
	}
}

// Manager holds one View per active session, backed by storage.SessionStore
// and storage.MessageStore, and drives transcript-window compaction through
// an internal/memory.Writer.
type Manager struct {
	sessionStore storage.SessionStore
	messageStore storage.MessageStore
	writer       *memory.Writer

	windowSize int
	mailboxCap int

	mu    sync.RWMutex
	views map[string]*View
}

// NewManager returns a Manager. A windowSize or mailboxCap of 0 falls back
// to the package defaults.
func NewManager(sessionStore storage.SessionStore, messageStore storage.MessageStore, writer *memory.Writer, windowSize, mailboxCap int) *Manager {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if mailboxCap <= 0 {
		mailboxCap = DefaultMailboxCapacity
	}
	return &Manager{
		sessionStore: sessionStore,
		messageStore: messageStore,
		writer:       writer,
		windowSize:   windowSize,
		mailboxCap:   mailboxCap,
		views:        make(map[string]*View),
	}
}

// GetOrCreate returns the View for (channelType, platformConvID), creating
// the underlying session row and loading its transcript window on first
// use. identityID is only consulted when a new session is created.
func (m *Manager) GetOrCreate(ctx context.Context, channelType models.ChannelType, platformConvID, identityID string) (*View, error) {
	key := string(channelType) + ":" + platformConvID

	m.mu.RLock()
	if v, ok := m.views[key]; ok {
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.views[key]; ok {
		return v, nil
	}

	sess, err := m.sessionStore.GetByKey(ctx, channelType, platformConvID)
	if err != nil {
		if err != storage.ErrNotFound {
			return nil, fmt.Errorf("get session: %w", err)
		}
		sess = &models.Session{
			ID:             uuid.NewString(),
			ChannelType:    channelType,
			PlatformConvID: platformConvID,
			IdentityID:     identityID,
			State:          models.StateIdle,
			CreatedAt:      time.Now(),
			LastActiveAt:   time.Now(),
		}
		if err := m.sessionStore.Create(ctx, sess); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	transcript, err := m.messageStore.ListBySession(ctx, sess.ID, sess.TranscriptResetSeq, m.windowSize)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	v := &View{
		Session:    sess,
		Transcript: transcript,
		mailbox:    make(chan Inbound, m.mailboxCap),
	}
	m.views[key] = v
	return v, nil
}

// Get returns the already-loaded View for sessionID, if any.
func (m *Manager) Get(sessionID string) (*View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.views {
		if v.Session.ID == sessionID {
			return v, true
		}
	}
	return nil, false
}

// Enqueue places in on the session's mailbox without blocking. It reports
// false if the mailbox is full, so the caller (the Channel Façade) can
// apply its own backpressure policy (§4.8, §4.10) instead of blocking the
// whole gateway.
func (m *Manager) Enqueue(v *View, in Inbound) bool {
	select {
	case v.mailbox <- in:
		return true
	default:
		return false
	}
}

// Append persists msg (assigning its seq), adds it to the live transcript,
// and compacts the oldest entries into a session_summary memory once the
// window is exceeded.
func (m *Manager) Append(ctx context.Context, v *View, msg *models.Message) error {
	seq, err := m.messageStore.NextSeq(ctx, v.Session.ID)
	if err != nil {
		return fmt.Errorf("next seq: %w", err)
	}
	msg.SessionID = v.Session.ID
	msg.Seq = seq
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if err := m.messageStore.Append(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	v.mu.Lock()
	v.Transcript = append(v.Transcript, msg)
	overflow := len(v.Transcript) - m.windowSize
	var toSummarize []*models.Message
	if overflow > 0 {
		toSummarize = append(toSummarize, v.Transcript[:overflow]...)
		v.Transcript = v.Transcript[overflow:]
	}
	identityID := v.Session.IdentityID
	v.mu.Unlock()

	if len(toSummarize) == 0 || m.writer == nil {
		return nil
	}

	_, err = m.writer.Remember(ctx, memory.RememberInput{
		MemoryType: models.MemorySessionSummary,
		Content:    summarizeTranscript(toSummarize),
		Importance: 3,
		IdentityID: identityID,
		SourceType: models.SourceInferred,
	})
	if err != nil {
		return fmt.Errorf("summarize overflow transcript: %w", err)
	}
	return nil
}

// Persist writes v's current session fields (state, pending confirmation,
// turn counter) to the session store. The dispatcher calls this at turn
// boundaries; Append and Reset already persist the fields they touch.
func (m *Manager) Persist(ctx context.Context, v *View) error {
	v.mu.Lock()
	sessCopy := *v.Session
	v.mu.Unlock()
	if err := m.sessionStore.Update(ctx, &sessCopy); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Reset clears v's live transcript window and pending confirmation while
// preserving identity and memories (§4.7). Historical messages stay in the
// persisted log; the session's TranscriptResetSeq advances so they are not
// replayed into the window on a later reload.
func (m *Manager) Reset(ctx context.Context, v *View) error {
	v.mu.Lock()
	var lastSeq int64
	if n := len(v.Transcript); n > 0 {
		lastSeq = v.Transcript[n-1].Seq
	} else {
		lastSeq = v.Session.TranscriptResetSeq
	}
	v.Session.TranscriptResetSeq = lastSeq
	v.Session.PendingConfirmation = nil
	v.Session.State = models.StateIdle
	v.Transcript = nil
	sessCopy := *v.Session
	v.mu.Unlock()

	if err := m.sessionStore.Update(ctx, &sessCopy); err != nil {
		return fmt.Errorf("persist reset: %w", err)
	}
	return nil
}

// summarizeTranscript renders dropped transcript entries into a compact
// session_summary memory body. A real deployment would summarise via an
// LLM call; this placeholder preserves every line verbatim.
func summarizeTranscript(msgs []*models.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, string(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
