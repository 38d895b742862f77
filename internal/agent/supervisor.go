package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/stark/internal/sessions"
	"github.com/haasonsaas/stark/pkg/models"
)

// Supervisor spawns one long-lived task per session and reaps it when the
// task is cancelled, by Cancel for that session or by Shutdown, whether or
// not its mailbox is empty (§4.8's concurrency model: "one long-lived task per session...
// a global supervisor spawns/reaps these per-session tasks"). Sessions run
// fully in parallel with each other; within one session, RunTurn calls are
// strictly serialised because they are drained off that session's single
// mailbox by that session's single task.
type Supervisor struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewSupervisor returns a Supervisor driving dispatcher.
func NewSupervisor(dispatcher *Dispatcher, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{dispatcher: dispatcher, logger: logger, running: make(map[string]context.CancelFunc)}
}

// Drive ensures v's mailbox has a dedicated consuming task, starting one if
// this is the first inbound message seen for the session. identityID is
// captured once at task start and reused for every turn the task runs;
// Resolve has already produced it upstream of the dispatcher.
func (s *Supervisor) Drive(parent context.Context, v *sessions.View, identityID string) {
	key := v.Session.ID
	s.mu.Lock()
	if _, ok := s.running[key]; ok {
		s.mu.Unlock()
		return
	}
	taskCtx, cancel := context.WithCancel(parent)
	s.running[key] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, key)
			s.mu.Unlock()
		}()
		s.runSessionTask(taskCtx, v, identityID)
	}()
}

// runSessionTask drains v's mailbox in FIFO order, one RunTurn at a time,
// until taskCtx is cancelled (session.cancel RPC or process shutdown).
func (s *Supervisor) runSessionTask(taskCtx context.Context, v *sessions.View, identityID string) {
	for {
		select {
		case <-taskCtx.Done():
			return
		case in, ok := <-v.Inbound():
			if !ok {
				return
			}
			if err := s.dispatcher.RunTurn(taskCtx, v, identityID, in.Content); err != nil {
				s.logger.Warn("turn ended in error", "session_id", v.Session.ID, "error", err)
			}
		}
	}
}

// ActiveSessions reports how many sessions currently have a running task,
// for the system_status tool's StatusProvider contract.
func (s *Supervisor) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Cancel stops the task for sessionID, if running, implementing the
// operator-visible session.cancel RPC (§4.8 Cancellation).
func (s *Supervisor) Cancel(sessionID string) {
	s.mu.Lock()
	cancel, ok := s.running[sessionID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown cancels every running session task and waits for them to exit.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// SessionBridge gets-or-creates the session for one resolved inbound
// message, enqueues it onto that session's mailbox, and ensures the
// session has a running task. It structurally satisfies
// internal/channels.SessionDriver without either package importing the
// other.
type SessionBridge struct {
	Sessions   *sessions.Manager
	Supervisor *Supervisor
}

// Deliver implements internal/channels.SessionDriver.
func (b *SessionBridge) Deliver(ctx context.Context, channelType models.ChannelType, platformConvID, identityID, text string, receivedAt time.Time) error {
	v, err := b.Sessions.GetOrCreate(ctx, channelType, platformConvID, identityID)
	if err != nil {
		return fmt.Errorf("get-or-create session: %w", err)
	}
	b.Supervisor.Drive(ctx, v, identityID)
	if !b.Sessions.Enqueue(v, sessions.Inbound{Content: text, ReceivedAt: receivedAt}) {
		return fmt.Errorf("session %s mailbox full, message dropped", v.Session.ID)
	}
	return nil
}
