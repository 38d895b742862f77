package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/stark/internal/register"
	"github.com/haasonsaas/stark/internal/sessions"
	"github.com/haasonsaas/stark/internal/skills"
	"github.com/haasonsaas/stark/internal/tools"
	"github.com/haasonsaas/stark/pkg/models"
)

// DefaultMaxToolIterations bounds the step-2/step-4 loop within one turn
// (§4.8 step 4).
const DefaultMaxToolIterations = 12

// DefaultProviderTimeout is the deadline on each completion call (§5).
const DefaultProviderTimeout = 60 * time.Second

// Sender is the narrow seam the Channel Façade (§4.10) satisfies so the
// dispatcher can deliver a turn's reply without importing any
// platform-specific adapter.
type Sender interface {
	Send(ctx context.Context, sess *models.Session, text string) error
}

// Config tunes one Dispatcher's turn behaviour.
type Config struct {
	MaxToolIterations     int
	ProviderTimeout       time.Duration
	ProviderRetrySchedule []time.Duration
	RequireConfirmation   bool
}

// DefaultConfig returns §4.8's defaults: 12 tool iterations, a 60-second
// provider deadline, and a two-step provider retry schedule. The schedule
// is consulted only for errors isTransientProviderError accepts, and that
// classifier accepts none, so a failed completion call is not retried.
func DefaultConfig() Config {
	return Config{
		MaxToolIterations:     DefaultMaxToolIterations,
		ProviderTimeout:       DefaultProviderTimeout,
		ProviderRetrySchedule: []time.Duration{500 * time.Millisecond, 2 * time.Second},
		RequireConfirmation:   true,
	}
}

// Settings is the read-mostly subset of configuration that can change
// while the process runs: the bot's display name, whether tool
// confirmation is required, and the default completion model.
type Settings struct {
	BotName             string
	RequireConfirmation bool
	DefaultModel        string
}

// SettingsSource supplies the current Settings. §9 resolves the "global
// mutable settings" anti-pattern by requiring every turn to read exactly
// one immutable snapshot at turn start rather than a shared value that
// could change mid-turn; config.SettingsStore implements this with a
// copy-on-update handle.
type SettingsSource interface {
	Snapshot() Settings
}

// Dispatcher drives the core dialog loop for every session (§4.8). One
// Dispatcher is shared by every per-session task; it holds no per-turn
// state itself beyond what is threaded through RunTurn's parameters.
type Dispatcher struct {
	provider   CompletionProvider
	executor   *tools.Executor
	sessions   *sessions.Manager
	skillMgr   *skills.Manager
	skillTools skills.ToolResolver
	skillBins  *skills.BinaryProber
	prompt     *PromptBuilder
	publisher  Publisher
	sender     Sender
	config     Config
	settings   SettingsSource
}

// UseSettingsSource swaps in a dynamic settings source, e.g. a
// config.SettingsStore fed by the config file and later mutated by an
// operator RPC. Until called, the Dispatcher falls back to the static
// RequireConfirmation passed to NewDispatcher.
func (d *Dispatcher) UseSettingsSource(source SettingsSource) {
	if source != nil {
		d.settings = source
	}
}

func (d *Dispatcher) settingsSnapshot() Settings {
	if d.settings != nil {
		return d.settings.Snapshot()
	}
	return Settings{RequireConfirmation: d.config.RequireConfirmation}
}

// NewDispatcher wires a Dispatcher. publisher and sender may be nil (the
// dispatcher becomes silently unobservable / reply-less, useful in tests).
func NewDispatcher(provider CompletionProvider, executor *tools.Executor, sessionMgr *sessions.Manager, skillMgr *skills.Manager, skillTools skills.ToolResolver, skillBins *skills.BinaryProber, prompt *PromptBuilder, publisher Publisher, sender Sender, config Config) *Dispatcher {
	if config.MaxToolIterations <= 0 {
		config.MaxToolIterations = DefaultMaxToolIterations
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = DefaultProviderTimeout
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Dispatcher{
		provider:   provider,
		executor:   executor,
		sessions:   sessionMgr,
		skillMgr:   skillMgr,
		skillTools: skillTools,
		skillBins:  skillBins,
		prompt:     prompt,
		publisher:  publisher,
		sender:     sender,
		config:     config,
	}
}

// RunTurn processes one inbound message against v, implementing §4.8's
// full turn algorithm including the confirmation pre-parse (step 5) ahead
// of the normal prompt path.
func (d *Dispatcher) RunTurn(ctx context.Context, v *sessions.View, identityID, text string) error {
	sess, _ := v.Snapshot()
	if sess.PendingConfirmation != nil {
		return d.handlePendingConfirmation(ctx, v, text)
	}
	return d.runTurn(ctx, v, identityID, text)
}

func (d *Dispatcher) handlePendingConfirmation(ctx context.Context, v *sessions.View, text string) error {
	sess, _ := v.Snapshot()
	pending := sess.PendingConfirmation

	confirmed, ok := parseConfirmation(text)
	if !ok {
		d.abortPending(ctx, v, "Pending action cancelled: expected /confirm or /cancel.")
		return nil
	}
	if !confirmed {
		d.abortPending(ctx, v, "Cancelled.")
		return nil
	}

	v.SetPendingConfirmation(nil)
	v.SetState(models.StateRunningTool)

	call := models.ToolCall{ID: pending.ToolCallID, Name: pending.ToolName, Input: pending.ToolArgs}
	regs := register.New()
	if pending.Registers != nil {
		regs.Restore(pending.Registers)
	}

	// The user has already confirmed this exact call; bypass the
	// confirmation gate only for it, not for anything the provider asks
	// for afterward.
	_, done, err := d.executeCalls(ctx, v, regs, []models.ToolCall{call}, false)
	if err != nil {
		return d.endWithError(ctx, v, err)
	}
	if done {
		return nil
	}
	return d.runToolLoop(ctx, v, sess.IdentityID, regs)
}

// abortPending clears a pending confirmation without running the tool,
// per §4.8 step 5: any non-/confirm, non-/cancel text aborts the pending
// transaction with a warning.
func (d *Dispatcher) abortPending(ctx context.Context, v *sessions.View, warning string) {
	v.SetPendingConfirmation(nil)
	v.SetState(models.StateIdle)
	_ = d.sessions.Persist(ctx, v)
	d.reply(ctx, v, warning)
}

func (d *Dispatcher) runTurn(ctx context.Context, v *sessions.View, identityID, text string) error {
	v.SetState(models.StateAwaitingLLM)
	sess, _ := v.Snapshot()
	d.publish(ctx, sess.ID, models.EventAgentTurnStarted, nil)

	userMsg := &models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: text}
	if err := d.sessions.Append(ctx, v, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	return d.runToolLoop(ctx, v, identityID, register.New())
}

// runToolLoop drives steps 2-6 of the turn algorithm, starting at step 2.
// A resumed confirmed call is executed directly by the caller via
// executeCalls before this is invoked, so this loop never seeds a pending
// call of its own.
func (d *Dispatcher) runToolLoop(ctx context.Context, v *sessions.View, identityID string, regs *register.Context) error {
	settings := d.settingsSnapshot()
	var extraSystem string
	var pending []models.ToolCall

	iterations := 0
	for {
		if len(pending) == 0 {
			if iterations >= d.config.MaxToolIterations {
				return d.endWithError(ctx, v, NewTurnError(KindIterationLimit, fmt.Errorf("exceeded %d tool iterations", d.config.MaxToolIterations)))
			}

			_, transcript := v.Snapshot()
			req, err := d.prompt.Build(ctx, identityID, lastUserText(transcript), transcript, regs)
			if err != nil {
				return d.endWithError(ctx, v, NewTurnError(KindMemoryWriteFailed, err))
			}
			if extraSystem != "" {
				req = SpliceSkill(req, extraSystem)
				extraSystem = ""
			}

			resp, err := d.completeWithRetry(ctx, req)
			if err != nil {
				return d.endWithError(ctx, v, NewTurnError(KindProviderPermanent, err))
			}

			if len(resp.ToolCalls) > 0 {
				v.SetState(models.StateRunningTool)
				pending = resp.ToolCalls
				continue
			}

			if name, rawArgs, ok := skills.ParseInvocation(resp.Text); ok {
				body, err := d.resolveSkill(name)
				if err != nil {
					return d.endWithError(ctx, v, NewTurnError(KindSkillUnresolved, err))
				}
				extraSystem = body
				_ = rawArgs
				iterations++
				continue
			}

			assistantMsg := &models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: resp.Text}
			if err := d.sessions.Append(ctx, v, assistantMsg); err != nil {
				return fmt.Errorf("persist assistant message: %w", err)
			}
			d.reply(ctx, v, resp.Text)
			return d.endTurn(ctx, v)
		}

		iterations++
		next, done, err := d.executeCalls(ctx, v, regs, pending, settings.RequireConfirmation)
		if err != nil {
			return d.endWithError(ctx, v, err)
		}
		if done {
			return nil
		}
		pending = next
	}
}

// executeCalls runs every pending tool call, persisting a tool_request and
// tool_result message for each, in order. If any call requires
// confirmation, the turn ends immediately (done=true) after persisting the
// pending descriptor. Otherwise next is always empty and the caller loops
// back to step 2 with the register context updated. requireConfirmation
// gates only the calls in this invocation: a resumed, already-confirmed
// call is run with it forced false, while every other call site passes the
// dispatcher's configured policy.
func (d *Dispatcher) executeCalls(ctx context.Context, v *sessions.View, regs *register.Context, calls []models.ToolCall, requireConfirmation bool) (next []models.ToolCall, done bool, terr *TurnError) {
	sess, _ := v.Snapshot()
	for _, call := range calls {
		reqMsg := &models.Message{ID: uuid.NewString(), Role: models.RoleToolRequest, ToolName: call.Name, ToolArgs: call.Input, ToolCalls: []models.ToolCall{call}}
		if err := d.sessions.Append(ctx, v, reqMsg); err != nil {
			return nil, false, NewTurnError(KindStorageUnavailable, fmt.Errorf("persist tool_request: %w", err))
		}
		d.publish(ctx, sess.ID, models.EventToolCallStarted, call)

		result, invokeErr := d.executor.Invoke(ctx, sess.ID, call, regs, requireConfirmation)
		if invokeErr != nil {
			toolErr, _ := tools.AsError(invokeErr)
			kind := KindToolPermanent
			if toolErr != nil {
				switch toolErr.Kind {
				case tools.KindTimeout:
					kind = KindToolTimeout
				case tools.KindTransient:
					kind = KindToolTransient
				case tools.KindArgument:
					kind = KindArgumentError
				}
			}
			return nil, false, NewTurnError(kind, invokeErr)
		}

		if result.ConfirmationNeeded != nil {
			pending := &models.PendingConfirmation{
				ToolCallID:  call.ID,
				ToolName:    call.Name,
				ToolArgs:    call.Input,
				Registers:   result.ConfirmationNeeded.Registers,
				Descriptor:  result.ConfirmationNeeded.Descriptor,
				RequestedAt: time.Now(),
			}
			v.SetPendingConfirmation(pending)
			_ = d.sessions.Persist(ctx, v)
			d.publish(ctx, sess.ID, models.EventToolConfirmWait, pending)
			d.reply(ctx, v, fmt.Sprintf("%s Reply /confirm to proceed or /cancel to abort.", pending.Descriptor))
			return nil, true, nil
		}

		resultMsg := &models.Message{ID: uuid.NewString(), Role: models.RoleToolResult, Content: result.Content, ToolName: call.Name}
		if err := d.sessions.Append(ctx, v, resultMsg); err != nil {
			return nil, false, NewTurnError(KindStorageUnavailable, fmt.Errorf("persist tool_result: %w", err))
		}
		d.publish(ctx, sess.ID, models.EventToolCallCompleted, result)
	}
	return nil, false, nil
}

func (d *Dispatcher) resolveSkill(name string) (string, error) {
	if d.skillMgr == nil {
		return "", fmt.Errorf("skill %q: no skill manager configured", name)
	}
	skill, ok := d.skillMgr.Get(name)
	if !ok {
		return "", fmt.Errorf("skill %q: not found", name)
	}
	if reason := skills.Resolve(skill, d.skillTools, d.skillBins); reason != "" {
		return "", fmt.Errorf("skill %q: %s", name, reason)
	}
	return skill.PromptTemplate, nil
}

func (d *Dispatcher) completeWithRetry(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	schedule := d.config.ProviderRetrySchedule
	for attempt := 0; attempt <= len(schedule); attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.config.ProviderTimeout)
		resp, err := d.provider.Complete(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isTransientProviderError(err) || attempt >= len(schedule) {
			break
		}
		select {
		case <-time.After(schedule[attempt]):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// isTransientProviderError reports whether a completion error may be
// retried. It returns false for every error, since no CompletionProvider
// returns a typed transient error to classify; completeWithRetry therefore
// makes a single attempt.
func isTransientProviderError(err error) bool {
	return false
}

func (d *Dispatcher) endTurn(ctx context.Context, v *sessions.View) error {
	v.SetState(models.StateIdle)
	_ = d.sessions.Persist(ctx, v)
	sess, _ := v.Snapshot()
	d.publish(ctx, sess.ID, models.EventAgentTurnComplete, nil)
	return nil
}

// endWithError ends the current turn in state errored, per §7: the next
// turn's own step 1 (runTurn) transitions awaiting_llm, which is what
// actually returns the session to productive use. idle is never observed
// in between; errored persists until a new turn is dequeued.
func (d *Dispatcher) endWithError(ctx context.Context, v *sessions.View, terr *TurnError) error {
	correlationID := uuid.NewString()
	msg := &models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: genericUserMessage(correlationID)}
	_ = d.sessions.Append(ctx, v, msg)

	v.SetState(models.StateErrored)
	_ = d.sessions.Persist(ctx, v)

	sess, _ := v.Snapshot()
	d.publish(ctx, sess.ID, models.EventAgentTurnError, map[string]string{"kind": string(terr.Kind), "correlation_id": correlationID})
	d.reply(ctx, v, msg.Content)
	return terr
}

func (d *Dispatcher) reply(ctx context.Context, v *sessions.View, text string) {
	if d.sender == nil {
		return
	}
	sess, _ := v.Snapshot()
	_ = d.sender.Send(ctx, sess, text)
}

func lastUserText(transcript []*models.Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == models.RoleUser {
			return transcript[i].Content
		}
	}
	return ""
}
