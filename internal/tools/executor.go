package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/haasonsaas/stark/internal/register"
	"github.com/haasonsaas/stark/internal/storage"
	"github.com/haasonsaas/stark/internal/tools/policy"
	"github.com/haasonsaas/stark/pkg/models"
)

// ExecutorConfig tunes concurrency, timeouts, and the retry schedule.
type ExecutorConfig struct {
	MaxConcurrency int
	DefaultTimeout time.Duration
	// RetrySchedule lists the backoff delay before each retry attempt, in
	// order. Only ErrorKind transient failures (network 5xx) are retried;
	// ToolTimeout is surfaced immediately so the model can adapt.
	RetrySchedule []time.Duration
}

// DefaultExecutorConfig matches the spec's literal retry schedule: up to
// two retries, backing off 250ms then 1s.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		MaxConcurrency: 5,
		DefaultTimeout: 30 * time.Second,
		RetrySchedule:  []time.Duration{250 * time.Millisecond, time.Second},
	}
}

// ToolConfig holds a per-tool override of the executor defaults.
type ToolConfig struct {
	Timeout       time.Duration
	RetrySchedule []time.Duration
}

// Executor runs tool calls with policy enforcement, argument validation,
// bounded concurrency, retry-on-transient, audit logging, and the
// irreversible-tool confirmation pause.
type Executor struct {
	registry *Registry
	resolver *policy.Resolver
	audit    storage.ToolAuditStore
	config   *ExecutorConfig

	mu            sync.RWMutex
	toolConfig    map[string]*ToolConfig
	sessionPolicy *policy.Policy

	sem *semaphore.Weighted

	metrics *metrics
}

type metrics struct {
	mu         sync.Mutex
	executions int64
	retries    int64
	failures   int64
	timeouts   int64
	panics     int64
}

// MetricsSnapshot is a point-in-time, copy-safe view of executor counters.
type MetricsSnapshot struct {
	Executions int64
	Retries    int64
	Failures   int64
	Timeouts   int64
	Panics     int64
}

// NewExecutor builds an Executor. audit may be nil in tests that do not
// care about the audit trail.
func NewExecutor(registry *Registry, resolver *policy.Resolver, audit storage.ToolAuditStore, config *ExecutorConfig) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	return &Executor{
		registry:   registry,
		resolver:   resolver,
		audit:      audit,
		config:     config,
		toolConfig: make(map[string]*ToolConfig),
		sem:        semaphore.NewWeighted(int64(config.MaxConcurrency)),
		metrics:    &metrics{},
	}
}

// ConfigureTool installs a per-tool override.
func (e *Executor) ConfigureTool(name string, cfg *ToolConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toolConfig[name] = cfg
}

func (e *Executor) toolConfigFor(name string) *ToolConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.toolConfig[name]
}

// Invoke runs one tool call under the given session policy and register
// context, as described by the execution contract: validate enablement,
// validate arguments, enforce timeout, retry transient failures, record an
// audit row regardless of outcome, and pause irreversible tools pending
// confirmation when the session requires it.
func (e *Executor) Invoke(ctx context.Context, sessionID string, call models.ToolCall, regs *register.Context, requireConfirmation bool) (*Result, error) {
	start := time.Now()

	t, ok := e.registry.Get(call.Name)
	if !ok {
		return e.recordAndReturn(ctx, sessionID, call, start, nil, NewError(call.Name, ErrNotFound).WithKind(KindArgument))
	}
	spec := t.Spec()
	if !spec.Enabled {
		return e.recordAndReturn(ctx, sessionID, call, start, nil, NewError(call.Name, ErrDisabled).WithKind(KindArgument))
	}
	if e.resolver != nil {
		if d := e.resolver.Decide(e.policyForSession(sessionID), call.Name); !d.Allowed {
			return e.recordAndReturn(ctx, sessionID, call, start, nil, NewError(call.Name, ErrPolicyDenied).WithKind(KindArgument))
		}
	}
	if err := e.registry.ValidateArgs(call.Name, call.Input); err != nil {
		return e.recordAndReturn(ctx, sessionID, call, start, nil, NewError(call.Name, err).WithKind(KindArgument))
	}

	if spec.SideEffectClass == models.EffectIrreversible && requireConfirmation {
		if confirmable, ok := t.(ConfirmableTool); ok {
			descriptor, err := confirmable.Describe(call.Input)
			if err != nil {
				return e.recordAndReturn(ctx, sessionID, call, start, nil, NewError(call.Name, err).WithKind(KindArgument))
			}
			var snapshot map[string]models.RegisterValue
			if regs != nil {
				snapshot = regs.Snapshot()
			}
			result := &Result{
				ConfirmationNeeded: &ConfirmationRequest{Descriptor: descriptor, Registers: snapshot},
			}
			e.record(ctx, sessionID, call, time.Since(start), "confirmation_required", "")
			return result, nil
		}
	}

	result, err := e.executeWithRetry(ctx, t, call, regs)
	return e.recordAndReturn(ctx, sessionID, call, start, result, err)
}

// policyForSession is a seam the dispatcher fills in via ConfigureTool's
// sibling session-policy lookup; kept nil-safe for executor-only tests.
func (e *Executor) policyForSession(sessionID string) *policy.Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessionPolicy
}

// SetSessionPolicy installs the policy the executor should consult for
// every Invoke call until changed. The dispatcher resets this once per
// turn from the session's current policy snapshot.
func (e *Executor) SetSessionPolicy(p *policy.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionPolicy = p
}

func (e *Executor) executeWithRetry(ctx context.Context, t Tool, call models.ToolCall, regs *register.Context) (*Result, error) {
	spec := t.Spec()
	timeout := e.config.DefaultTimeout
	if spec.Timeout > 0 {
		timeout = spec.Timeout
	}
	schedule := e.config.RetrySchedule
	if tc := e.toolConfigFor(call.Name); tc != nil {
		if tc.Timeout > 0 {
			timeout = tc.Timeout
		}
		if tc.RetrySchedule != nil {
			schedule = tc.RetrySchedule
		}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, NewError(call.Name, ctx.Err()).WithKind(KindTimeout).WithToolCallID(call.ID)
	}
	defer e.sem.Release(1)

	var lastErr error
	attempts := len(schedule) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := e.runOnce(ctx, t, call, timeout, regs)
		if err == nil {
			e.metrics.mu.Lock()
			e.metrics.executions++
			if attempt > 0 {
				e.metrics.retries += int64(attempt)
			}
			e.metrics.mu.Unlock()
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt >= len(schedule) {
			break
		}
		select {
		case <-time.After(schedule[attempt]):
		case <-ctx.Done():
			lastErr = NewError(call.Name, ctx.Err()).WithKind(KindTimeout).WithToolCallID(call.ID)
			attempt = attempts
		}
	}

	e.metrics.mu.Lock()
	e.metrics.executions++
	e.metrics.failures++
	if toolErr, ok := AsError(lastErr); ok {
		switch toolErr.Kind {
		case KindTimeout:
			e.metrics.timeouts++
		case KindPanic:
			e.metrics.panics++
		}
	}
	e.metrics.mu.Unlock()

	return nil, lastErr
}

func (e *Executor) runOnce(ctx context.Context, t Tool, call models.ToolCall, timeout time.Duration, regs *register.Context) (*Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: NewError(call.Name, fmt.Errorf("panic: %v\n%s", r, debug.Stack())).WithKind(KindPanic).WithToolCallID(call.ID)}
			}
		}()
		var res *Result
		var err error
		if aware, ok := t.(RegisterAwareTool); ok {
			res, err = aware.ExecuteWithRegisters(execCtx, call.Input, regs)
		} else {
			res, err = t.Execute(execCtx, call.Input)
		}
		if err != nil {
			ch <- outcome{err: NewError(call.Name, err).WithToolCallID(call.ID)}
			return
		}
		ch <- outcome{result: res}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, NewError(call.Name, ctx.Err()).WithKind(KindTimeout).WithToolCallID(call.ID)
		}
		return nil, NewError(call.Name, ErrTimeout).WithKind(KindTimeout).WithToolCallID(call.ID)
	}
}

func (e *Executor) recordAndReturn(ctx context.Context, sessionID string, call models.ToolCall, start time.Time, result *Result, err error) (*Result, error) {
	outcome := "success"
	errorClass := ""
	if err != nil {
		outcome = "error"
		if toolErr, ok := AsError(err); ok {
			errorClass = string(toolErr.Kind)
		}
	}
	e.record(ctx, sessionID, call, time.Since(start), outcome, errorClass)
	return result, err
}

func (e *Executor) record(ctx context.Context, sessionID string, call models.ToolCall, duration time.Duration, outcome, errorClass string) {
	if e.audit == nil {
		return
	}
	rec := &models.ToolAuditRecord{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		ToolName:   call.Name,
		ArgsHash:   hashArgs(call.Input),
		Duration:   duration,
		Outcome:    outcome,
		ErrorClass: errorClass,
		CreatedAt:  time.Now(),
	}
	_ = e.audit.Record(ctx, rec)
}

func hashArgs(args json.RawMessage) string {
	sum := sha256.Sum256(args)
	return hex.EncodeToString(sum[:])
}

// Metrics returns a snapshot of the executor's counters.
func (e *Executor) Metrics() MetricsSnapshot {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	return MetricsSnapshot{
		Executions: e.metrics.executions,
		Retries:    e.metrics.retries,
		Failures:   e.metrics.failures,
		Timeouts:   e.metrics.timeouts,
		Panics:     e.metrics.panics,
	}
}
