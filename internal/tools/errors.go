package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the registry and executor.
var (
	ErrNotFound  = errors.New("tool not found")
	ErrDisabled  = errors.New("tool disabled")
	ErrTimeout   = errors.New("tool execution timed out")
	ErrPanicked  = errors.New("tool panicked")
	ErrPolicyDenied = errors.New("tool denied by policy")
)

// ErrorKind classifies a tool failure. Only KindTransient is retried by the
// executor; KindTimeout is deliberately not retryable — it is surfaced
// to the LLM as a tool result so the model can adapt its own approach.
type ErrorKind string

const (
	KindArgument   ErrorKind = "argument_error"
	KindTimeout    ErrorKind = "tool_timeout"
	KindTransient  ErrorKind = "tool_transient"
	KindPermanent  ErrorKind = "tool_permanent"
	KindPanic      ErrorKind = "tool_panic"
)

func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

// Error is a structured tool failure carrying enough context for the audit
// log and for the executor's retry decision.
type Error struct {
	ToolName   string
	ToolCallID string
	Kind       ErrorKind
	Message    string
	Cause      error
	Attempts   int
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempts=%d)", e.Attempts))
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error, classifying cause by inspecting its message
// unless the caller already knows the kind (use WithKind to override).
func NewError(toolName string, cause error) *Error {
	e := &Error{ToolName: toolName, Cause: cause, Kind: classify(cause), Attempts: 1}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *Error) WithKind(k ErrorKind) *Error {
	e.Kind = k
	return e
}

func (e *Error) WithToolCallID(id string) *Error {
	e.ToolCallID = id
	return e
}

func (e *Error) WithAttempts(n int) *Error {
	e.Attempts = n
	return e
}

func classify(err error) ErrorKind {
	if err == nil {
		return KindPermanent
	}
	if errors.Is(err, ErrTimeout) {
		return KindTimeout
	}
	if errors.Is(err, ErrPanicked) {
		return KindPanic
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(s, "connection"), strings.Contains(s, "network"),
		strings.Contains(s, "refused"), strings.Contains(s, "5xx"),
		strings.Contains(s, "502"), strings.Contains(s, "503"), strings.Contains(s, "504"):
		return KindTransient
	case strings.Contains(s, "invalid"), strings.Contains(s, "required"), strings.Contains(s, "missing"):
		return KindArgument
	default:
		return KindPermanent
	}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err should be retried by the executor.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Kind.Retryable()
	}
	return classify(err).Retryable()
}
