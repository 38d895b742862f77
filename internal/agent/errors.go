package agent

import (
	"errors"
	"fmt"
)

// ErrorKind is the dispatcher-visible error taxonomy (§7). Tool-boundary
// kinds mirror tools.ErrorKind; provider- and turn-boundary kinds are
// introduced here.
type ErrorKind string

const (
	KindStorageUnavailable  ErrorKind = "StorageUnavailable"
	KindIntegrityViolation  ErrorKind = "IntegrityViolation"
	KindProviderTransient   ErrorKind = "ProviderTransient"
	KindProviderPermanent   ErrorKind = "ProviderPermanent"
	KindToolTimeout         ErrorKind = "ToolTimeout"
	KindToolTransient       ErrorKind = "ToolTransient"
	KindToolPermanent       ErrorKind = "ToolPermanent"
	KindArgumentError       ErrorKind = "ArgumentError"
	KindPolicyDenied        ErrorKind = "PolicyDenied"
	KindSkillUnresolved     ErrorKind = "SkillUnresolved"
	KindIterationLimit      ErrorKind = "IterationLimit"
	KindConfirmationRequired ErrorKind = "ConfirmationRequired"
	KindAlreadyLinked       ErrorKind = "AlreadyLinked"
	KindMemoryWriteFailed   ErrorKind = "MemoryWriteFailed"
	KindObserverBackpressure ErrorKind = "ObserverBackpressure"
)

// Permanent reports whether a turn carrying this error kind must end in
// state errored rather than being retried locally (§7's propagation
// policy: only provider/tool transient kinds are retried at their own
// boundary; everything else that reaches the turn level is terminal for
// that turn).
func (k ErrorKind) Permanent() bool {
	switch k {
	case KindProviderTransient, KindToolTransient:
		return false
	default:
		return true
	}
}

// TurnError is a classified failure surfaced from one turn. The dispatcher
// persists it as an assistant error message and emits agent.error, never
// echoing Cause's text to the chat user.
type TurnError struct {
	Kind  ErrorKind
	Cause error
}

func (e *TurnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Cause.Error())
	}
	return string(e.Kind)
}

func (e *TurnError) Unwrap() error { return e.Cause }

// NewTurnError wraps cause under kind.
func NewTurnError(kind ErrorKind, cause error) *TurnError {
	return &TurnError{Kind: kind, Cause: cause}
}

// AsTurnError extracts a *TurnError from err's chain.
func AsTurnError(err error) (*TurnError, bool) {
	var e *TurnError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// genericUserMessage is the single, consistent reply shown to the chat
// user on any turn-ending error, per §7: internal error details never
// reach the user, only a correlation id that also appears in logs/events.
func genericUserMessage(correlationID string) string {
	return fmt.Sprintf("Something went wrong on my end. Reference: %s", correlationID)
}
