// Package tools implements the Tool Registry and Executor: the catalogue of
// invocable capabilities, their policy-gated access, and the bounded,
// retrying, audited machinery that runs them.
package tools

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/stark/internal/register"
	"github.com/haasonsaas/stark/pkg/models"
)

// Result is the outcome of a single tool invocation.
type Result struct {
	Content           string
	IsError           bool
	ConfirmationNeeded *ConfirmationRequest
}

// ConfirmationRequest is returned by an irreversible tool instead of
// executing, when the session's require_confirmation policy is active.
type ConfirmationRequest struct {
	Descriptor string
	Registers  map[string]models.RegisterValue
}

// Tool is one invocable capability. Implementations are registered once at
// boot and invoked by name through the Executor.
type Tool interface {
	Spec() models.ToolSpec
	Execute(ctx context.Context, args json.RawMessage) (*Result, error)
}

// ConfirmableTool is implemented by irreversible tools that need to pause
// for user confirmation rather than executing immediately.
type ConfirmableTool interface {
	Tool
	Describe(args json.RawMessage) (string, error)
}

// RegisterAwareTool is implemented by tools that read or write the calling
// turn's register context (set_address, to_raw_amount, token_lookup,
// erc20_transfer). The executor calls ExecuteWithRegisters instead of
// Execute for these, passing the regs instance the dispatcher built for
// this turn only — never a value shared across turns or sessions.
type RegisterAwareTool interface {
	Tool
	ExecuteWithRegisters(ctx context.Context, args json.RawMessage, regs *register.Context) (*Result, error)
}
