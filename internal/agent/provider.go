// Package agent implements the Dispatcher (§4.8): the per-session core
// dialog loop that builds prompts, calls the completion provider, drives
// the tool executor, and emits the events that mark every state
// transition.
package agent

import (
	"context"

	"github.com/haasonsaas/stark/pkg/models"
)

// CompletionProvider is the LLM backend contract the dispatcher drives.
// Complete is synchronous: the dispatcher itself owns retry and deadline
// policy (§4.8 step 3), so implementations need not retry internally.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// CompletionRequest is one turn's fully assembled prompt.
type CompletionRequest struct {
	System    string
	Messages  []CompletionMessage
	Tools     []models.ToolSpec
	MaxTokens int
}

// CompletionMessage is one entry of the conversation handed to the
// provider, flattened from one transcript message by the prompt builder.
// Memories and the register snapshot go into CompletionRequest.System.
type CompletionMessage struct {
	Role    models.Role
	Content string
}

// CompletionResponse is the provider's reply to one CompletionRequest. A
// reply carries either free text or one-or-more tool calls, never both
// (§4.8 step 4's shapes (a) and (b)). A skill invocation (shape (c))
// arrives as Text; the dispatcher recognises it with skills.ParseInvocation.
type CompletionResponse struct {
	Text            string
	ToolCalls       []models.ToolCall
	InputTokens     int
	OutputTokens    int
}
