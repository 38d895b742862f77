// Package models contains the core data types shared across the agent
// runtime: sessions, messages, tool calls, memories, identities, and
// queued transactions.
package models

import (
	"encoding/json"
	"time"
)

// ChannelType identifies a messaging platform the Channel Façade bridges.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelDiscord  ChannelType = "discord"
	ChannelSlack    ChannelType = "slack"
)

// Direction indicates whether a message flowed into or out of the core.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Role identifies the author of a persisted message.
type Role string

const (
	RoleUser         Role = "user"
	RoleAssistant    Role = "assistant"
	RoleSystem       Role = "system"
	RoleToolRequest  Role = "tool_request"
	RoleToolResult   Role = "tool_result"
)

// Message is one entry in a session's ordered transcript. Seq is dense and
// strictly increasing within a session (§3 invariant); assistant messages
// carrying ToolCalls are immediately followed, in execution order, by a
// tool_result message for each call.
type Message struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Seq        int64           `json:"seq"`
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolArgs   json.RawMessage `json:"tool_args,omitempty"`
	ToolResult json.RawMessage `json:"tool_result,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToolCall is an LLM request to invoke a named tool with JSON arguments.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolExecResult is the outcome of running a tool call.
type ToolExecResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// SessionState is the dispatcher-visible lifecycle state of a session (§3).
type SessionState string

const (
	StateIdle                    SessionState = "idle"
	StateAwaitingLLM             SessionState = "awaiting_llm"
	StateRunningTool             SessionState = "running_tool"
	StateAwaitingUserConfirm     SessionState = "awaiting_user_confirmation"
	StateCompleted               SessionState = "completed"
	StateErrored                 SessionState = "errored"
)

// PendingConfirmation is the persisted continuation for a paused irreversible
// tool call, keyed to the session awaiting a /confirm or /cancel.
type PendingConfirmation struct {
	ToolCallID  string          `json:"tool_call_id"`
	ToolName    string          `json:"tool_name"`
	ToolArgs    json.RawMessage `json:"tool_args"`
	Registers   map[string]RegisterValue `json:"registers,omitempty"`
	Descriptor  string          `json:"descriptor"`
	RequestedAt time.Time       `json:"requested_at"`
}

// Session identifies one conversation thread by (channel_type,
// platform_conversation_id). Sessions are never destroyed; reset clears the
// transcript but preserves id, identity, and memories.
type Session struct {
	ID                   string               `json:"id"`
	ChannelType          ChannelType          `json:"channel_type"`
	PlatformConvID       string               `json:"platform_conversation_id"`
	IdentityID           string               `json:"identity_id"`
	State                SessionState         `json:"state"`
	PendingConfirmation  *PendingConfirmation `json:"pending_confirmation,omitempty"`
	TurnCounter          int64                `json:"turn_counter"`
	// TranscriptResetSeq is the message seq as of the last reset(); the
	// Session Manager's window rebuild only replays messages after this
	// point, so history stays in the persisted log without bleeding back
	// into a reset conversation.
	TranscriptResetSeq int64     `json:"transcript_reset_seq,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	LastActiveAt       time.Time `json:"last_active_at"`
}

// Key returns the stable lookup key for a session's (channel, conversation).
func (s *Session) Key() string {
	return string(s.ChannelType) + ":" + s.PlatformConvID
}
