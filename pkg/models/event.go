package models

import "encoding/json"

// EventName is a dotted, namespaced domain event published on the Event
// Gateway's broadcast bus (§4.9).
type EventName string

const (
	EventChannelMessageIn  EventName = "channel.message.inbound"
	EventChannelMessageOut EventName = "channel.message.outbound"
	EventAgentTurnStarted  EventName = "agent.turn.started"
	EventAgentTurnComplete EventName = "agent.turn.completed"
	EventAgentTurnError    EventName = "agent.turn.error"
	EventToolCallStarted   EventName = "tool.call.started"
	EventToolCallCompleted EventName = "tool.call.completed"
	EventToolConfirmWait   EventName = "tool.confirmation.pending"
	EventMemoryWritten     EventName = "memory.written"
	EventMemoryCompacted   EventName = "memory.compacted"
	EventObserverDropped   EventName = "observer.dropped"
)

// Frame is the single JSON wire shape multiplexed over a gateway
// connection: a client either sends an RPC ({id, method, params}) or
// receives an RPC reply ({id, ok, payload|error}) or an unsolicited event
// ({type:"event", event, payload, seq}).
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Event   EventName       `json:"event,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Seq     uint64          `json:"seq,omitempty"`
}
