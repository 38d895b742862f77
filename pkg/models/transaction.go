package models

import "time"

// TxStatus is the lifecycle state of a queued on-chain transaction (§3).
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxBroadcast TxStatus = "broadcast"
	TxConfirmed TxStatus = "confirmed"
	TxReverted  TxStatus = "reverted"
	TxTimeout   TxStatus = "timeout"
)

// QueuedTransaction is a web3 write queued for confirmation or broadcast by
// the irreversible-tool confirmation flow (§4.3, §4.7).
type QueuedTransaction struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Network   string    `json:"network"`
	To        string    `json:"to"`
	Value     string    `json:"value"` // decimal wei string, arbitrary precision
	Data      string    `json:"data,omitempty"`
	GasLimit  uint64    `json:"gas_limit,omitempty"`
	Nonce     uint64    `json:"nonce,omitempty"`
	Status    TxStatus  `json:"status"`
	TxHash    string    `json:"tx_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
