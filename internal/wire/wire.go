// Package wire defines the JSON messages exchanged between volumestated and its clients.
//
// IPC (unix socket): line-delimited JSON.
//   - Client sends: {"type": "toggle_volume"} or {"type": "get_state"}
//   - Server responds: {"status": "ok", "state": {...}} or {"status": "error", "error": "msg"}
//
// State WebSocket: JSON text frames with an envelope {type, ts, data}.
//   - Server sends "state_init" on connect and "volume_changed" on every toggle.
//   - Client may send {"type": "toggle_volume"}.
package wire

import (
	"encoding/json"
	"time"
)

// Inbound event types.
const (
	TypeToggleVolume = "toggle_volume"
	TypeGetState     = "get_state"
)

// Outbound state message types.
const (
	TypeStateInit     = "state_init"
	TypeVolumeChanged = "volume_changed"
)

// IPC response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// EventEnvelope wraps an inbound event with a type discriminator.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StatePayload is the externally visible view of the volume flag.
// Seq increases by one per toggle; clients drop payloads older than the last one seen.
type StatePayload struct {
	IsVolumeOn bool   `json:"is_volume_on"`
	Seq        uint64 `json:"seq"`
}

// IPCResponse is sent back for every IPC request line.
type IPCResponse struct {
	Status string        `json:"status"`
	Error  string        `json:"error,omitempty"`
	State  *StatePayload `json:"state,omitempty"`
}

// Envelope is the outbound WebSocket frame.
type Envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// StateMessage is the decoded form of an outbound frame whose data is a StatePayload.
type StateMessage struct {
	Type string       `json:"type"`
	Ts   *time.Time   `json:"ts,omitempty"`
	Data StatePayload `json:"data"`
}
