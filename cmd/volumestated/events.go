package main

import (
	"encoding/json"
	"fmt"
	"time"

	"volumestate/internal/wire"
	"volumestate/store"
)

// ============================================================================
// Events - inputs to the daemon loop
// ============================================================================
// Events come from IPC, WebSocket clients and input devices. The daemon loop is
// the only goroutine that touches the store; everything else sends events.
// ============================================================================

// Event is the marker interface for everything the daemon loop consumes.
type Event interface {
	eventMarker()
}

// ToggleVolume requests the volume flag to be flipped.
// When Reply is set the loop sends the state produced by this toggle on it;
// Reply should be buffered (size 1), the loop never blocks on it.
type ToggleVolume struct {
	Reply chan<- StateSnapshot
}

func (ToggleVolume) eventMarker() {}

// RequestStateSnapshot asks the daemon loop for the current state.
// Reply should be buffered (size 1); the loop never blocks on it.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// TimedEvent stamps an event with its arrival time.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// StateSnapshot is a copy of the store handed to other goroutines.
type StateSnapshot struct {
	IsVolumeOn bool
	Seq        uint64
	At         time.Time
}

func snapshotFromStore(s store.Snapshot) StateSnapshot {
	return StateSnapshot{IsVolumeOn: s.IsVolumeOn, Seq: s.Seq, At: s.At}
}

// StateBroadcast is emitted by the daemon loop for every externally visible change.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastVolumeChanged is emitted after each toggle.
type BroadcastVolumeChanged struct {
	IsVolumeOn bool
	Seq        uint64
	At         time.Time
}

func (BroadcastVolumeChanged) broadcastMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// get_state decodes to a RequestStateSnapshot with a nil Reply; callers attach one.
func UnmarshalEvent(data []byte) (Event, error) {
	var env wire.EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case wire.TypeToggleVolume:
		return ToggleVolume{}, nil
	case wire.TypeGetState:
		return RequestStateSnapshot{}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}
