// Package ipc is the client side of the volumestated Unix socket protocol.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"volumestate/internal/wire"
)

// DefaultTimeout bounds dialing and the request/response round trip.
const DefaultTimeout = 2 * time.Second

// Send sends one event of the given type (see wire.Type*) and returns the daemon's response.
// A response with status "error" is returned together with an error.
func Send(socketPath, eventType string, timeout time.Duration) (wire.IPCResponse, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return wire.IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return wire.IPCResponse{}, fmt.Errorf("set deadline: %w", err)
	}

	data, err := json.Marshal(wire.EventEnvelope{Type: eventType})
	if err != nil {
		return wire.IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return wire.IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp wire.IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return wire.IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != wire.StatusOK {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}

	return resp, nil
}

// Toggle flips the daemon's volume flag and returns the value this toggle produced.
func Toggle(socketPath string) (bool, error) {
	return stateOf(Send(socketPath, wire.TypeToggleVolume, 0))
}

// State returns the daemon's current volume flag.
func State(socketPath string) (bool, error) {
	return stateOf(Send(socketPath, wire.TypeGetState, 0))
}

func stateOf(resp wire.IPCResponse, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	if resp.State == nil {
		return false, fmt.Errorf("ipc error: response has no state")
	}
	return resp.State.IsVolumeOn, nil
}
