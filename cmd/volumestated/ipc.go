package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"volumestate/internal/wire"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Local clients (volumectl, scripts, hotkey daemons) send JSON events to the
// daemon over a Unix domain socket.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "toggle_volume"} or {"type": "get_state"}
//   - Server responds: {"status": "ok", "state": {...}} or {"status": "error", "error": "msg"}
// ============================================================================

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
// ready, if non-nil, is closed once the socket is listening.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger, ready chan<- struct{}) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)
	if ready != nil {
		close(ready)
	}

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection serves request lines from a single IPC client until it disconnects.
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	log := logger.With("remote_addr", conn.RemoteAddr().String())
	if cred, err := peerCredentials(conn); err == nil {
		log = log.With("peer_uid", cred.UID, "peer_pid", cred.PID)
	}
	log.Debug("IPC connection")

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		log.Debug("IPC received", "line", line)

		resp, typ := serveIPCRequest(ctx, []byte(line), events)
		ipcRequestsTotal.WithLabelValues(typ, resp.Status).Inc()

		if err := encoder.Encode(resp); err != nil {
			log.Error("IPC failed to send response", "error", err)
			return
		}
	}

	log.Debug("IPC connection closed")
}

// serveIPCRequest handles one request line and returns the response plus a metrics label for the type.
func serveIPCRequest(ctx context.Context, line []byte, events chan<- Event) (wire.IPCResponse, string) {
	ev, err := UnmarshalEvent(line)
	if err != nil {
		return ipcError("parse event: %v", err), "invalid"
	}

	switch ev.(type) {
	case ToggleVolume:
		snap, err := requestToggle(ctx, events, snapshotTimeout)
		if err != nil {
			return ipcError("%v", err), wire.TypeToggleVolume
		}
		return wire.IPCResponse{
			Status: wire.StatusOK,
			State:  &wire.StatePayload{IsVolumeOn: snap.IsVolumeOn, Seq: snap.Seq},
		}, wire.TypeToggleVolume

	case RequestStateSnapshot:
		snap, err := requestSnapshot(ctx, events, snapshotTimeout)
		if err != nil {
			return ipcError("get state: %v", err), wire.TypeGetState
		}
		return wire.IPCResponse{
			Status: wire.StatusOK,
			State:  &wire.StatePayload{IsVolumeOn: snap.IsVolumeOn, Seq: snap.Seq},
		}, wire.TypeGetState

	default:
		return ipcError("unsupported event %s", eventName(ev)), "invalid"
	}
}

func ipcError(format string, args ...any) wire.IPCResponse {
	return wire.IPCResponse{Status: wire.StatusError, Error: fmt.Sprintf(format, args...)}
}

// errEventQueueFull is returned when the daemon loop cannot take another event.
var errEventQueueFull = errors.New("event queue full")

// requestToggle flips the flag through the daemon loop and returns the state
// that toggle produced. The toggle is never queued behind a full event channel.
func requestToggle(ctx context.Context, events chan<- Event, timeout time.Duration) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)

	select {
	case events <- TimedEvent{Event: ToggleVolume{Reply: reply}, At: time.Now()}:
	default:
		return StateSnapshot{}, errEventQueueFull
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return StateSnapshot{}, fmt.Errorf("toggle: %w", ctx.Err())
	case snap := <-reply:
		return snap, nil
	}
}

// requestSnapshot asks the daemon loop for the current state and waits up to timeout.
func requestSnapshot(ctx context.Context, events chan<- Event, timeout time.Duration) (StateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}
