package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volumestate/internal/ipc"
	"volumestate/internal/wire"
	"volumestate/store"
)

// startIPC runs the daemon loop and the IPC server on a short socket path.
func startIPC(t *testing.T) string {
	t.Helper()

	// Keep the path well under the sun_path limit.
	dir, err := os.MkdirTemp("", "vs")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "ipc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	logger := newTestLogger()
	events := make(chan Event, eventQueueSize)

	go runDaemon(ctx, events, store.New(), nil, logger)

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- runIPCServer(ctx, socketPath, events, logger, ready) }()

	select {
	case <-ready:
	case err := <-errCh:
		t.Fatalf("IPC server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for IPC server")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("timeout waiting for IPC server to stop")
		}
	})
	return socketPath
}

func TestIPC_ToggleAndState(t *testing.T) {
	socketPath := startIPC(t)

	on, err := ipc.State(socketPath)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = ipc.Toggle(socketPath)
	require.NoError(t, err)
	assert.False(t, on)

	on, err = ipc.State(socketPath)
	require.NoError(t, err)
	assert.False(t, on)

	on, err = ipc.Toggle(socketPath)
	require.NoError(t, err)
	assert.True(t, on)

	resp, err := ipc.Send(socketPath, wire.TypeGetState, time.Second)
	require.NoError(t, err)
	require.NotNil(t, resp.State)
	assert.True(t, resp.State.IsVolumeOn)
	assert.Equal(t, uint64(2), resp.State.Seq)
}

func TestIPC_UnknownEventReturnsError(t *testing.T) {
	socketPath := startIPC(t)

	resp, err := ipc.Send(socketPath, "set_volume", time.Second)
	require.Error(t, err)
	assert.Equal(t, wire.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "unknown event type")
}

func TestIPC_MultipleRequestsOnOneConnection(t *testing.T) {
	socketPath := startIPC(t)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	_, err = conn.Write([]byte("not json\n{\"type\":\"toggle_volume\"}\n{\"type\":\"get_state\"}\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	var responses []wire.IPCResponse
	for len(responses) < 3 && scanner.Scan() {
		var resp wire.IPCResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 3)

	assert.Equal(t, wire.StatusError, responses[0].Status)
	assert.Contains(t, responses[0].Error, "parse event")

	assert.Equal(t, wire.StatusOK, responses[1].Status)
	require.NotNil(t, responses[1].State)
	assert.False(t, responses[1].State.IsVolumeOn)
	assert.Equal(t, uint64(1), responses[1].State.Seq)

	assert.Equal(t, wire.StatusOK, responses[2].Status)
	require.NotNil(t, responses[2].State)
	assert.False(t, responses[2].State.IsVolumeOn)
}

func TestServeIPCRequest_QueueFull(t *testing.T) {
	events := make(chan Event) // unbuffered, nobody reads

	resp, typ := serveIPCRequest(context.Background(), []byte(`{"type":"toggle_volume"}`), events)
	assert.Equal(t, wire.TypeToggleVolume, typ)
	assert.Equal(t, wire.StatusError, resp.Status)
	assert.Equal(t, "event queue full", resp.Error)
}

func TestIPC_ToggleReportsItsOwnResult(t *testing.T) {
	events := make(chan Event, 1)
	st := store.New()
	logger := newTestLogger()

	done := make(chan wire.IPCResponse, 1)
	go func() {
		resp, _ := serveIPCRequest(context.Background(), []byte(`{"type":"toggle_volume"}`), events)
		done <- resp
	}()

	// Another writer toggles right after this request is applied but before
	// anyone could issue a follow-up read.
	applyEvent(st, <-events, logger)
	applyEvent(st, ToggleVolume{}, logger)

	select {
	case resp := <-done:
		require.Equal(t, wire.StatusOK, resp.Status)
		require.NotNil(t, resp.State)
		assert.False(t, resp.State.IsVolumeOn)
		assert.Equal(t, uint64(1), resp.State.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("toggle response not received")
	}
	assert.True(t, st.IsVolumeOn())
}
