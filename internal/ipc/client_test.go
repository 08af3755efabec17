package ipc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volumestate/internal/wire"
)

func TestSend_NoDaemon(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "missing.sock")

	_, err := Send(socketPath, wire.TypeGetState, 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to")

	_, err = Toggle(socketPath)
	require.Error(t, err)

	_, err = State(socketPath)
	require.Error(t, err)
}
