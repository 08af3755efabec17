package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_DecodesAsStateMessage(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	b, err := json.Marshal(Envelope{
		Type: TypeVolumeChanged,
		Ts:   &ts,
		Data: StatePayload{IsVolumeOn: false, Seq: 3},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"volume_changed","ts":"2023-11-14T22:13:20Z","data":{"is_volume_on":false,"seq":3}}`, string(b))

	var msg StateMessage
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, TypeVolumeChanged, msg.Type)
	require.NotNil(t, msg.Ts)
	assert.True(t, msg.Ts.Equal(ts))
	assert.False(t, msg.Data.IsVolumeOn)
	assert.Equal(t, uint64(3), msg.Data.Seq)
}

func TestIPCResponse_OmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(IPCResponse{Status: StatusOK})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(b))

	b, err = json.Marshal(IPCResponse{Status: StatusOK, State: &StatePayload{IsVolumeOn: true, Seq: 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","state":{"is_volume_on":true,"seq":2}}`, string(b))
}
