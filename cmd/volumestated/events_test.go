package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalEvent(t *testing.T) {
	ev, err := UnmarshalEvent([]byte(`{"type":"toggle_volume"}`))
	require.NoError(t, err)
	assert.Equal(t, ToggleVolume{}, ev)

	ev, err = UnmarshalEvent([]byte(`{"type":"get_state"}`))
	require.NoError(t, err)
	req, ok := ev.(RequestStateSnapshot)
	require.True(t, ok, "got %T", ev)
	assert.Nil(t, req.Reply)
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"set_volume"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown event type: "set_volume"`)

	_, err = UnmarshalEvent([]byte(`not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal envelope")
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "toggle_volume", eventName(ToggleVolume{}))
	assert.Equal(t, "get_state", eventName(RequestStateSnapshot{}))
	assert.Equal(t, "timed", eventName(TimedEvent{}))
}
