package horizon

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/boxsync/internal/device"
)

func TestDecodeMessage(t *testing.T) {
	t.Run("presence", func(t *testing.T) {
		msg, err := decodeMessage(presenceMsg(testBox, "ONLINE_STANDBY"))
		require.NoError(t, err)
		assert.Equal(t, testBox, msg.Source)
		assert.True(t, msg.Presence)
		assert.Equal(t, device.StateOnlineStandby, msg.State)
		assert.Nil(t, msg.Status)
	})

	t.Run("status", func(t *testing.T) {
		msg, err := decodeMessage(statusMsg(testBox,
			`{"uiStatus":"mainUI","playerState":{"sourceType":"replay","speed":0.5,"source":{"eventId":"e1"}}}`))
		require.NoError(t, err)
		assert.False(t, msg.Presence)
		require.NotNil(t, msg.Status)
		assert.Equal(t, "mainUI", msg.Status.UIStatus)
		require.NotNil(t, msg.Status.PlayerState)
		assert.Equal(t, "replay", msg.Status.PlayerState.SourceType)
		require.NotNil(t, msg.Status.PlayerState.Speed)
		assert.InDelta(t, 0.5, *msg.Status.PlayerState.Speed, 1e-9)
		assert.Equal(t, "e1", msg.Status.PlayerState.Source.EventID)
	})

	t.Run("numeric source", func(t *testing.T) {
		msg, err := decodeMessage([]byte(`{"source":42,"deviceType":"STB","state":"ONLINE_RUNNING"}`))
		require.NoError(t, err)
		assert.Empty(t, msg.Source)
	})

	t.Run("string status", func(t *testing.T) {
		msg, err := decodeMessage([]byte(`{"source":"x","status":"ok"}`))
		require.NoError(t, err)
		assert.Nil(t, msg.Status)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeMessage([]byte(`{"source":`))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})
}

func TestEncodePayloads(t *testing.T) {
	key, err := encodeKeyEvent(KeyPower)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CPE.KeyEvent","status":{"w3cKey":"Power","eventType":"keyDownUp"}}`, string(key))

	presence, err := encodePresence(testClientID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"`+testClientID+`","state":"ONLINE_RUNNING","deviceType":"HGO"}`, string(presence))

	req, err := encodeStateRequest(testClientID)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"id":"[0-9a-f]{8}","type":"CPE.getUiStatus","source":"`+testClientID+`"\}$`, string(req))
}

func TestNewClientID(t *testing.T) {
	alnum := regexp.MustCompile(`^[0-9a-zA-Z]{30}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewClientID()
		assert.Regexp(t, alnum, id)
		assert.False(t, seen[id], "duplicate client id %s", id)
		seen[id] = true
	}
	assert.Len(t, newMessageID(), 8)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "hh/$SYS", sysTopic("hh"))
	assert.Equal(t, "hh/#", householdWildcard("hh"))
	assert.Equal(t, "hh/box", deviceTopic("hh", "box"))
	assert.Equal(t, "hh/box/status", deviceStatusTopic("hh", "box"))
	assert.Equal(t, "hh/box/#", deviceWildcard("hh", "box"))
	assert.Equal(t, []string{"hh/$SYS", "hh", "hh/#", "hh/client"}, householdSubscriptions("hh", "client"))
	assert.Equal(t, []string{"hh/box", "hh/box/status", "hh/box/#"}, deviceSubscriptions("hh", "box"))
}
