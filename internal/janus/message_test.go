package janus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataIDExtractsNumericID(t *testing.T) {
	raw := json.RawMessage(`{"id": 12345}`)
	id, ok := dataID(raw)
	assert.True(t, ok)
	assert.Equal(t, uint64(12345), id)
}

func TestDataIDMissingIDReturnsFalse(t *testing.T) {
	raw := json.RawMessage(`{"foo": "bar"}`)
	_, ok := dataID(raw)
	assert.False(t, ok)
}

func TestAsHelpersTolerateMissingKeys(t *testing.T) {
	m := map[string]any{"name": "x", "count": float64(3), "ok": true}
	assert.Equal(t, "x", asString(m, "name"))
	assert.Equal(t, "", asString(m, "missing"))
	assert.Equal(t, 3, asInt(m, "count"))
	assert.Equal(t, 0, asInt(m, "missing"))
	assert.True(t, asBool(m, "ok"))
	assert.False(t, asBool(m, "missing"))
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := Message{
		Janus:       "event",
		Transaction: "abc123",
		PluginData: &PluginData{
			Plugin: "janus.plugin.audiobridge",
			Data:   map[string]any{"audiobridge": "joined", "id": float64(7)},
		},
	}

	raw, err := json.Marshal(msg)
	assert.NoError(t, err)

	var decoded Message
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "event", decoded.Janus)
	assert.Equal(t, "joined", decoded.PluginData.Data["audiobridge"])
}
