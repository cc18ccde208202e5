package janus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/config"
)

func newTestAudioBridgeClient() *AudioBridgeClient {
	return NewAudioBridgeClient(zap.NewNop(), config.JanusConfig{RoomID: 5679})
}

func participantsEvent(participants []map[string]any) Message {
	return Message{
		Janus: "event",
		PluginData: &PluginData{
			Plugin: "janus.plugin.audiobridge",
			Data: map[string]any{
				"audiobridge":  "event",
				"participants": toAnySlice(participants),
			},
		},
	}
}

func toAnySlice(ms []map[string]any) []any {
	out := make([]any, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}

func TestHandleEventAddsParticipantsAndFiresCallback(t *testing.T) {
	c := newTestAudioBridgeClient()

	var got []Participant
	c.OnParticipantsChanged = func(ps []Participant) { got = ps }

	c.handleEvent(participantsEvent([]map[string]any{
		{"id": float64(1001), "display": "Alice", "muted": false},
	}))

	assert.Len(t, got, 1)
	assert.Equal(t, 1001, got[0].ID)
	assert.Equal(t, "Alice", got[0].Display)
}

func TestHandleEventLeavingRemovesParticipant(t *testing.T) {
	c := newTestAudioBridgeClient()
	c.participants[1001] = Participant{ID: 1001, Display: "Alice"}

	var got []Participant
	c.OnParticipantsChanged = func(ps []Participant) { got = ps }

	c.handleEvent(Message{
		Janus: "event",
		PluginData: &PluginData{
			Plugin: "janus.plugin.audiobridge",
			Data:   map[string]any{"audiobridge": "event", "leaving": float64(1001)},
		},
	})

	assert.Empty(t, got)
	assert.Empty(t, c.participants)
}

func TestHandleEventTalkingUpdatesFlag(t *testing.T) {
	c := newTestAudioBridgeClient()
	c.participants[7] = Participant{ID: 7, Display: "Bob"}

	c.handleEvent(Message{
		Janus: "event",
		PluginData: &PluginData{
			Plugin: "janus.plugin.audiobridge",
			Data:   map[string]any{"audiobridge": "talking", "id": float64(7)},
		},
	})
	assert.True(t, c.participants[7].Talking)

	c.handleEvent(Message{
		Janus: "event",
		PluginData: &PluginData{
			Plugin: "janus.plugin.audiobridge",
			Data:   map[string]any{"audiobridge": "stopped-talking", "id": float64(7)},
		},
	})
	assert.False(t, c.participants[7].Talking)
}

func TestHandleEventSurfacesPluginErrors(t *testing.T) {
	c := newTestAudioBridgeClient()

	var reason string
	c.OnError = func(r string) { reason = r }

	c.handleEvent(Message{
		Janus: "event",
		PluginData: &PluginData{
			Plugin: "janus.plugin.audiobridge",
			Data: map[string]any{
				"audiobridge": "event",
				"error":       "No such room",
				"error_code":  float64(485),
			},
		},
	})

	assert.Contains(t, reason, "No such room")
	assert.Contains(t, reason, "485")
}
