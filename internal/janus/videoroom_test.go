package janus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/config"
)

func newTestVideoRoomClient() *VideoRoomClient {
	return NewVideoRoomClient(zap.NewNop(), config.JanusConfig{RoomID: 5679, VideoRTPPort: 5006})
}

func TestHandleEventTracksNewPublishers(t *testing.T) {
	c := newTestVideoRoomClient()

	var joined []Publisher
	c.OnPublisherJoined = func(p Publisher) { joined = append(joined, p) }

	c.handleEvent(Message{
		Janus: "event",
		PluginData: &PluginData{
			Plugin: "janus.plugin.videoroom",
			Data: map[string]any{
				"videoroom": "event",
				"publishers": []any{
					map[string]any{"id": float64(42), "display": "Screen", "video_codec": "vp8"},
				},
			},
		},
	})

	assert.Len(t, joined, 1)
	assert.Equal(t, 42, joined[0].ID)
	assert.Equal(t, "vp8", joined[0].VideoCodec)
	assert.Contains(t, c.publishers, 42)
}

func TestSubscribeRequiresJoin(t *testing.T) {
	c := newTestVideoRoomClient()
	err := c.SubscribeToPublisher(42)
	assert.Error(t, err)
}

func TestSubscribeUnknownPublisher(t *testing.T) {
	c := newTestVideoRoomClient()
	c.joined = true
	err := c.SubscribeToPublisher(42)
	assert.Error(t, err)
}

func TestStopRTPForwardWithoutStreamIsNoop(t *testing.T) {
	c := newTestVideoRoomClient()
	assert.NoError(t, c.StopRTPForward(42))
}
