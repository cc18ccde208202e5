package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/config"
	"github.com/andrija/agentbridge/internal/janus"
	"github.com/andrija/agentbridge/internal/jitter"
	"github.com/andrija/agentbridge/internal/rtpcodec"
)

func newTestJitterBuffer() *jitter.Buffer {
	return jitter.NewBuffer(50, 16)
}

func testPacket(seq uint16, payload []byte) rtpcodec.Packet {
	return rtpcodec.Packet{SequenceNumber: seq, Payload: payload}
}

func newTestBridge() *Bridge {
	cfg := &config.Settings{GreetingTemplate: "Hello %s"}
	return New(zap.NewNop(), cfg)
}

func TestBytesToInt16LEDecodesLittleEndian(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80}
	samples := bytesToInt16LE(raw)
	assert.Equal(t, []int16{1, -1, -32768}, samples)
}

func TestDrainAudioQueueEmptiesChannel(t *testing.T) {
	ch := make(chan []byte, 4)
	ch <- []byte{1}
	ch <- []byte{2}
	ch <- []byte{3}

	drainAudioQueue(ch)

	select {
	case v := <-ch:
		t.Fatalf("expected empty channel, got %v", v)
	default:
	}
}

func TestAIAudioCallbackSetsSpeakingAndQueues(t *testing.T) {
	b := newTestBridge()

	b.onAIAudio([]byte{1, 2, 3, 4})

	assert.True(t, b.aiSpeaking.Load())
	assert.Equal(t, uint64(1), b.Stats.AudioChunksFromAI.Load())
	assert.Equal(t, uint64(4), b.Stats.AudioBytesFromAI.Load())

	select {
	case chunk := <-b.outgoingAudio:
		assert.Equal(t, []byte{1, 2, 3, 4}, chunk)
	default:
		t.Fatal("expected queued chunk")
	}
}

func TestAITurnCompleteClearsSpeakingFlag(t *testing.T) {
	b := newTestBridge()
	b.aiSpeaking.Store(true)

	b.onAITurnComplete()

	assert.False(t, b.aiSpeaking.Load())
	assert.Equal(t, uint64(1), b.Stats.AITurnCompletions.Load())
}

func TestAIInterruptedDrainsOutgoingQueue(t *testing.T) {
	b := newTestBridge()
	b.aiSpeaking.Store(true)
	b.outgoingAudio <- []byte{9, 9, 9}

	b.onAIInterrupted()

	assert.False(t, b.aiSpeaking.Load())
	assert.Equal(t, uint64(1), b.Stats.AIInterruptions.Load())
	select {
	case v := <-b.outgoingAudio:
		t.Fatalf("expected drained queue, got %v", v)
	default:
	}
}

func TestMarkNewParticipantsCountsEachIDOnce(t *testing.T) {
	b := newTestBridge()
	alice := janus.Participant{ID: 1001, Display: "Alice"}
	bob := janus.Participant{ID: 1002, Display: "Bob"}

	fresh := b.markNewParticipants([]janus.Participant{alice})
	assert.Len(t, fresh, 1)
	assert.Equal(t, uint64(1), b.Stats.ParticipantsSeen.Load())

	// Same roster again (e.g. after a leave event): nothing newly seen.
	fresh = b.markNewParticipants([]janus.Participant{alice})
	assert.Empty(t, fresh)
	assert.Equal(t, uint64(1), b.Stats.ParticipantsSeen.Load())

	fresh = b.markNewParticipants([]janus.Participant{alice, bob})
	assert.Len(t, fresh, 1)
	assert.Equal(t, "Bob", fresh[0].Display)
	assert.Equal(t, uint64(2), b.Stats.ParticipantsSeen.Load())
}

func TestGetStatusReflectsRunningState(t *testing.T) {
	b := newTestBridge()
	assert.False(t, b.GetStatus().Running)

	b.running.Store(true)
	assert.True(t, b.GetStatus().Running)
}

func TestOnRTPPacketFeedsJitterBufferInOrder(t *testing.T) {
	b := newTestBridge()
	b.jitterBuf = newTestJitterBuffer()

	b.onRTPPacket(testPacket(0, []byte("a")), nil)
	b.onRTPPacket(testPacket(1, []byte("b")), nil)

	first := <-b.incomingAudio
	second := <-b.incomingAudio
	assert.Equal(t, []byte("a"), first)
	assert.Equal(t, []byte("b"), second)
	assert.Equal(t, uint64(2), b.Stats.RTPPacketsReceived.Load())
}
