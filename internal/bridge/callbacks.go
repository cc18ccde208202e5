package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/janus"
)

const greetingDelay = 1500 * time.Millisecond
const aiReconnectDelay = 2 * time.Second

func (b *Bridge) onJanusJoined(evt janus.JoinedEvent) {
	b.log.Info("joined janus room", zap.Int("participant_id", evt.ParticipantID))
	b.onParticipantsChanged(evt.Participants)
}

func (b *Bridge) onParticipantsChanged(participants []janus.Participant) {
	if len(participants) == 0 {
		return
	}

	fresh := b.markNewParticipants(participants)

	go b.setupRTPForwarding(participants)

	if b.aiClient != nil && b.aiClient.IsReady() {
		for _, p := range fresh {
			go b.sendGreeting(p.Display)
		}
	}
}

// markNewParticipants returns the participants never seen before and bumps
// the participants-seen counter for each.
func (b *Bridge) markNewParticipants(participants []janus.Participant) []janus.Participant {
	b.forwardedMu.Lock()
	defer b.forwardedMu.Unlock()

	var fresh []janus.Participant
	for _, p := range participants {
		if b.greetedParticipants[p.ID] {
			continue
		}
		b.greetedParticipants[p.ID] = true
		b.Stats.ParticipantsSeen.Add(1)
		fresh = append(fresh, p)
	}
	return fresh
}

// setupRTPForwarding asks Janus to forward each not-yet-forwarded
// participant's audio to our RTP receiver, so jitterBuf sees their
// individual stream rather than only the room's already-mixed output.
func (b *Bridge) setupRTPForwarding(participants []janus.Participant) {
	b.forwardedMu.Lock()
	defer b.forwardedMu.Unlock()

	for _, p := range participants {
		if b.forwardedParticipants[p.ID] {
			continue
		}
		if err := b.janusClient.ConfigureRTPForwarding(b.cfg.Janus.RTPHost, b.cfg.Janus.RTPPort, p.ID); err != nil {
			b.log.Error("rtp forwarding setup failed", zap.Int("participant_id", p.ID), zap.Error(err))
			continue
		}
		b.forwardedParticipants[p.ID] = true
	}
}

func (b *Bridge) sendGreeting(name string) {
	time.Sleep(greetingDelay)
	if b.aiClient == nil || !b.aiClient.IsReady() {
		return
	}
	text := fmt.Sprintf(b.cfg.GreetingTemplate, name)
	if err := b.aiClient.SendText(text, true); err != nil {
		b.log.Error("failed to send greeting", zap.Error(err))
	}
}

func (b *Bridge) onJanusError(reason string) {
	b.Stats.JanusErrors.Add(1)
	b.log.Error("janus error", zap.String("reason", reason))
}

func (b *Bridge) onAIReady() {
	b.log.Info("ai service ready for audio")
}

func (b *Bridge) onAIAudio(pcm []byte) {
	b.aiSpeaking.Store(true)
	b.Stats.AudioChunksFromAI.Add(1)
	b.Stats.AudioBytesFromAI.Add(uint64(len(pcm)))

	select {
	case b.outgoingAudio <- pcm:
	default:
		select {
		case <-b.outgoingAudio:
		default:
		}
		b.outgoingAudio <- pcm
	}
}

func (b *Bridge) onAIText(text string) {
	b.log.Info("ai response text", zap.String("text", text))
}

func (b *Bridge) onAITurnComplete() {
	b.aiSpeaking.Store(false)
	b.Stats.AITurnCompletions.Add(1)
}

func (b *Bridge) onAIInterrupted() {
	b.aiSpeaking.Store(false)
	b.Stats.AIInterruptions.Add(1)
	if b.vadDet != nil {
		b.vadDet.Reset()
	}
	drainAudioQueue(b.outgoingAudio)
}

func (b *Bridge) onAIError(err error) {
	b.Stats.AIErrors.Add(1)
	b.log.Error("ai service error", zap.Error(err))

	if strings.Contains(err.Error(), "closed") && b.running.Load() {
		go b.reconnectAI()
	}
}

func (b *Bridge) reconnectAI() {
	if !b.running.Load() {
		return
	}
	time.Sleep(aiReconnectDelay)
	if !b.running.Load() || b.aiClient == nil {
		return
	}

	b.log.Info("attempting ai service reconnection")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.aiClient.Connect(ctx); err != nil {
		b.log.Error("ai reconnection failed", zap.Error(err))
		return
	}
	b.log.Info("ai service reconnected")
}

func drainAudioQueue(ch chan []byte) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
