package bridge

import (
	"context"
	"encoding/binary"
	"time"

	"go.uber.org/zap"
)

const rtpSendPacing = 18 * time.Millisecond

// audioForwardLoop pumps Janus RTP audio to the AI service: decode Opus,
// resample to the AI's input rate, accumulate into send-sized chunks, run
// voice-activity detection, and ship only the chunks that look like speech.
// While the AI is speaking, incoming audio is discarded outright to avoid
// feeding its own synthesized voice back to itself.
func (b *Bridge) audioForwardLoop(ctx context.Context) {
	b.log.Info("audio forward loop started")

	threshold := b.cfg.Audio.AIInputThreshold()
	var buf []byte
	var silenceFiltered uint64

	for {
		select {
		case <-ctx.Done():
			b.log.Info("audio forward loop stopped", zap.Uint64("silence_filtered", silenceFiltered))
			return
		case opusPayload := <-b.incomingAudio:
			pcm, err := b.audioProc.JanusToAI(opusPayload)
			if err != nil {
				b.Stats.DecodeErrors.Add(1)
				continue
			}
			if len(pcm) == 0 {
				continue
			}
			buf = append(buf, pcm...)

			if len(buf) < threshold {
				continue
			}

			chunk := buf
			buf = nil

			if b.aiSpeaking.Load() {
				continue
			}
			if b.aiClient == nil || !b.aiClient.IsReady() {
				continue
			}

			if b.vadDet != nil && !b.vadDet.IsSpeech(bytesToInt16LE(chunk)) {
				silenceFiltered++
				b.Stats.SilenceFiltered.Add(1)
				continue
			}

			if err := b.aiClient.SendAudio(chunk); err != nil {
				b.Stats.AIErrors.Add(1)
				continue
			}
			b.Stats.AudioChunksToAI.Add(1)
			b.Stats.AudioBytesToAI.Add(uint64(len(chunk)))

			if b.debugWAVIn != nil {
				b.debugWAVIn.WriteFrames(chunk)
			}
		}
	}
}

// audioPlaybackLoop pumps AI-synthesized PCM audio to Janus: resample to
// the Janus rate, encode 20ms Opus frames, and pace RTP sends so Janus
// receives roughly real-time audio instead of a burst.
func (b *Bridge) audioPlaybackLoop(ctx context.Context) {
	b.log.Info("audio playback loop started")

	for {
		select {
		case <-ctx.Done():
			b.log.Info("audio playback loop stopped")
			return
		case pcm := <-b.outgoingAudio:
			if b.debugWAVOut != nil {
				b.debugWAVOut.WriteFrames(pcm)
			}

			frames, err := b.audioProc.AIToJanus(pcm)
			if err != nil || len(frames) == 0 {
				b.Stats.EncodeErrors.Add(1)
				continue
			}

			for i, frame := range frames {
				marker := i == 0
				if err := b.rtpSender.Send(frame, marker, uint32(b.audioProc.FrameSamples())); err != nil {
					b.log.Warn("rtp send failed", zap.Error(err))
					continue
				}
				b.Stats.RTPPacketsSent.Add(1)
				b.Stats.RTPBytesSent.Add(uint64(len(frame) + 12))

				select {
				case <-ctx.Done():
					return
				case <-time.After(rtpSendPacing):
				}
			}
		}
	}
}

func bytesToInt16LE(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
