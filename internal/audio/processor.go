// Package audio implements the bridge's Janus-to-AI and AI-to-Janus codec
// pipeline: Opus<->PCM16 conversion and sample-rate conversion between
// Janus's fixed 48kHz mono Opus stream and the AI service's 16kHz input /
// 24kHz output PCM16 streams.
package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/andrija/agentbridge/internal/config"
)

// Processor converts audio between Janus AudioBridge's Opus@48kHz and the
// AI streaming endpoint's PCM16 input/output rates.
type Processor struct {
	janusRate int
	aiInRate  int
	aiOutRate int
	frameSize int // samples per 20ms Opus frame at janusRate

	decoder *opusDecoder
	encoder *opusEncoder

	DecodeErrors atomic.Uint64
	EncodeErrors atomic.Uint64
}

// NewProcessor builds a Processor from audio configuration.
func NewProcessor(cfg config.AudioConfig) (*Processor, error) {
	dec, err := newOpusDecoder(cfg.JanusSampleRate, 1)
	if err != nil {
		return nil, err
	}
	enc, err := newOpusEncoder(cfg.JanusSampleRate, 1, cfg.OpusBitrate)
	if err != nil {
		return nil, err
	}

	return &Processor{
		janusRate: cfg.JanusSampleRate,
		aiInRate:  cfg.AIInputRate,
		aiOutRate: cfg.AIOutputRate,
		frameSize: cfg.JanusFrameSamples(),
		decoder:   dec,
		encoder:   enc,
	}, nil
}

// JanusToAI decodes one Opus/RTP payload from Janus and resamples it down
// to the AI service's input rate, returning little-endian PCM16 bytes.
func (p *Processor) JanusToAI(opusPayload []byte) ([]byte, error) {
	pcm, err := p.decoder.decode(opusPayload)
	if err != nil {
		p.DecodeErrors.Add(1)
		return nil, fmt.Errorf("decode janus opus: %w", err)
	}
	if len(pcm) == 0 {
		return nil, nil
	}

	resampled := resample(pcm, p.janusRate, p.aiInRate)
	return pcm16ToBytes(resampled), nil
}

// AIToJanus takes PCM16 bytes at the AI service's output rate and returns a
// sequence of Opus frames, each exactly one 20ms Janus frame, ready for RTP
// packetization. The final partial frame is zero-padded to full length.
func (p *Processor) AIToJanus(pcmData []byte) ([][]byte, error) {
	if len(pcmData) == 0 {
		return nil, nil
	}

	samples := bytesToPCM16(pcmData)
	resampled := resample(samples, p.aiOutRate, p.janusRate)

	var frames [][]byte
	for i := 0; i < len(resampled); i += p.frameSize {
		end := i + p.frameSize
		var chunk []int16
		if end <= len(resampled) {
			chunk = resampled[i:end]
		} else {
			chunk = make([]int16, p.frameSize)
			copy(chunk, resampled[i:])
		}

		opusFrame, err := p.encoder.encode(chunk)
		if err != nil {
			p.EncodeErrors.Add(1)
			continue
		}
		frames = append(frames, opusFrame)
	}

	return frames, nil
}

// FrameSamples returns samples per Janus-side Opus frame.
func (p *Processor) FrameSamples() int {
	return p.frameSize
}
