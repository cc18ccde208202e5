package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrija/agentbridge/internal/config"
)

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		JanusSampleRate: 48000,
		AIInputRate:     16000,
		AIOutputRate:    24000,
		FrameDurationMs: 20,
		OpusBitrate:     32000,
	}
}

func TestNewProcessorFrameSamplesMatchesJanusRate(t *testing.T) {
	p, err := NewProcessor(testAudioConfig())
	require.NoError(t, err)
	assert.Equal(t, 960, p.FrameSamples()) // 48000 * 20ms
}

func TestJanusToAIRoundTripsThroughEncoder(t *testing.T) {
	p, err := NewProcessor(testAudioConfig())
	require.NoError(t, err)

	frame := make([]int16, p.FrameSamples())
	for i := range frame {
		frame[i] = int16(i % 100)
	}
	opusFrame, err := p.encoder.encode(frame)
	require.NoError(t, err)

	pcmOut, err := p.JanusToAI(opusFrame)
	require.NoError(t, err)
	assert.NotEmpty(t, pcmOut)
	// Resampled from 48kHz to 16kHz: roughly a third of the samples, 2 bytes each.
	assert.InDelta(t, len(frame)/3*2, len(pcmOut), 8)
}

func TestAIToJanusProducesFullSizeFramesWithZeroPaddedTail(t *testing.T) {
	p, err := NewProcessor(testAudioConfig())
	require.NoError(t, err)

	// 30ms of PCM16 at the AI output rate: one and a half janus frames' worth.
	samples := 24000 * 30 / 1000
	pcm := make([]byte, samples*2)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	frames, err := p.AIToJanus(pcm)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
	for _, f := range frames {
		assert.NotEmpty(t, f)
	}
}

func TestAIToJanusEmptyInputReturnsNoFrames(t *testing.T) {
	p, err := NewProcessor(testAudioConfig())
	require.NoError(t, err)

	frames, err := p.AIToJanus(nil)
	require.NoError(t, err)
	assert.Nil(t, frames)
}
