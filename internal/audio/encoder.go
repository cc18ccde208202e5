package audio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// opusEncoder wraps the libopus encoder configured for voice at a fixed
// sample rate and channel count.
type opusEncoder struct {
	enc        *opus.Encoder
	sampleRate int
	channels   int
	bitrate    int
}

func newOpusEncoder(sampleRate, channels, bitrate int) (*opusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("new opus encoder: %w", err)
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("set opus bitrate: %w", err)
	}
	if err := enc.SetComplexity(5); err != nil {
		return nil, fmt.Errorf("set opus complexity: %w", err)
	}

	return &opusEncoder{enc: enc, sampleRate: sampleRate, channels: channels, bitrate: bitrate}, nil
}

// encode compresses exactly one Opus frame's worth of int16 PCM samples.
func (e *opusEncoder) encode(pcm []int16) ([]byte, error) {
	data := make([]byte, 4000)
	n, err := e.enc.Encode(pcm, data)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	return data[:n], nil
}
