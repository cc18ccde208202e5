package audio

import (
	"encoding/binary"
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// opusDecoder wraps the libopus decoder for a single fixed sample rate and
// channel count (the Janus side is always 48kHz mono in this bridge).
type opusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	channels   int
}

func newOpusDecoder(sampleRate, channels int) (*opusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("new opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec, sampleRate: sampleRate, channels: channels}, nil
}

// decode turns an Opus packet into int16 PCM samples. The buffer is sized
// for the largest legal Opus frame (120ms at 48kHz) regardless of the actual
// frame duration sent.
func (d *opusDecoder) decode(opusData []byte) ([]int16, error) {
	pcm := make([]int16, 5760*d.channels)

	n, err := d.dec.Decode(opusData, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}

	return pcm[:n*d.channels], nil
}

func pcm16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func bytesToPCM16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
