package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearResampleSameRateIsNoop(t *testing.T) {
	in := []int16{1, 2, 3, 4}
	out := linearResample(in, 48000, 48000)
	assert.Equal(t, in, out)
}

func TestLinearResampleDownsampleShortensLength(t *testing.T) {
	in := make([]int16, 480) // 10ms at 48kHz
	for i := range in {
		in[i] = int16(i)
	}
	out := linearResample(in, 48000, 16000)
	assert.InDelta(t, 160, len(out), 2)
}

func TestLinearResampleUpsampleLengthensLength(t *testing.T) {
	in := make([]int16, 160) // 10ms at 16kHz
	for i := range in {
		in[i] = int16(i * 10)
	}
	out := linearResample(in, 16000, 48000)
	assert.InDelta(t, 480, len(out), 2)
}

func TestLinearResampleClampsToInt16Range(t *testing.T) {
	in := []int16{32767, 32767, -32768, -32768}
	out := linearResample(in, 8000, 16000)
	for _, s := range out {
		assert.GreaterOrEqual(t, s, int16(-32768))
		assert.LessOrEqual(t, s, int16(32767))
	}
}

func TestLinearResampleEmptyInput(t *testing.T) {
	out := linearResample(nil, 48000, 16000)
	assert.Nil(t, out)
}
