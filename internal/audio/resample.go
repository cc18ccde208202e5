package audio

import (
	resampler "github.com/tphakala/go-audio-resampler"
)

// resample converts mono int16 PCM between sample rates. It prefers the
// go-audio-resampler library's polyphase filter and falls back to linear
// interpolation for ratios the library doesn't support.
func resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	if out, err := resampler.ResampleInt16(samples, fromRate, toRate); err == nil {
		return out
	}

	return linearResample(samples, fromRate, toRate)
}

// linearResample is a dependency-free fallback used only when the library
// resampler rejects a rate pair.
func linearResample(samples []int16, fromRate, toRate int) []int16 {
	if len(samples) == 0 || fromRate == toRate {
		return samples
	}

	newLen := len(samples) * toRate / fromRate
	if newLen <= 0 {
		return nil
	}

	out := make([]int16, newLen)
	step := float64(len(samples)-1) / float64(newLen-1)
	if newLen == 1 {
		step = 0
	}

	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}

		a, b := float64(samples[idx]), float64(samples[idx+1])
		v := a + (b-a)*frac

		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}

	return out
}
