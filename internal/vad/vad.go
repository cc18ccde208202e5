// Package vad filters silence out of the outgoing audio stream before it
// reaches the AI service, using a Silero VAD model with RMS normalization
// (Janus/WebRTC audio runs much quieter than Silero's training distribution)
// and a speech/silence hysteresis state machine.
package vad

import (
	"math"
	"sync/atomic"

	"github.com/streamer45/silero-vad-go/speech"
)

const (
	chunkSize = 512 // samples per Silero inference call at 16kHz

	targetRMS = 5000.0
	maxGain   = 50.0
)

// Config tunes the detector: 100ms of contiguous speech to switch on, 200ms
// of contiguous silence to switch back off.
type Config struct {
	ModelPath            string
	SampleRate           int
	Threshold            float32
	MinSpeechDurationMs  int
	MinSilenceDurationMs int
}

// DefaultConfig returns the bridge's standard tuning.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:            modelPath,
		SampleRate:           16000,
		Threshold:            0.5,
		MinSpeechDurationMs:  100,
		MinSilenceDurationMs: 200,
	}
}

// segmentDetector is the subset of *speech.Detector's surface this package
// relies on, narrowed to an interface so tests can substitute a fake model.
type segmentDetector interface {
	Detect(pcm []float32) ([]speech.Segment, error)
}

// Detector tracks a speaking/silent hysteresis state across successive
// PCM16 chunks.
type Detector struct {
	cfg      Config
	detector segmentDetector

	isSpeaking    bool
	speechFrames  int
	silenceFrames int

	speechFramesTotal  atomic.Uint64
	silenceFramesTotal atomic.Uint64
}

// Stats reports the running totals of speech and silence frames observed.
type Stats struct {
	SpeechFramesTotal  uint64 `json:"speech_frames_total"`
	SilenceFramesTotal uint64 `json:"silence_frames_total"`
	Speaking           bool   `json:"speaking"`
}

// Stats snapshots the detector's counters.
func (d *Detector) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		SpeechFramesTotal:  d.speechFramesTotal.Load(),
		SilenceFramesTotal: d.silenceFramesTotal.Load(),
		Speaking:           d.isSpeaking,
	}
}

// NewDetector loads the Silero model and builds a Detector. If model
// loading fails, the returned error should be treated as non-fatal by the
// caller: the bridge falls back to forwarding all audio unfiltered.
func NewDetector(cfg Config) (*Detector, error) {
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           cfg.SampleRate,
		Threshold:            cfg.Threshold,
		MinSilenceDurationMs: cfg.MinSilenceDurationMs,
	})
	if err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, detector: sd}, nil
}

// IsSpeech normalizes and chunks pcm16 (PCM16 samples at cfg.SampleRate)
// through Silero, updates the hysteresis state machine, and reports whether
// the detector currently considers the stream to be in a speech segment.
func (d *Detector) IsSpeech(pcm16 []int16) bool {
	if d == nil || d.detector == nil {
		return true
	}

	prob := d.speechProbability(pcm16)
	isSpeechFrame := prob > d.cfg.Threshold

	frameDurationMs := float64(len(pcm16)) / float64(d.cfg.SampleRate) * 1000

	if isSpeechFrame {
		d.speechFrames++
		d.speechFramesTotal.Add(1)
		d.silenceFrames = 0
		if float64(d.speechFrames)*frameDurationMs >= float64(d.cfg.MinSpeechDurationMs) {
			d.isSpeaking = true
		}
	} else {
		d.silenceFrames++
		d.silenceFramesTotal.Add(1)
		d.speechFrames = 0
		if float64(d.silenceFrames)*frameDurationMs >= float64(d.cfg.MinSilenceDurationMs) {
			d.isSpeaking = false
		}
	}

	return d.isSpeaking
}

// Reset clears the hysteresis state, used when a new talkspurt boundary is
// externally known (e.g. after an AI-side interruption).
func (d *Detector) Reset() {
	d.isSpeaking = false
	d.speechFrames = 0
	d.silenceFrames = 0
}

func (d *Detector) speechProbability(pcm16 []int16) float32 {
	if len(pcm16) == 0 {
		return 0
	}

	normalized := normalize(pcm16)

	var maxProb float32
	for i := 0; i < len(normalized); i += chunkSize {
		end := i + chunkSize
		var chunk []float32
		if end <= len(normalized) {
			chunk = normalized[i:end]
		} else if len(normalized)-i >= chunkSize/2 {
			chunk = make([]float32, chunkSize)
			copy(chunk, normalized[i:])
		} else {
			continue
		}

		segments, err := d.detector.Detect(chunk)
		if err != nil {
			continue
		}
		if len(segments) > 0 {
			maxProb = 1.0
		}
	}

	return maxProb
}

// normalize applies the RMS-targeted gain correction and converts to the
// [-1, 1] float32 range Silero expects.
func normalize(pcm16 []int16) []float32 {
	var sumSquares float64
	for _, s := range pcm16 {
		v := float64(s)
		sumSquares += v * v
	}
	rms := math.Sqrt(sumSquares / float64(len(pcm16)))

	gain := 1.0
	if rms > 1 {
		gain = math.Min(targetRMS/rms, maxGain)
	}

	out := make([]float32, len(pcm16))
	for i, s := range pcm16 {
		amplified := float64(s) * gain
		if amplified > 32767 {
			amplified = 32767
		} else if amplified < -32768 {
			amplified = -32768
		}
		out[i] = float32(amplified / 32768.0)
	}
	return out
}
