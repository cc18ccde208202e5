package video

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/time/rate"
)

const maxConsecutiveDecodeErrors = 5

// FrameHandler receives a ready-to-send JPEG still and its MIME type.
type FrameHandler func(jpegBytes []byte, mimeType string)

// KeyframeRequestHandler is invoked when the processor needs a fresh
// keyframe from the publisher (a PLI-equivalent signal up to the caller).
type KeyframeRequestHandler func()

// Processor reassembles VP8 RTP video into JPEG stills for the AI
// streaming client, holding to the target emit rate and only forwarding
// once a keyframe has been seen.
type Processor struct {
	targetWidth  int
	targetHeight int
	jpegQuality  int

	limiter *rate.Limiter
	asm     *assembler
	dec     FrameDecoder

	mu                      sync.Mutex
	hasKeyframe             bool
	consecutiveDecodeErrors int
	lastKeyframeRequest     time.Time

	onFrame           FrameHandler
	onKeyframeRequest KeyframeRequestHandler

	PacketsReceived    atomic.Uint64
	FramesDecoded      atomic.Uint64
	FramesSent         atomic.Uint64
	KeyframesReceived  atomic.Uint64
	DecodeErrors       atomic.Uint64
}

// NewProcessor builds a video processor targeting fps frames/second and a
// maximum width/height, with JPEG quality in [0,100].
func NewProcessor(fps float64, targetWidth, targetHeight, jpegQuality int) *Processor {
	return &Processor{
		targetWidth:  targetWidth,
		targetHeight: targetHeight,
		jpegQuality:  jpegQuality,
		limiter:      rate.NewLimiter(rate.Limit(fps), 1),
		asm:          newAssembler(),
		dec:          NewDefaultDecoder(),
	}
}

// OnFrame registers the callback invoked with each emitted JPEG still.
func (p *Processor) OnFrame(h FrameHandler) { p.onFrame = h }

// OnKeyframeRequest registers the callback invoked when a keyframe is needed.
func (p *Processor) OnKeyframeRequest(h KeyframeRequestHandler) { p.onKeyframeRequest = h }

// HandleRTPPayload feeds one descriptor-stripped VP8 RTP payload for the
// given timestamp/sequence/marker. When marker completes a frame, it is
// decoded and, if the emit-rate budget allows, JPEG-encoded and delivered.
func (p *Processor) HandleRTPPayload(timestamp uint32, seq uint16, payload []byte, marker bool) {
	p.PacketsReceived.Add(1)

	frame := p.asm.add(timestamp, seq, payload, marker)
	if frame == nil {
		return
	}

	p.decodeAndEmit(frame)
}

func (p *Processor) decodeAndEmit(frame []byte) {
	isKeyframe := IsVP8Keyframe(frame)

	p.mu.Lock()
	defer p.mu.Unlock()

	if isKeyframe {
		p.hasKeyframe = true
		p.consecutiveDecodeErrors = 0
		p.KeyframesReceived.Add(1)
	} else if !p.hasKeyframe {
		// Waiting for the stream's first keyframe; skip silently. Keyframe
		// requests are reserved for decode-error recovery, where restarting
		// the forward is worth breaking P-frame continuity.
		return
	}

	img, err := p.dec.Decode(frame, isKeyframe)
	if err != nil {
		p.DecodeErrors.Add(1)
		p.consecutiveDecodeErrors++

		if isKeyframe || p.consecutiveDecodeErrors >= maxConsecutiveDecodeErrors {
			p.resetDecoderLocked()
		}
		return
	}

	p.FramesDecoded.Add(1)
	p.consecutiveDecodeErrors = 0

	if !p.limiter.Allow() {
		return
	}

	jpegBytes, encErr := p.encodeJPEG(img)
	if encErr != nil {
		return
	}

	p.FramesSent.Add(1)
	if p.onFrame != nil {
		p.onFrame(jpegBytes, "image/jpeg")
	}
}

func (p *Processor) encodeJPEG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	out := img
	if w > p.targetWidth || h > p.targetHeight {
		scale := float64(p.targetWidth) / float64(w)
		if hs := float64(p.targetHeight) / float64(h); hs < scale {
			scale = hs
		}
		newW, newH := int(float64(w)*scale), int(float64(h)*scale)
		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: p.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resetDecoderLocked recovers from decoder error storms by dropping all
// reference-frame state and re-requesting a keyframe. Caller must hold mu.
func (p *Processor) resetDecoderLocked() {
	p.dec.Reset()
	p.hasKeyframe = false
	p.consecutiveDecodeErrors = 0
	p.requestKeyframeLocked()
}

func (p *Processor) requestKeyframeLocked() {
	if time.Since(p.lastKeyframeRequest) < 2*time.Second {
		return
	}
	p.lastKeyframeRequest = time.Now()
	if p.onKeyframeRequest != nil {
		p.onKeyframeRequest()
	}
}
