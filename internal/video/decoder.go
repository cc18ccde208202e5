package video

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/vp8"
)

// ErrNotAKeyframe is returned by the default decoder when asked to decode a
// P-frame before any keyframe has ever been seen: there is no reference
// image yet to fall back to.
var ErrNotAKeyframe = errors.New("video: frame is not a keyframe")

// FrameDecoder turns a reassembled VP8 frame into an image. Implementations
// may ignore isKeyframe internally, but the bridge always calls Decode with
// accurate keyframe status so a decoder can track reference-frame state.
type FrameDecoder interface {
	Decode(frame []byte, isKeyframe bool) (image.Image, error)
	Reset()
}

// keyframeDimensionDecoder decodes real pixels for VP8 keyframes using
// golang.org/x/image/vp8 — the same intra-frame VP8 decoder that package
// webp uses internally to decode lossy WebP images (which are themselves a
// single VP8 keyframe). That decoder has no motion-compensated inter-frame
// prediction, so P-frames (which are coded as deltas against a preceding
// reference frame, RFC 6386 §2) cannot be decoded on their own; this
// decoder holds the last successfully decoded keyframe's image and repeats
// it for P-frames instead of reconstructing their delta, trading frame
// freshness for always returning a real (if possibly stale) picture rather
// than a blank filler.
type keyframeDimensionDecoder struct {
	lastWidth  int
	lastHeight int
	lastImage  image.Image
}

// NewDefaultDecoder returns the bridge's keyframe-only VP8 FrameDecoder.
func NewDefaultDecoder() FrameDecoder {
	return &keyframeDimensionDecoder{}
}

func (d *keyframeDimensionDecoder) Decode(frame []byte, isKeyframe bool) (image.Image, error) {
	if !isKeyframe {
		if d.lastImage == nil {
			return nil, ErrNotAKeyframe
		}
		return d.lastImage, nil
	}

	dec := vp8.NewDecoder()
	dec.Init(bytes.NewReader(frame), len(frame))
	var img image.Image
	_, err := dec.DecodeFrameHeader()
	if err == nil {
		img, err = dec.DecodeFrame()
	}
	if err != nil {
		// Bitstream the x/image/vp8 decoder can't handle (e.g. an unusual
		// profile); fall back to a dimension-only placeholder so the resize/
		// JPEG/rate-limit pipeline still has something of the right shape.
		w, h, perr := parseVP8KeyframeDimensions(frame)
		if perr != nil {
			return nil, perr
		}
		placeholder := d.placeholder(w, h)
		d.lastWidth, d.lastHeight, d.lastImage = w, h, placeholder
		return placeholder, nil
	}

	bounds := img.Bounds()
	d.lastWidth, d.lastHeight, d.lastImage = bounds.Dx(), bounds.Dy(), img
	return img, nil
}

func (d *keyframeDimensionDecoder) Reset() {
	d.lastWidth, d.lastHeight, d.lastImage = 0, 0, nil
}

func (d *keyframeDimensionDecoder) placeholder(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	fill := color.Gray{Y: 128}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, fill)
		}
	}
	return img
}

// parseVP8KeyframeDimensions extracts width/height from a VP8 keyframe's
// uncompressed data chunk: 3-byte tag, 3-byte start code (0x9d 0x01 0x2a),
// then two little-endian uint16s each carrying a 14-bit dimension and a
// 2-bit scale in the high bits.
func parseVP8KeyframeDimensions(frame []byte) (int, int, error) {
	if len(frame) < 10 {
		return 0, 0, errors.New("video: keyframe too short to carry dimensions")
	}
	if frame[3] != 0x9d || frame[4] != 0x01 || frame[5] != 0x2a {
		return 0, 0, errors.New("video: missing VP8 keyframe start code")
	}

	widthField := binary.LittleEndian.Uint16(frame[6:8])
	heightField := binary.LittleEndian.Uint16(frame[8:10])

	width := int(widthField & 0x3FFF)
	height := int(heightField & 0x3FFF)
	if width == 0 || height == 0 {
		return 0, 0, errors.New("video: invalid keyframe dimensions")
	}

	return width, height, nil
}
